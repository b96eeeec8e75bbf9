// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package frame implements the length-prefixed message framing used by
// every byte-stream transport: a 4-byte big-endian length followed by
// exactly that many payload bytes.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// DefaultMaxSize is the default ceiling on a single framed payload.
const DefaultMaxSize = 1 << 20 // 1 MiB

// Sentinel errors returned by Send and Recv.
var (
	// ErrProtocol indicates a malformed frame (oversize length).
	ErrProtocol = errors.New("frame: protocol error")
	// ErrConnectionClosed indicates the peer closed the stream gracefully
	// between frames.
	ErrConnectionClosed = errors.New("frame: connection closed")
	// ErrAborted indicates the abort channel fired before the frame
	// completed.
	ErrAborted = errors.New("frame: aborted")
)

// EffectiveMaxSize converts a user-configured max size to the effective
// ceiling used by Recv.
//
// Semantics:
//   - maxSize == 0: use DefaultMaxSize
//   - maxSize  < 0: no limit
//   - maxSize  > 0: use maxSize
func EffectiveMaxSize(maxSize int) int {
	switch {
	case maxSize == 0:
		return DefaultMaxSize
	case maxSize < 0:
		return 0
	default:
		return maxSize
	}
}

// Send writes payload to w as one framed message: a 4-byte big-endian
// length prefix followed by payload. When w is a *net.TCPConn (or any
// net.Conn net.Buffers can write to with a single writev(2)), the length
// prefix and payload are sent as one vectored write; otherwise the prefix
// and the payload are written with two successive Write calls.
//
// abort, if non-nil, is checked before the write begins; Send does not
// interrupt a write already in flight (the underlying net.Conn's deadline
// machinery is the mechanism for that, configured by the caller).
func Send(w io.Writer, payload []byte, abort <-chan struct{}) error {
	if abort != nil {
		select {
		case <-abort:
			return ErrAborted
		default:
		}
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	bufs := net.Buffers{append([]byte(nil), lenBuf[:]...), payload}
	if _, err := bufs.WriteTo(w); err != nil {
		return fmt.Errorf("frame: send: %w", err)
	}
	return nil
}

// Recv reads one framed message from r: a 4-byte big-endian length prefix,
// validated against maxSize (0 means DefaultMaxSize, negative means
// unlimited — see EffectiveMaxSize), followed by exactly that many payload
// bytes. The returned slice has one slack byte of capacity beyond len() for
// callers that want to append a null terminator.
func Recv(r io.Reader, maxSize int, abort <-chan struct{}) ([]byte, error) {
	if abort != nil {
		select {
		case <-abort:
			return nil, ErrAborted
		default:
		}
	}

	var lenBuf [4]byte
	if err := readFull(r, lenBuf[:], abort); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrConnectionClosed
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	effective := EffectiveMaxSize(maxSize)
	if effective > 0 && int(length) > effective {
		return nil, fmt.Errorf("%w: length %d exceeds max %d", ErrProtocol, length, effective)
	}

	buf := make([]byte, length, length+1)
	if length == 0 {
		return buf, nil
	}
	if err := readFull(r, buf, abort); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrConnectionClosed
		}
		return nil, err
	}
	return buf, nil
}

// readFull reads exactly len(buf) bytes, checking abort between chunks so a
// shutdown in progress can interrupt a slow peer without tearing down the
// socket out from under a concurrent caller.
func readFull(r io.Reader, buf []byte, abort <-chan struct{}) error {
	read := 0
	for read < len(buf) {
		if abort != nil {
			select {
			case <-abort:
				return ErrAborted
			default:
			}
		}
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			if read == len(buf) {
				return nil
			}
			return err
		}
	}
	return nil
}
