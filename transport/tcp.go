// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"net"
	"sync"

	"github.com/mcpconn/mcpconn/internal/frame"
)

// TCPDial connects to addr ("host:port") and returns a Transport over the
// resulting connection. There is no internal reconnection policy: a failed
// transport fires its OnError hook once and stays dead, per this system's
// transport-layer boundary (reconnection, if any, is the caller's concern).
func TCPDial(ctx context.Context, addr string) (Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewStream(conn, frame.DefaultMaxSize), nil
}

// Stream adapts any net.Conn to the Transport interface using the
// length-prefixed framing codec.
type Stream struct {
	conn    net.Conn
	maxSize int

	mu    sync.Mutex // serialises Send/SendV; one logical message at a time
	state State

	abort     chan struct{}
	abortOnce sync.Once
	readerWG  sync.WaitGroup
}

// NewStream wraps conn as a framed Transport. maxSize bounds a single
// received payload (see frame.EffectiveMaxSize for the 0/negative/positive
// semantics); pass frame.DefaultMaxSize for the system default.
func NewStream(conn net.Conn, maxSize int) *Stream {
	return &Stream{
		conn:    conn,
		maxSize: maxSize,
		abort:   make(chan struct{}),
	}
}

func (s *Stream) Start(ctx context.Context, onMessage OnMessage, onError OnError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Started {
		return nil
	}
	if s.state != Created {
		return ErrNotStarted
	}
	s.state = Started
	s.readerWG.Add(1)
	go s.readLoop(onMessage, onError)
	return nil
}

func (s *Stream) readLoop(onMessage OnMessage, onError OnError) {
	defer s.readerWG.Done()
	for {
		data, err := frame.Recv(s.conn, s.maxSize, s.abort)
		if err != nil {
			s.mu.Lock()
			stopping := s.state == Stopping || s.state == Destroyed
			s.mu.Unlock()
			if !stopping && onError != nil {
				onError(&FatalError{Op: "recv", Err: err})
			}
			return
		}
		if onMessage == nil {
			continue
		}
		reply, ok := onMessage(data)
		if !ok {
			continue
		}
		if err := s.sendLocked(reply); err != nil {
			if onError != nil {
				onError(&FatalError{Op: "reply", Err: err})
			}
			return
		}
	}
}

func (s *Stream) Send(data []byte) error {
	return s.sendLocked(data)
}

func (s *Stream) SendV(buffers [][]byte) error {
	var total []byte
	for _, b := range buffers {
		total = append(total, b...)
	}
	return s.sendLocked(total)
}

func (s *Stream) sendLocked(data []byte) error {
	// Holding mu across the write serialises concurrent senders so two
	// logical messages never interleave on the wire, per the transport
	// contract's "sends are serialised" requirement.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Started {
		return ErrNotStarted
	}
	return frame.Send(s.conn, data, s.abort)
}

func (s *Stream) Stop() error {
	s.mu.Lock()
	if s.state == Stopping || s.state == Destroyed {
		s.mu.Unlock()
		return nil
	}
	s.state = Stopping
	s.mu.Unlock()

	s.abortOnce.Do(func() { close(s.abort) })
	s.conn.Close()
	s.readerWG.Wait()
	return nil
}

func (s *Stream) Destroy() error {
	err := s.Stop()
	s.mu.Lock()
	s.state = Destroyed
	s.mu.Unlock()
	return err
}
