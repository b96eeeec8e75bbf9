// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transport defines the pluggable byte-stream endpoint abstraction
// used by the client engine, plus concrete transports over TCP, stdio,
// WebSocket, streamable HTTP, and MQTT.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// State is a transport's lifecycle state.
type State int

const (
	Created State = iota
	Started
	Stopping
	Destroyed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Started:
		return "started"
	case Stopping:
		return "stopping"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// ErrNotStarted is returned by Send/SendV when the transport is not in the
// Started state.
var ErrNotStarted = errors.New("transport: not started")

// OnMessage is invoked once per decoded message. When it returns ok == true,
// reply is sent back on the same transport immediately.
type OnMessage func(data []byte) (reply []byte, ok bool)

// OnError is invoked at most once per fatal transport failure.
type OnError func(err error)

// Transport is a uniform byte-stream endpoint. Implementations satisfy the
// lifecycle Created → Started → Stopping → Destroyed: Send/SendV return
// ErrNotStarted outside Started; Start and Stop are idempotent; no method
// may be called after Destroy.
type Transport interface {
	// Start begins any internal reader task, invoking onMessage for every
	// decoded message and onError at most once on fatal failure. Calling
	// Start when already Started is a no-op returning nil.
	Start(ctx context.Context, onMessage OnMessage, onError OnError) error

	// Stop idempotently unblocks the reader task and closes the
	// underlying descriptor. After Stop returns, no callback fires again.
	Stop() error

	// Send performs a synchronous, blocking, framed write of one message.
	Send(data []byte) error

	// SendV is the multi-buffer variant: the transports in this package
	// concatenate buffers and send the result as one message, exactly as
	// Send would. The length prefix itself is added by the framing codec
	// (see frame.Send), not passed in as one of buffers.
	SendV(buffers [][]byte) error

	// Destroy implies Stop and frees all transport resources. No method
	// may be called after Destroy returns.
	Destroy() error
}

// Puller is implemented by transports that additionally offer a
// synchronous pull-style receive, such as stdio (where there is no
// concurrent reader task contending with the caller).
type Puller interface {
	Receive(ctx context.Context) ([]byte, error)
}

// FatalError wraps a transport-layer failure for the OnError hook.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
