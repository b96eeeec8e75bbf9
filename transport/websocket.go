// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDial connects to a WebSocket server and uses the "mcp" subprotocol
// for the handshake, matching the framing-bypass note in this transport's
// doc comment below.
func WebSocketDial(ctx context.Context, url string, header http.Header) (Transport, error) {
	dialer := *websocket.DefaultDialer
	dialer.Subprotocols = []string{"mcp"}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed: %w (status: %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}
	return NewWebSocket(conn), nil
}

// WebSocket adapts a gorilla/websocket connection to Transport. WebSocket
// framing already delimits messages, so the length-prefix codec in
// internal/frame is bypassed here: each WS text frame carries exactly one
// JSON-RPC envelope.
type WebSocket struct {
	conn *websocket.Conn

	mu        sync.Mutex
	state     State
	closeOnce sync.Once
	readerWG  sync.WaitGroup
}

// NewWebSocket wraps an established gorilla/websocket connection.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn}
}

func (w *WebSocket) Start(ctx context.Context, onMessage OnMessage, onError OnError) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Started {
		return nil
	}
	if w.state != Created {
		return ErrNotStarted
	}
	w.state = Started
	w.readerWG.Add(1)
	go w.readLoop(onMessage, onError)
	return nil
}

func (w *WebSocket) readLoop(onMessage OnMessage, onError OnError) {
	defer w.readerWG.Done()
	for {
		msgType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			stopping := w.state == Stopping || w.state == Destroyed
			w.mu.Unlock()
			if !stopping && onError != nil {
				onError(&FatalError{Op: "recv", Err: err})
			}
			return
		}
		if msgType != websocket.TextMessage || onMessage == nil {
			continue
		}
		reply, ok := onMessage(data)
		if !ok {
			continue
		}
		if err := w.sendLocked(reply); err != nil {
			if onError != nil {
				onError(&FatalError{Op: "reply", Err: err})
			}
			return
		}
	}
}

func (w *WebSocket) Send(data []byte) error {
	return w.sendLocked(data)
}

func (w *WebSocket) SendV(buffers [][]byte) error {
	var total []byte
	for _, b := range buffers {
		total = append(total, b...)
	}
	return w.sendLocked(total)
}

func (w *WebSocket) sendLocked(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Started {
		return ErrNotStarted
	}
	w.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	defer w.conn.SetWriteDeadline(time.Time{})
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) Stop() error {
	w.mu.Lock()
	if w.state == Stopping || w.state == Destroyed {
		w.mu.Unlock()
		return nil
	}
	w.state = Stopping
	w.mu.Unlock()

	w.closeOnce.Do(func() { w.conn.Close() })
	w.readerWG.Wait()
	return nil
}

func (w *WebSocket) Destroy() error {
	err := w.Stop()
	w.mu.Lock()
	w.state = Destroyed
	w.mu.Unlock()
	return err
}
