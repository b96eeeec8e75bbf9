// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/mcpconn/mcpconn/internal/frame"
)

// DefaultMaxBodyBytes mirrors the size-ceiling policy this system applies
// uniformly across byte-stream transports (see internal/frame.EffectiveMaxSize):
// it is the streamable-HTTP transport's ceiling on one framed message body.
const DefaultMaxBodyBytes = frame.DefaultMaxSize

// HTTPStream is a streamable-HTTP transport: a single long-lived HTTP POST
// whose request body and response body are each a stream of length-prefixed
// frames, giving a full-duplex byte stream over one HTTP exchange.
type HTTPStream struct {
	url        string
	httpClient *http.Client
	header     http.Header
	maxSize    int

	pw *io.PipeWriter
	pr *io.PipeReader

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	resp     *http.Response
	readerWG sync.WaitGroup
	abort    chan struct{}
}

// NewHTTPStream creates a streamable-HTTP transport targeting url. If
// httpClient is nil, http.DefaultClient is used. header, if non-nil, is
// copied onto the request alongside the framing Content-Type/Accept
// headers — the carrier for a gateway-propagated bearer token, since this
// is one of the two transports with a header-bearing handshake. Each
// received frame is limited to DefaultMaxBodyBytes.
func NewHTTPStream(url string, httpClient *http.Client, header http.Header) *HTTPStream {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPStream{url: url, httpClient: httpClient, header: header, maxSize: DefaultMaxBodyBytes, abort: make(chan struct{})}
}

func (h *HTTPStream) Start(ctx context.Context, onMessage OnMessage, onError OnError) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Started {
		return nil
	}
	if h.state != Created {
		return ErrNotStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.pr, h.pw = io.Pipe()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, h.pr)
	if err != nil {
		cancel()
		return err
	}
	req.Header.Set("Content-Type", "application/vnd.mcpconn.framed")
	req.Header.Set("Accept", "application/vnd.mcpconn.framed")
	for k, vs := range h.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("httpstream: connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("httpstream: unexpected status %d", resp.StatusCode)
	}
	h.resp = resp
	h.state = Started
	h.readerWG.Add(1)
	go h.readLoop(resp.Body, onMessage, onError)
	return nil
}

func (h *HTTPStream) readLoop(body io.ReadCloser, onMessage OnMessage, onError OnError) {
	defer h.readerWG.Done()
	for {
		data, err := frame.Recv(body, h.maxSize, h.abort)
		if err != nil {
			h.mu.Lock()
			stopping := h.state == Stopping || h.state == Destroyed
			h.mu.Unlock()
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
		if err := h.sendLocked(reply); err != nil {
			if onError != nil {
				onError(&FatalError{Op: "reply", Err: err})
			}
			return
		}
	}
}

func (h *HTTPStream) Send(data []byte) error {
	return h.sendLocked(data)
}

func (h *HTTPStream) SendV(buffers [][]byte) error {
	var total []byte
	for _, b := range buffers {
		total = append(total, b...)
	}
	return h.sendLocked(total)
}

func (h *HTTPStream) sendLocked(data []byte) error {
	h.mu.Lock()
	started := h.state == Started
	pw := h.pw
	h.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	return frame.Send(pw, data, h.abort)
}

func (h *HTTPStream) Stop() error {
	h.mu.Lock()
	if h.state == Stopping || h.state == Destroyed {
		h.mu.Unlock()
		return nil
	}
	h.state = Stopping
	cancel := h.cancel
	resp := h.resp
	h.mu.Unlock()

	close(h.abort)
	if h.pw != nil {
		h.pw.Close()
	}
	if resp != nil {
		resp.Body.Close()
	}
	if cancel != nil {
		cancel()
	}
	h.readerWG.Wait()
	return nil
}

func (h *HTTPStream) Destroy() error {
	err := h.Stop()
	h.mu.Lock()
	h.state = Destroyed
	h.mu.Unlock()
	return err
}
