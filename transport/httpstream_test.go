// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mcpconn/mcpconn/internal/frame"
)

// echoHTTPStreamServer reads framed messages from the request body and
// echoes each one back on the response body as it arrives, flushing after
// every frame so the client's reader sees it without waiting for EOF.
func echoHTTPStreamServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer does not support flushing")
		}
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		for {
			data, err := frame.Recv(r.Body, 0, nil)
			if err != nil {
				return
			}
			if err := frame.Send(w, data, nil); err != nil {
				return
			}
			flusher.Flush()
		}
	}))
}

func TestHTTPStream_SendRecvRoundTrip(t *testing.T) {
	server := echoHTTPStreamServer(t)
	defer server.Close()

	h := NewHTTPStream(server.URL, server.Client(), nil)
	defer h.Destroy()

	got := make(chan []byte, 1)
	if err := h.Start(context.Background(), func(data []byte) ([]byte, bool) {
		got <- append([]byte(nil), data...)
		return nil, false
	}, nil); err != nil {
		t.Fatal(err)
	}

	if err := h.Send([]byte("hello")); err != nil {
		t.Fatal(err)
	}

	select {
	case data := <-got:
		if string(data) != "hello" {
			t.Errorf("received = %q, want %q", data, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed message")
	}
}

func TestHTTPStream_SendBeforeStartFails(t *testing.T) {
	h := NewHTTPStream("http://unused.invalid", nil, nil)
	if err := h.Send([]byte("x")); err != ErrNotStarted {
		t.Errorf("got %v, want ErrNotStarted", err)
	}
}

func TestHTTPStream_StopIsIdempotent(t *testing.T) {
	server := echoHTTPStreamServer(t)
	defer server.Close()

	h := NewHTTPStream(server.URL, server.Client(), nil)
	if err := h.Start(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := h.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := h.Stop(); err != nil {
		t.Errorf("second Stop returned %v, want nil", err)
	}
}
