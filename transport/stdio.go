// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"io"
	"sync"

	"github.com/mcpconn/mcpconn/internal/frame"
)

// Stdio adapts a pair of io.Reader/io.Writer (typically os.Stdin/os.Stdout)
// to Transport. Unlike the stream-socket transports, Stdio also implements
// Puller: callers that don't need concurrent push delivery can call Receive
// directly instead of Start, since there is no reader task to contend with.
type Stdio struct {
	r io.Reader
	w io.Writer

	mu      sync.Mutex
	state   State
	maxSize int

	abort     chan struct{}
	abortOnce sync.Once
	readerWG  sync.WaitGroup
}

// NewStdio wraps r/w as a framed Transport.
func NewStdio(r io.Reader, w io.Writer, maxSize int) *Stdio {
	return &Stdio{r: r, w: w, maxSize: maxSize, abort: make(chan struct{})}
}

func (s *Stdio) Start(ctx context.Context, onMessage OnMessage, onError OnError) error {
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

func (s *Stdio) readLoop(onMessage OnMessage, onError OnError) {
	defer s.readerWG.Done()
	for {
		data, err := frame.Recv(s.r, s.maxSize, s.abort)
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

// Receive synchronously pulls the next framed message, honoring ctx
// cancellation. It must not be called concurrently with Start's push
// delivery; use one modality or the other per Stdio instance.
func (s *Stdio) Receive(ctx context.Context) ([]byte, error) {
	done := make(chan struct{})
	abort := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			close(abort)
		case <-done:
		}
	}()
	return frame.Recv(s.r, s.maxSize, abort)
}

func (s *Stdio) Send(data []byte) error {
	return s.sendLocked(data)
}

func (s *Stdio) SendV(buffers [][]byte) error {
	var total []byte
	for _, b := range buffers {
		total = append(total, b...)
	}
	return s.sendLocked(total)
}

func (s *Stdio) sendLocked(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Started {
		return ErrNotStarted
	}
	return frame.Send(s.w, data, s.abort)
}

func (s *Stdio) Stop() error {
	s.mu.Lock()
	if s.state == Stopping || s.state == Destroyed {
		s.mu.Unlock()
		return nil
	}
	s.state = Stopping
	s.mu.Unlock()

	s.abortOnce.Do(func() { close(s.abort) })
	if closer, ok := s.r.(io.Closer); ok {
		closer.Close()
	}
	s.readerWG.Wait()
	return nil
}

func (s *Stdio) Destroy() error {
	err := s.Stop()
	s.mu.Lock()
	s.state = Destroyed
	s.mu.Unlock()
	return err
}
