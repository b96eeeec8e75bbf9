// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mcpconn/mcpconn/client"
	"github.com/mcpconn/mcpconn/transport"
)

// countingDialer returns a Dialer whose engines are backed by an in-memory
// loopbackTransport, so pool tests never touch a real socket. Each dial
// increments calls; with fail set, every dial returns an error.
func countingDialer(t *testing.T, calls *int, fail bool) Dialer {
	t.Helper()
	return func(ctx context.Context, addr string, connectTimeout time.Duration) (*client.Engine, error) {
		*calls++
		if fail {
			return nil, errors.New("dial refused")
		}
		tr := newLoopbackTransport()
		eng := client.New(tr, client.Config{RequestTimeout: time.Second})
		if err := eng.Start(ctx, false); err != nil {
			return nil, err
		}
		return eng, nil
	}
}

// loopbackTransport accepts every Send and never replies, which is enough
// for Ping/health checks in pool tests, since Ping only checks the write
// path.
type loopbackTransport struct {
	onMessage transport.OnMessage
	state     transport.State
}

func newLoopbackTransport() *loopbackTransport { return &loopbackTransport{} }

func (l *loopbackTransport) Start(ctx context.Context, onMessage transport.OnMessage, onError transport.OnError) error {
	l.onMessage = onMessage
	l.state = transport.Started
	return nil
}
func (l *loopbackTransport) Send(data []byte) error {
	return nil
}
func (l *loopbackTransport) SendV(buffers [][]byte) error { return nil }
func (l *loopbackTransport) Stop() error                  { l.state = transport.Stopping; return nil }
func (l *loopbackTransport) Destroy() error                { l.state = transport.Destroyed; return nil }

func TestPool_PreWarmCreatesMinConnections(t *testing.T) {
	calls := 0
	p := New(context.Background(), Config{
		Address:        "tcp://backend:9000",
		MinConnections: 2,
		MaxConnections: 5,
	}, countingDialer(t, &calls, false), nil)
	defer p.Destroy()

	if calls != 2 {
		t.Errorf("dial calls = %d, want 2", calls)
	}
	idle, active, total := p.Counts()
	if idle != 2 || active != 0 || total != 2 {
		t.Errorf("counts = (%d,%d,%d), want (2,0,2)", idle, active, total)
	}
}

func TestPool_GetReusesIdleThenCreatesUpToMax(t *testing.T) {
	calls := 0
	p := New(context.Background(), Config{
		Address:        "tcp://backend:9000",
		MinConnections: 1,
		MaxConnections: 2,
	}, countingDialer(t, &calls, false), nil)
	defer p.Destroy()

	e1, err := p.Get(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Get 1: %v", err)
	}
	if calls != 1 {
		t.Errorf("after reusing the pre-warmed idle connection, calls = %d, want 1", calls)
	}

	e2, err := p.Get(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Get 2: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls after growing to max = %d, want 2", calls)
	}
	if e1 == nil || e2 == nil {
		t.Fatal("got nil engine")
	}

	_, err = p.Get(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Get at capacity: err = %v, want ErrTimeout", err)
	}
}

func TestPool_ReleaseUnblocksWaiter(t *testing.T) {
	calls := 0
	p := New(context.Background(), Config{
		Address:        "tcp://backend:9000",
		MinConnections: 0,
		MaxConnections: 1,
	}, countingDialer(t, &calls, false), nil)
	defer p.Destroy()

	eng, err := p.Get(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.Get(context.Background(), 2*time.Second)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.Release(eng)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("waiter Get: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was never unblocked by Release")
	}
}

func TestPool_GetUnavailableWhenDialFails(t *testing.T) {
	calls := 0
	p := New(context.Background(), Config{
		Address:        "tcp://backend:9000",
		MinConnections: 0,
		MaxConnections: 1,
	}, countingDialer(t, &calls, true), nil)
	defer p.Destroy()

	_, err := p.Get(context.Background(), time.Second)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	_, _, total := p.Counts()
	if total != 0 {
		t.Errorf("total = %d after failed dial, want 0 (rolled back)", total)
	}
}

func TestManager_ReleaseToRemovedBackendDestroysDirectly(t *testing.T) {
	calls := 0
	m := NewManager(countingDialer(t, &calls, false), nil)
	cfg := Config{Address: "tcp://backend:9000", MinConnections: 0, MaxConnections: 1}

	eng, err := m.GetConnection(context.Background(), cfg, time.Second)
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}

	m.mu.Lock()
	delete(m.pools, cfg.Address)
	m.mu.Unlock()

	m.ReleaseConnection(cfg.Address, eng) // must not panic; no pool to release to
}
