// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcpconn/mcpconn/client"
)

// Manager owns one Pool per backend address, created lazily on first use.
type Manager struct {
	dial   Dialer
	logger *slog.Logger

	mu    sync.Mutex
	pools map[string]*Pool
}

// NewManager constructs an empty Manager. dial may be nil to let each pool
// pick a Dialer from its address scheme (see schemeDialer); logger may be
// nil to use slog.Default().
func NewManager(dial Dialer, logger *slog.Logger) *Manager {
	return &Manager{dial: dial, logger: logger, pools: make(map[string]*Pool)}
}

// GetOrCreatePool returns the pool for cfg.Address, constructing and
// pre-warming it on first request. The pre-warm dial happens with mu
// released, so a slow or unreachable backend only blocks callers racing to
// create that same pool, never lookups for any other address.
func (m *Manager) GetOrCreatePool(ctx context.Context, cfg Config) *Pool {
	m.mu.Lock()
	if p, ok := m.pools[cfg.Address]; ok {
		m.mu.Unlock()
		return p
	}
	m.mu.Unlock()

	p := New(ctx, cfg, m.dial, m.logger)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.pools[cfg.Address]; ok {
		p.Destroy()
		return existing
	}
	m.pools[cfg.Address] = p
	return p
}

// GetConnection is get_or_create_pool(cfg).Get(waitTimeout).
func (m *Manager) GetConnection(ctx context.Context, cfg Config, waitTimeout time.Duration) (*client.Engine, error) {
	return m.GetOrCreatePool(ctx, cfg).Get(ctx, waitTimeout)
}

// ReleaseConnection releases eng back to address's pool. If the backend was
// reconfigured away and no pool exists for address, eng is destroyed
// directly instead.
func (m *Manager) ReleaseConnection(address string, eng *client.Engine) {
	m.mu.Lock()
	p, ok := m.pools[address]
	m.mu.Unlock()
	if !ok {
		eng.Destroy()
		return
	}
	p.Release(eng)
}

// Destroy tears down every pool the manager owns.
func (m *Manager) Destroy() {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]*Pool)
	m.mu.Unlock()

	for _, p := range pools {
		p.Destroy()
	}
}
