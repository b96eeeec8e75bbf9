// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package client implements the client-side request/response correlation
// engine: one engine multiplexes concurrent outbound requests over one
// transport, correlating responses by id with timeout and transport-failure
// semantics.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mcpconn/mcpconn/internal/jsonrpc2"
	"github.com/mcpconn/mcpconn/internal/mcpconndebug"
	"github.com/mcpconn/mcpconn/pending"
	"github.com/mcpconn/mcpconn/transport"
)

// tracewireEnabled reports whether MCPCONNDEBUG sets tracewire to any
// non-empty value (e.g. MCPCONNDEBUG=tracewire=1), gating
// the raw-envelope logging in sendAndWait/onMessage.
func tracewireEnabled() bool {
	return mcpconndebug.Value("tracewire") != ""
}

// Config configures an Engine.
type Config struct {
	// RequestTimeout is the default wait applied by SendRequest/SendRaw
	// when the caller does not supply a per-call timeout.
	RequestTimeout time.Duration
	// Logger receives warnings for dropped late/unknown responses and
	// debug traces for transport failures. Defaults to slog.Default().
	Logger *slog.Logger
}

const defaultRequestTimeout = 30 * time.Second

// Engine owns one transport and one pending-request table, multiplexing
// concurrent SendRequest/SendRaw calls over that single connection.
type Engine struct {
	tr     transport.Transport
	table  *pending.Table
	nextID atomic.Uint64
	cfg    Config
	logger *slog.Logger
}

// New creates an Engine over tr. The transport must not yet be Started;
// call Start to begin reading.
func New(tr transport.Transport, cfg Config) *Engine {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		tr:     tr,
		table:  pending.New(),
		cfg:    cfg,
		logger: logger,
	}
}

// Start begins the transport's reader task. probe, if true, fires the
// optional id-0 liveness probe described in spec.md §4.D: it round-trips
// harmlessly and verifies the write path, with no waiter installed for id 0
// and any response silently dropped.
func (e *Engine) Start(ctx context.Context, probe bool) error {
	if err := e.tr.Start(ctx, e.onMessage, e.onError); err != nil {
		return err
	}
	if probe {
		return e.Ping()
	}
	return nil
}

// Ping sends the id-0 liveness probe and reports whether the write path
// succeeded. No response is awaited: an id-0 response is unconditionally
// dropped by onMessage, so this is a write-path check, not a full round
// trip. This same helper backs the gateway pool's health-check probe (see
// spec.md §9's open question on the id-0 collision between the two).
func (e *Engine) Ping() error {
	data, err := jsonrpc2.MarshalRequest(0, "ping", nil)
	if err != nil {
		return err
	}
	return e.tr.Send(data)
}

// SendRequest issues a request with an engine-allocated id and blocks for a
// response, using timeout if positive or the configured default otherwise.
// It returns exactly one of: (result, nil), (nil, *ProtocolError),
// (nil, *TimeoutError), (nil, *TransportError).
func (e *Engine) SendRequest(ctx context.Context, method string, params []byte, timeout time.Duration) ([]byte, error) {
	id := e.nextID.Add(1)
	return e.sendAndWait(ctx, id, method, params, timeout)
}

// SendRaw is like SendRequest but the caller supplies the id — used by the
// gateway forwarder to preserve the original caller's id end-to-end.
func (e *Engine) SendRaw(ctx context.Context, method string, params []byte, id uint64, timeout time.Duration) ([]byte, error) {
	return e.sendAndWait(ctx, id, method, params, timeout)
}

func (e *Engine) sendAndWait(ctx context.Context, id uint64, method string, params []byte, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = e.cfg.RequestTimeout
	}

	signal := pending.NewSignal()
	if err := e.table.Insert(id, signal); err != nil {
		return nil, newTransportError(fmt.Sprintf("engine: %v", err))
	}

	data, err := jsonrpc2.MarshalRequest(id, method, params)
	if err != nil {
		e.table.Remove(id)
		return nil, newTransportError(fmt.Sprintf("engine: marshal request: %v", err))
	}

	if err := e.tr.Send(data); err != nil {
		e.table.Remove(id)
		return nil, newTransportError(fmt.Sprintf("engine: send: %v", err))
	}
	if tracewireEnabled() {
		e.logger.Debug("tracewire: sent", "id", id, "method", method, "bytes", len(data))
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-signal.Wait():
	case <-ctx.Done():
		e.table.Remove(id)
		return nil, newTransportError(fmt.Sprintf("engine: %v", ctx.Err()))
	case <-timer.C:
		e.table.Remove(id)
		return nil, newTimeoutError(fmt.Sprintf("request timed out after %s", timeout))
	}

	entry, ok := e.table.Find(id)
	e.table.Remove(id)
	if !ok {
		// Invalidated out from under us by a concurrent Destroy; treat as
		// a transport failure rather than panicking on a missing entry.
		return nil, newTransportError("engine: destroyed while waiting")
	}

	switch entry.State {
	case pending.Completed:
		return entry.Result, nil
	case pending.Errored:
		if entry.ErrCode == jsonrpc2.CodeTransportError {
			return nil, newTransportError(entry.ErrMsg)
		}
		return nil, newProtocolError(entry.ErrCode, entry.ErrMsg)
	default:
		return nil, newTransportError(fmt.Sprintf("engine: unexpected entry state %v", entry.State))
	}
}

// onMessage is the transport's decoded-message callback: it parses the
// envelope and demultiplexes a response to its waiter, or drops a request
// arriving on what is purely a client engine.
func (e *Engine) onMessage(data []byte) ([]byte, bool) {
	if tracewireEnabled() {
		e.logger.Debug("tracewire: received", "bytes", len(data))
	}
	env, err := jsonrpc2.Unmarshal(data)
	if err != nil {
		e.logger.Warn("dropping malformed envelope", "error", err)
		return nil, false
	}
	if env.Request != nil {
		e.logger.Debug("dropping unexpected inbound request on client engine", "method", env.Request.Method)
		return nil, false
	}
	e.handleResponse(env.Response)
	return nil, false
}

func (e *Engine) handleResponse(resp *jsonrpc2.Response) {
	if resp.ID == 0 {
		// The id-0 liveness probe's echo is never surfaced to any caller.
		return
	}
	var delivered bool
	if resp.Error != nil {
		delivered = e.table.Error(resp.ID, resp.Error.Code, resp.Error.Message)
	} else {
		delivered = e.table.Complete(resp.ID, resp.Result)
	}
	if !delivered {
		e.logger.Warn("dropping response for unknown or non-waiting id", "id", resp.ID)
	}
}

// onError is the transport's fatal-error hook: it fans the failure out to
// every Waiting entry, per spec.md §4.D.
func (e *Engine) onError(err error) {
	e.logger.Debug("transport error, fanning out to waiters", "error", err)
	e.table.DrainWaiting(jsonrpc2.CodeTransportError, "Transport connection error")
}

// Destroy stops the transport, then sweeps the pending table so any
// straggling Waiting entries are woken with a transport error: a
// SendRequest/SendRaw call still waiting on this engine returns a
// *TransportError.
func (e *Engine) Destroy() error {
	err := e.tr.Stop()
	e.table.InvalidateAll(jsonrpc2.CodeTransportError, "Transport connection error")
	if destroyErr := e.tr.Destroy(); destroyErr != nil && err == nil {
		err = destroyErr
	}
	return err
}
