// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package forward implements the gateway's forwarder: acquire a backend
// connection, send the request, release the connection, and translate the
// outcome into a JSON-RPC response. The forwarder never retries.
package forward

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/encoding/json"

	"github.com/mcpconn/mcpconn/client"
	"github.com/mcpconn/mcpconn/gateway/pool"
	"github.com/mcpconn/mcpconn/internal/jsonrpc2"
)

// Request is one inbound call the gateway forwards to a chosen backend.
type Request struct {
	ID     uint64
	Method string
	Params json.RawMessage
}

// Forward acquires a connection to cfg.Address from manager, sends req,
// releases the connection unconditionally, and returns the JSON-RPC
// response envelope bytes to write back to the caller.
func Forward(ctx context.Context, manager *pool.Manager, cfg pool.Config, req Request, waitTimeout, requestTimeout time.Duration) []byte {
	eng, err := manager.GetConnection(ctx, cfg, waitTimeout)
	if err != nil {
		data, _ := jsonrpc2.MarshalError(req.ID, jsonrpc2.CodeInternalError, "Gateway failed to get backend connection")
		return data
	}
	defer manager.ReleaseConnection(cfg.Address, eng)

	result, sendErr := eng.SendRaw(ctx, req.Method, req.Params, req.ID, requestTimeout)
	if sendErr == nil {
		data, _ := jsonrpc2.MarshalResult(req.ID, result)
		return data
	}

	var protoErr *client.ProtocolError
	if errors.As(sendErr, &protoErr) {
		data, _ := jsonrpc2.MarshalError(req.ID, protoErr.Code, protoErr.Message)
		return data
	}

	// TimeoutError and TransportError both surface as the transport-error
	// code with a descriptive message, per spec.md §4.H.
	data, _ := jsonrpc2.MarshalError(req.ID, jsonrpc2.CodeTransportError, sendErr.Error())
	return data
}
