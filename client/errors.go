// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package client

import (
	"github.com/mcpconn/mcpconn/internal/jsonrpc2"
)

// TimeoutError is returned by SendRequest/SendRaw when the wait for a
// response exceeds the configured or per-call timeout. Its Code is always
// jsonrpc2.CodeTransportError, per spec's "also used for local timeout"
// error-code convention.
type TimeoutError struct {
	*jsonrpc2.ErrorObject
}

func newTimeoutError(msg string) *TimeoutError {
	return &TimeoutError{&jsonrpc2.ErrorObject{Code: jsonrpc2.CodeTransportError, Message: msg}}
}

// TransportError is returned when the underlying transport fails, either
// synchronously (the write itself failed) or asynchronously (the
// transport's error hook fired while this call was waiting).
type TransportError struct {
	*jsonrpc2.ErrorObject
}

func newTransportError(msg string) *TransportError {
	return &TransportError{&jsonrpc2.ErrorObject{Code: jsonrpc2.CodeTransportError, Message: msg}}
}

// ProtocolError is returned when the peer's response carried a JSON-RPC
// error object.
type ProtocolError struct {
	*jsonrpc2.ErrorObject
}

func newProtocolError(code int, message string) *ProtocolError {
	return &ProtocolError{&jsonrpc2.ErrorObject{Code: code, Message: message}}
}
