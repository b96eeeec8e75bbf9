// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc2 implements the JSON-RPC 2.0 envelope shape carried over
// the framing codec: request/response marshaling, strict unmarshaling, and
// the caller-observable error codes.
package jsonrpc2

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/encoding/json"
)

// Error codes, per the JSON-RPC 2.0 spec and this system's extensions.
const (
	CodeNone           = 0
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeTransportError = -32000
)

// ErrorObject is the JSON-RPC error shape carried in a Response.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorObject) Error() string {
	return fmt.Sprintf("jsonrpc2: code %d: %s", e.Code, e.Message)
}

// Request is an outbound or inbound JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response: exactly one of Result or Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// Envelope is the parsed shape of one framed payload: either a Request or a
// Response, distinguished by which of the two pointers is non-nil.
type Envelope struct {
	Request  *Request
	Response *Response
}

// envelopeProbe is used to distinguish a request from a response before
// committing to either strict shape: requests carry "method", responses
// carry "result" or "error".
type envelopeProbe struct {
	Method *string          `json:"method"`
	Result *json.RawMessage `json:"result"`
	Error  *ErrorObject     `json:"error"`
}

// MarshalRequest builds the wire bytes for a JSON-RPC request.
func MarshalRequest(id uint64, method string, params json.RawMessage) ([]byte, error) {
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	return json.Marshal(&Request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
}

// MarshalResult builds the wire bytes for a successful JSON-RPC response.
func MarshalResult(id uint64, result json.RawMessage) ([]byte, error) {
	return json.Marshal(&Response{JSONRPC: "2.0", ID: id, Result: result})
}

// MarshalError builds the wire bytes for a JSON-RPC error response.
func MarshalError(id uint64, code int, message string) ([]byte, error) {
	return json.Marshal(&Response{JSONRPC: "2.0", ID: id, Error: &ErrorObject{Code: code, Message: message}})
}

// Unmarshal parses one framed payload into an Envelope, using strictDecode
// to reject case-smuggled or unknown fields. It returns an *ErrorObject with
// CodeParseError if data is not valid JSON, or CodeInvalidRequest if it is
// valid JSON but fails strict field validation against both known shapes.
func Unmarshal(data []byte) (*Envelope, error) {
	var probe envelopeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &ErrorObject{Code: CodeParseError, Message: err.Error()}
	}

	if probe.Method != nil {
		var req Request
		if err := strictDecode(data, requestFields, &req); err != nil {
			return nil, &ErrorObject{Code: CodeInvalidRequest, Message: err.Error()}
		}
		return &Envelope{Request: &req}, nil
	}

	var resp Response
	if err := strictDecode(data, responseFields, &resp); err != nil {
		return nil, &ErrorObject{Code: CodeInvalidRequest, Message: err.Error()}
	}
	return &Envelope{Response: &resp}, nil
}

// requestFields and responseFields are the only top-level keys Request and
// Response accept; checkFieldNames rejects anything that collides with one
// of them under a different case.
var (
	requestFields  = []string{"jsonrpc", "id", "method", "params"}
	responseFields = []string{"jsonrpc", "id", "result", "error"}
)

// strictDecode unmarshals data into v, rejecting the envelope-smuggling
// tricks encoding/json's case-insensitive field matching would otherwise
// allow: a field spelled with the wrong case (e.g. "Method" standing in for
// "method"), and a field repeated under two different cases. Unknown fields
// are rejected by DisallowUnknownFields as usual.
func strictDecode(data []byte, known []string, v any) error {
	if err := checkFieldNames(data, known); err != nil {
		return err
	}
	dec := stdjson.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

// checkFieldNames walks data's top-level keys and fails if any key matches a
// name in known under a different case, or matches another key under a
// different case. data is assumed to already be valid JSON (the caller
// parses it as an envelopeProbe first); a non-object payload is left to the
// caller's own decode to reject.
func checkFieldNames(data []byte, known []string) error {
	var raw map[string]stdjson.RawMessage
	if err := stdjson.Unmarshal(data, &raw); err != nil {
		return nil
	}

	wantCase := make(map[string]string, len(known))
	for _, name := range known {
		wantCase[strings.ToLower(name)] = name
	}

	seen := make(map[string]string, len(raw))
	for key := range raw {
		lower := strings.ToLower(key)
		if want, ok := wantCase[lower]; ok && want != key {
			return fmt.Errorf("field name case mismatch: got %q, expected %q", key, want)
		}
		if original, ok := seen[lower]; ok && original != key {
			return fmt.Errorf("duplicate key with different case: %q and %q", original, key)
		}
		seen[lower] = key
	}
	return nil
}
