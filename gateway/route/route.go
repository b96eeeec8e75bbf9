// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package route implements the gateway's backend routing table: given a
// decoded request method and params, it picks the first declared backend
// whose rules match.
package route

import (
	"regexp"

	"github.com/segmentio/encoding/json"
	"github.com/yosida95/uritemplate/v3"
)

// Backend is one routable backend's matching rules, checked in the order
// given here: resource_prefixes, then resource_regexes, then
// resource_templates for "read_resource", or tool_names for "call_tool".
type Backend struct {
	Name              string
	ResourcePrefixes  []string
	ResourceRegexes   []*regexp.Regexp
	ResourceTemplates []*uritemplate.Template
	ToolNames         []string
}

// Table is an ordered list of routable backends; first declared, first
// checked, first match wins.
type Table struct {
	backends []Backend
}

// New builds a Table from backends in declaration order.
func New(backends []Backend) *Table {
	return &Table{backends: append([]Backend(nil), backends...)}
}

type readResourceParams struct {
	URI string `json:"uri"`
}

type callToolParams struct {
	Name string `json:"name"`
}

// Route picks the first backend matching method/params, or returns
// (Backend{}, false) if method requires no routing or no backend matches.
func (t *Table) Route(method string, params json.RawMessage) (Backend, bool) {
	switch method {
	case "read_resource":
		var p readResourceParams
		if err := json.Unmarshal(params, &p); err != nil || p.URI == "" {
			return Backend{}, false
		}
		return t.routeResource(p.URI)
	case "call_tool":
		var p callToolParams
		if err := json.Unmarshal(params, &p); err != nil || p.Name == "" {
			return Backend{}, false
		}
		return t.routeTool(p.Name)
	default:
		return Backend{}, false
	}
}

func (t *Table) routeResource(uri string) (Backend, bool) {
	for _, b := range t.backends {
		for _, prefix := range b.ResourcePrefixes {
			if hasPrefix(uri, prefix) {
				return b, true
			}
		}
		for _, re := range b.ResourceRegexes {
			if re.MatchString(uri) {
				return b, true
			}
		}
		for _, tmpl := range b.ResourceTemplates {
			if tmpl.Regexp().MatchString(uri) {
				return b, true
			}
		}
	}
	return Backend{}, false
}

func (t *Table) routeTool(name string) (Backend, bool) {
	for _, b := range t.backends {
		for _, tool := range b.ToolNames {
			if tool == name {
				return b, true
			}
		}
	}
	return Backend{}, false
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
