// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"testing"
	"time"
)

func TestLoad_ValidDocument(t *testing.T) {
	data := []byte(`{
		"backends": [
			{
				"name": "docs",
				"address": "tcp://docs-backend:9000",
				"min_connections": 1,
				"max_connections": 4,
				"resource_prefixes": ["file:///docs/"]
			}
		]
	}`)

	doc, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Backends) != 1 || doc.Backends[0].Name != "docs" {
		t.Errorf("got %+v", doc.Backends)
	}
}

func TestLoad_RejectsMinExceedingMax(t *testing.T) {
	data := []byte(`{
		"backends": [
			{
				"name": "docs",
				"address": "tcp://docs-backend:9000",
				"min_connections": 10,
				"max_connections": 4,
				"resource_prefixes": ["file:///docs/"]
			}
		]
	}`)

	if _, err := Load(data); err == nil {
		t.Fatal("want an error when min_connections exceeds max_connections")
	}
}

func TestLoad_RejectsBackendWithNoRoutingRule(t *testing.T) {
	data := []byte(`{
		"backends": [
			{
				"name": "docs",
				"address": "tcp://docs-backend:9000",
				"min_connections": 1,
				"max_connections": 4
			}
		]
	}`)

	if _, err := Load(data); err == nil {
		t.Fatal("want an error for a backend with no routing rule")
	}
}

func TestValidate_RejectsMissingAddress(t *testing.T) {
	err := Validate(BackendConfig{Name: "docs", MaxConnections: 1, ToolNames: []string{"x"}})
	if err == nil {
		t.Fatal("want an error for a missing address")
	}
}

func TestBackendConfig_PoolConfig(t *testing.T) {
	b := BackendConfig{
		Address:            "tcp://docs-backend:9000",
		MinConnections:     1,
		MaxConnections:     4,
		ConnectTimeoutMs:   500,
		IdleTimeoutMs:      60000,
		RateLimitPerSecond: 10,
		AuthTokenEnv:       "DOCS_TOKEN",
	}
	got := b.PoolConfig()
	if got.Address != b.Address || got.MinConnections != 1 || got.MaxConnections != 4 {
		t.Fatalf("PoolConfig = %+v", got)
	}
	if got.ConnectTimeout != 500*time.Millisecond {
		t.Errorf("ConnectTimeout = %v, want 500ms", got.ConnectTimeout)
	}
	if got.IdleTimeout != time.Minute {
		t.Errorf("IdleTimeout = %v, want 1m", got.IdleTimeout)
	}
	if got.AuthTokenEnv != "DOCS_TOKEN" {
		t.Errorf("AuthTokenEnv = %q, want DOCS_TOKEN", got.AuthTokenEnv)
	}
}

func TestBackendConfig_RouteBackend(t *testing.T) {
	b := BackendConfig{
		Name:              "docs",
		ResourcePrefixes:  []string{"file:///docs/"},
		ResourceRegexes:   []string{`^file:///archive/\d+$`},
		ResourceTemplates: []string{"weather://{city}/forecast"},
		ToolNames:         []string{"search_docs"},
	}
	rb, err := b.RouteBackend()
	if err != nil {
		t.Fatalf("RouteBackend: %v", err)
	}
	if rb.Name != "docs" || len(rb.ResourceRegexes) != 1 || len(rb.ResourceTemplates) != 1 {
		t.Fatalf("RouteBackend = %+v", rb)
	}
	if !rb.ResourceRegexes[0].MatchString("file:///archive/42") {
		t.Error("compiled regex does not match expected URI")
	}
}

func TestBackendConfig_RouteBackend_RejectsBadRegex(t *testing.T) {
	b := BackendConfig{Name: "docs", ResourceRegexes: []string{"(unterminated"}}
	if _, err := b.RouteBackend(); err == nil {
		t.Fatal("want an error for an invalid regex")
	}
}

func TestDocument_RouteTable(t *testing.T) {
	doc := &Document{Backends: []BackendConfig{
		{Name: "docs", ResourcePrefixes: []string{"file:///docs/"}},
		{Name: "tools", ToolNames: []string{"search_docs"}},
	}}
	table, err := doc.RouteTable()
	if err != nil {
		t.Fatalf("RouteTable: %v", err)
	}
	backend, ok := table.Route("read_resource", []byte(`{"uri":"file:///docs/intro.md"}`))
	if !ok || backend.Name != "docs" {
		t.Errorf("Route = (%+v, %v), want docs backend", backend, ok)
	}
}
