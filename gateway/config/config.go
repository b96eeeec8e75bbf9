// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the gateway's backend configuration:
// a typed Go struct, schema-validated via jsonschema-go before it reaches
// the pool manager and router.
package config

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/segmentio/encoding/json"
	"github.com/yosida95/uritemplate/v3"

	"github.com/mcpconn/mcpconn/gateway/pool"
	"github.com/mcpconn/mcpconn/gateway/route"
)

// BackendConfig is one backend's full configuration: connection bounds,
// routing rules, and the optional auth/rate-limit knobs.
type BackendConfig struct {
	Name             string `json:"name"`
	Address          string `json:"address"`
	MinConnections   int    `json:"min_connections"`
	MaxConnections   int    `json:"max_connections"`
	ConnectTimeoutMs int    `json:"connect_timeout_ms"`
	IdleTimeoutMs    int    `json:"idle_timeout_ms"`

	ResourcePrefixes  []string `json:"resource_prefixes,omitempty"`
	ResourceRegexes   []string `json:"resource_regexes,omitempty"`
	ResourceTemplates []string `json:"resource_templates,omitempty"`
	ToolNames         []string `json:"tool_names,omitempty"`

	AuthTokenEnv       string  `json:"auth_token_env,omitempty"`
	RateLimitPerSecond float64 `json:"rate_limit_per_second,omitempty"`
}

// Document is the top-level shape of a gateway config file: a list of
// backends, checked for routing in declaration order.
type Document struct {
	Backends []BackendConfig `json:"backends"`
}

var (
	schemaOnce sync.Once
	resolved   *jsonschema.Resolved
	schemaErr  error
)

func backendSchema() (*jsonschema.Resolved, error) {
	schemaOnce.Do(func() {
		schema, err := jsonschema.For[BackendConfig](nil)
		if err != nil {
			schemaErr = fmt.Errorf("config: building backend schema: %w", err)
			return
		}
		schema.Required = []string{"name", "address", "min_connections", "max_connections"}
		resolved, schemaErr = schema.Resolve(&jsonschema.ResolveOptions{ValidateDefaults: true})
		if schemaErr != nil {
			schemaErr = fmt.Errorf("config: resolving backend schema: %w", schemaErr)
		}
	})
	return resolved, schemaErr
}

// Load parses data as a Document and validates every backend against the
// generated BackendConfig schema, then against the cross-field invariants
// Validate checks.
func Load(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	schema, err := backendSchema()
	if err != nil {
		return nil, err
	}

	for i, b := range doc.Backends {
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("config: backend %d: re-marshal: %w", i, err)
		}
		var asMap map[string]any
		if err := json.Unmarshal(raw, &asMap); err != nil {
			return nil, fmt.Errorf("config: backend %d: %w", i, err)
		}
		if err := schema.Validate(&asMap); err != nil {
			return nil, fmt.Errorf("config: backend %d (%s): schema validation: %w", i, b.Name, err)
		}
		if err := Validate(b); err != nil {
			return nil, fmt.Errorf("config: backend %d (%s): %w", i, b.Name, err)
		}
	}
	return &doc, nil
}

// Validate checks the cross-field invariants a JSON Schema cannot express:
// min_connections must be non-negative, max_connections at least 1, min
// not above max, and every backend must declare at least one routing rule.
func Validate(b BackendConfig) error {
	if b.Name == "" {
		return fmt.Errorf("name is required")
	}
	if b.Address == "" {
		return fmt.Errorf("address is required")
	}
	if b.MinConnections < 0 {
		return fmt.Errorf("min_connections must be >= 0")
	}
	if b.MaxConnections < 1 {
		return fmt.Errorf("max_connections must be >= 1")
	}
	if b.MinConnections > b.MaxConnections {
		return fmt.Errorf("min_connections (%d) exceeds max_connections (%d)", b.MinConnections, b.MaxConnections)
	}
	if len(b.ResourcePrefixes) == 0 && len(b.ResourceRegexes) == 0 &&
		len(b.ResourceTemplates) == 0 && len(b.ToolNames) == 0 {
		return fmt.Errorf("backend declares no routing rule (prefixes, regexes, templates, or tool names)")
	}
	return nil
}

// PoolConfig converts b into the runtime pool.Config used to construct or
// look up this backend's connection pool.
func (b BackendConfig) PoolConfig() pool.Config {
	return pool.Config{
		Address:            b.Address,
		MinConnections:     b.MinConnections,
		MaxConnections:     b.MaxConnections,
		ConnectTimeout:     time.Duration(b.ConnectTimeoutMs) * time.Millisecond,
		IdleTimeout:        time.Duration(b.IdleTimeoutMs) * time.Millisecond,
		RateLimitPerSecond: b.RateLimitPerSecond,
		AuthTokenEnv:       b.AuthTokenEnv,
	}
}

// RouteBackend compiles b's resource_regexes/resource_templates into a
// route.Backend, ready to feed into route.New.
func (b BackendConfig) RouteBackend() (route.Backend, error) {
	regexes := make([]*regexp.Regexp, 0, len(b.ResourceRegexes))
	for _, pattern := range b.ResourceRegexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return route.Backend{}, fmt.Errorf("backend %s: resource_regexes: %w", b.Name, err)
		}
		regexes = append(regexes, re)
	}
	templates := make([]*uritemplate.Template, 0, len(b.ResourceTemplates))
	for _, raw := range b.ResourceTemplates {
		tmpl, err := uritemplate.New(raw)
		if err != nil {
			return route.Backend{}, fmt.Errorf("backend %s: resource_templates: %w", b.Name, err)
		}
		templates = append(templates, tmpl)
	}
	return route.Backend{
		Name:              b.Name,
		ResourcePrefixes:  b.ResourcePrefixes,
		ResourceRegexes:   regexes,
		ResourceTemplates: templates,
		ToolNames:         b.ToolNames,
	}, nil
}

// RouteTable builds a route.Table from every backend in d, in declaration
// order, compiling each backend's regexes and URI templates once up front.
func (d *Document) RouteTable() (*route.Table, error) {
	backends := make([]route.Backend, 0, len(d.Backends))
	for _, b := range d.Backends {
		rb, err := b.RouteBackend()
		if err != nil {
			return nil, err
		}
		backends = append(backends, rb)
	}
	return route.New(backends), nil
}
