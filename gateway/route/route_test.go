// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package route

import (
	"regexp"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/yosida95/uritemplate/v3"
)

func mustTemplate(t *testing.T, s string) *uritemplate.Template {
	t.Helper()
	tmpl, err := uritemplate.New(s)
	if err != nil {
		t.Fatalf("uritemplate.New(%q): %v", s, err)
	}
	return tmpl
}

func TestTable_RouteResourceByPrefix(t *testing.T) {
	table := New([]Backend{
		{Name: "docs", ResourcePrefixes: []string{"file:///docs/"}},
		{Name: "other", ResourcePrefixes: []string{"file:///"}},
	})

	b, ok := table.Route("read_resource", json.RawMessage(`{"uri":"file:///docs/readme.md"}`))
	if !ok || b.Name != "docs" {
		t.Errorf("got (%+v, %v), want (docs, true)", b, ok)
	}
}

func TestTable_RouteResourceByRegexAfterPrefixMiss(t *testing.T) {
	table := New([]Backend{
		{Name: "docs", ResourcePrefixes: []string{"file:///docs/"}},
		{Name: "images", ResourceRegexes: []*regexp.Regexp{regexp.MustCompile(`\.(png|jpg)$`)}},
	})

	b, ok := table.Route("read_resource", json.RawMessage(`{"uri":"file:///assets/logo.png"}`))
	if !ok || b.Name != "images" {
		t.Errorf("got (%+v, %v), want (images, true)", b, ok)
	}
}

func TestTable_RouteResourceByTemplateLast(t *testing.T) {
	table := New([]Backend{
		{Name: "templated", ResourceTemplates: []*uritemplate.Template{mustTemplate(t, "weather://{city}/forecast")}},
	})

	b, ok := table.Route("read_resource", json.RawMessage(`{"uri":"weather://paris/forecast"}`))
	if !ok || b.Name != "templated" {
		t.Errorf("got (%+v, %v), want (templated, true)", b, ok)
	}

	_, ok = table.Route("read_resource", json.RawMessage(`{"uri":"weather://paris/today"}`))
	if ok {
		t.Error("unexpected match for a uri outside the template shape")
	}
}

func TestTable_RouteToolExactMatch(t *testing.T) {
	table := New([]Backend{
		{Name: "calc", ToolNames: []string{"add", "subtract"}},
	})

	b, ok := table.Route("call_tool", json.RawMessage(`{"name":"add"}`))
	if !ok || b.Name != "calc" {
		t.Errorf("got (%+v, %v), want (calc, true)", b, ok)
	}

	_, ok = table.Route("call_tool", json.RawMessage(`{"name":"multiply"}`))
	if ok {
		t.Error("unexpected match for an undeclared tool")
	}
}

func TestTable_RouteUnroutableMethodReturnsFalse(t *testing.T) {
	table := New([]Backend{{Name: "docs", ResourcePrefixes: []string{"file:///"}}})
	_, ok := table.Route("list_tools", nil)
	if ok {
		t.Error("list_tools should never be routed")
	}
}

func TestTable_RouteEarlierBackendRegexBeatsLaterBackendPrefix(t *testing.T) {
	table := New([]Backend{
		{Name: "a", ResourceRegexes: []*regexp.Regexp{regexp.MustCompile(`^cache://`)}},
		{Name: "b", ResourcePrefixes: []string{"cache://x"}},
	})

	b, ok := table.Route("read_resource", json.RawMessage(`{"uri":"cache://xyz"}`))
	if !ok || b.Name != "a" {
		t.Errorf("got (%+v, %v), want (a, true)", b, ok)
	}
}

func TestTable_RouteFirstDeclaredBackendWinsTies(t *testing.T) {
	table := New([]Backend{
		{Name: "first", ResourcePrefixes: []string{"file:///"}},
		{Name: "second", ResourcePrefixes: []string{"file:///"}},
	})

	b, ok := table.Route("read_resource", json.RawMessage(`{"uri":"file:///a.txt"}`))
	if !ok || b.Name != "first" {
		t.Errorf("got (%+v, %v), want (first, true)", b, ok)
	}
}
