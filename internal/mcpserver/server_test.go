package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/bibkit/internal/index"
	"github.com/starford/bibkit/internal/testutil"
)

const testBib = `
@book{book, title = {The Whole Book}, author = {Roe, Richard}, year = 2001}
@inbook{ch1, title = {Chapter One}, crossref = {book}}
@article{smith2020, title = {Deep Things}, author = {Smith, John}, year = 2020, doi = {10.1/xyz}}
`

func testServer(t *testing.T) (*Server, *testutil.Library) {
	t.Helper()
	lib := testutil.TestLibrary(t, testBib)
	lib.AddFile(t, "book", "pdf")

	db := testutil.TestDB(t)
	snap, err := lib.Service.Snapshot(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := index.Sync(db, snap.View, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatal(err)
	}
	return New(lib.Service, db, nil), lib
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process "call tool" helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_records":
		result, err = srv.searchRecords(ctx, req)
	case "get_record":
		result, err = srv.getRecord(ctx, req)
	case "list_resources":
		result, err = srv.listResources(ctx, req)
	case "expand_keys":
		result, err = srv.expandKeys(ctx, req)
	case "render_record":
		result, err = srv.renderRecord(ctx, req)
	case "get_template_syntax":
		result, err = srv.getTemplateSyntax(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSearchRecords(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "search_records", map[string]any{"query": "Deep"})
	if r.IsError {
		t.Fatalf("search error: %s", resultText(r))
	}
	var hits []index.SearchResult
	if err := json.Unmarshal([]byte(resultText(r)), &hits); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hits) != 1 || hits[0].Key != "smith2020" {
		t.Errorf("hits = %+v", hits)
	}

	r = callTool(t, srv, "search_records", map[string]any{"query": "zzzzzz"})
	if resultText(r) != "no records found" {
		t.Errorf("empty search = %q", resultText(r))
	}
}

func TestSearchRecords_NoIndex(t *testing.T) {
	lib := testutil.TestLibrary(t, testBib)
	srv := New(lib.Service, nil, nil)
	r := callTool(t, srv, "search_records", map[string]any{"query": "Deep"})
	if !r.IsError {
		t.Error("expected error without index")
	}
}

func TestGetRecord(t *testing.T) {
	srv, lib := testServer(t)

	r := callTool(t, srv, "get_record", map[string]any{"key": "ch1"})
	if r.IsError {
		t.Fatalf("get_record error: %s", resultText(r))
	}
	var got struct {
		Key    string            `json:"key"`
		Fields map[string]string `json:"fields"`
		Source string            `json:"source"`
		Has    []string          `json:"has"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Key != "ch1" || got.Fields["crossref"] != "book" || got.Source != lib.Global {
		t.Errorf("record = %+v", got)
	}
	if len(got.Has) != 1 || got.Has[0] != "files" {
		t.Errorf("has = %v", got.Has)
	}

	r = callTool(t, srv, "get_record", map[string]any{"key": "ghost"})
	if !r.IsError {
		t.Error("expected error for unknown key")
	}
}

func TestListResources(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_resources", map[string]any{"key": "ch1"})
	text := resultText(r)
	if r.IsError || !strings.Contains(text, `"category": "file"`) || !strings.Contains(text, "book.pdf") {
		t.Errorf("ch1 resources = %s", text)
	}

	r = callTool(t, srv, "list_resources", map[string]any{"key": "smith2020", "want": "files"})
	if resultText(r) != "no resources found" {
		t.Errorf("files of smith2020 = %q", resultText(r))
	}

	r = callTool(t, srv, "list_resources", map[string]any{"key": "smith2020", "want": "links,files"})
	if !strings.Contains(resultText(r), "https://doi.org/10.1/xyz") {
		t.Errorf("links of smith2020 = %s", resultText(r))
	}

	r = callTool(t, srv, "list_resources", map[string]any{"key": "smith2020", "want": "pdfs"})
	if !r.IsError {
		t.Error("expected error for unknown resource type")
	}
}

func TestExpandKeys(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "expand_keys", map[string]any{"keys": "ch1, smith2020, ch1"})
	if got := resultText(r); got != "ch1\nbook\nsmith2020" {
		t.Errorf("expand = %q", got)
	}
}

func TestRenderRecord(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "render_record", map[string]any{
		"key":      "smith2020",
		"template": "${=key=} (${year})",
	})
	if got := resultText(r); got != "smith2020 (2020)" {
		t.Errorf("plain render = %q", got)
	}

	r = callTool(t, srv, "render_record", map[string]any{
		"key":      "smith2020",
		"template": "${title:*}",
		"width":    float64(10),
	})
	if got := resultText(r); got != "Deep Thin…" {
		t.Errorf("sized render = %q", got)
	}

	r = callTool(t, srv, "render_record", map[string]any{"key": "smith2020", "template": "${title"})
	if !r.IsError {
		t.Error("expected error for malformed template")
	}
	r = callTool(t, srv, "render_record", map[string]any{"key": "ghost"})
	if !r.IsError {
		t.Error("expected error for unknown key")
	}
	for _, w := range []float64{2000000000, -1} {
		r = callTool(t, srv, "render_record", map[string]any{"key": "smith2020", "width": w})
		if !r.IsError {
			t.Errorf("width %v: expected error", w)
		}
	}
}

func TestTemplateSyntaxResource(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_template_syntax", nil)
	if !strings.Contains(resultText(r), "${name:*}") {
		t.Error("syntax text missing star reference")
	}

	contents, err := srv.readTemplateSyntaxResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != TemplateSyntaxURI || tc.Text != TemplateSyntax {
		t.Errorf("resource = %+v", contents[0])
	}
}
