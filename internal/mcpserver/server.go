// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes bibkit tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/bibkit/internal/format"
	"github.com/starford/bibkit/internal/index"
	"github.com/starford/bibkit/internal/library"
	"github.com/starford/bibkit/internal/resource"
)

// TemplateSyntaxURI is the resource URI of TemplateSyntax.
const TemplateSyntaxURI = "bibkit://template-syntax"

// Server wraps the MCP server with bibkit tools.
type Server struct {
	mcp   *server.MCPServer
	lib   *library.Service
	db    index.RecordIndex
	local []string
}

// New creates a new MCP server with all bibkit tools registered. local lists
// the bibliography files consulted after the global ones. db may be nil, which
// disables search_records.
func New(lib *library.Service, db index.RecordIndex, local []string) *Server {
	s := &Server{lib: lib, db: db, local: local}

	s.mcp = server.NewMCPServer(
		"bibkit",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Full-text search through bibliography records (key, title, authors, every field)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("get_record",
		mcp.WithDescription("Read one bibliography record with all its fields and the file it comes from."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Citation key")),
	), s.getRecord)

	s.mcp.AddTool(mcp.NewTool("list_resources",
		mcp.WithDescription("List the files, notes and links of a record, including those of the record it cross-references."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Citation key")),
		mcp.WithString("want", mcp.Description("Comma-separated subset of files, notes, links (default all)")),
	), s.listResources)

	s.mcp.AddTool(mcp.NewTool("expand_keys",
		mcp.WithDescription("Expand citation keys with the keys of the records they cross-reference."),
		mcp.WithString("keys", mcp.Required(), mcp.Description("Comma-separated citation keys")),
	), s.expandKeys)

	s.mcp.AddTool(mcp.NewTool("render_record",
		mcp.WithDescription("Render a record as a display line. Read the template syntax first via "+
			"the get_template_syntax tool or the "+TemplateSyntaxURI+" resource."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Citation key")),
		mcp.WithString("template", mcp.Description("Display template (default: the configured main template)")),
		mcp.WithNumber("width", mcp.Description("Total width in columns, at most 1000")),
	), s.renderRecord)

	s.mcp.AddTool(mcp.NewTool("get_template_syntax",
		mcp.WithDescription("Returns the display template syntax used by render_record."),
	), s.getTemplateSyntax)

	s.mcp.AddResource(
		mcp.NewResource(TemplateSyntaxURI, "Template Syntax",
			mcp.WithResourceDescription("Display template language for rendering records."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTemplateSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) snapshot(ctx context.Context) (*library.Snapshot, *mcp.CallToolResult) {
	snap, err := s.lib.Snapshot(ctx, s.local)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return snap, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *Server) searchRecords(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.db == nil {
		return mcp.NewToolResultError("search index disabled"), nil
	}
	results, err := s.db.Search(query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no records found"), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, errResult := s.snapshot(ctx)
	if errResult != nil {
		return errResult, nil
	}
	rec, err := s.lib.Record(snap, key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", key)), nil
	}
	return jsonResult(map[string]any{
		"key":    rec.Key,
		"type":   rec.Type,
		"fields": rec.Fields,
		"source": snap.View.Source(key),
		"has":    snap.Available(key),
	}), nil
}

func (s *Server) listResources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	want := resource.All
	if v, wErr := req.RequireString("want"); wErr == nil && v != "" {
		want = resource.Want{}
		for _, name := range splitKeys(v) {
			switch name {
			case "files":
				want.Files = true
			case "notes":
				want.Notes = true
			case "links":
				want.Links = true
			default:
				return mcp.NewToolResultError(fmt.Sprintf("unknown resource type %q", name)), nil
			}
		}
	}
	snap, errResult := s.snapshot(ctx)
	if errResult != nil {
		return errResult, nil
	}
	if !snap.View.Has(key) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", key)), nil
	}
	cands, err := s.lib.Resources(ctx, snap, []string{key}, want)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if cands.Empty() {
		return mcp.NewToolResultText("no resources found"), nil
	}
	return jsonResult(cands), nil
}

func (s *Server) expandKeys(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("keys")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, errResult := s.snapshot(ctx)
	if errResult != nil {
		return errResult, nil
	}
	return mcp.NewToolResultText(strings.Join(s.lib.Expand(snap, splitKeys(raw)), "\n")), nil
}

func (s *Server) renderRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	width := req.GetInt("width", 0)
	if width < 0 || width > library.MaxWidth {
		return mcp.NewToolResultError(fmt.Sprintf("width must be between 0 and %d", library.MaxWidth)), nil
	}
	snap, errResult := s.snapshot(ctx)
	if errResult != nil {
		return errResult, nil
	}

	var out string
	if src, tErr := req.RequireString("template"); tErr == nil && src != "" {
		tpl, pErr := format.Parse(src)
		if pErr != nil {
			return mcp.NewToolResultError(pErr.Error()), nil
		}
		out, err = s.lib.RenderTemplate(snap, key, tpl, width)
	} else {
		out, err = s.lib.Render(snap, key, width)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", key)), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) getTemplateSyntax(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TemplateSyntax), nil
}

func (s *Server) readTemplateSyntaxResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      TemplateSyntaxURI,
			MIMEType: "text/markdown",
			Text:     TemplateSyntax,
		},
	}, nil
}
