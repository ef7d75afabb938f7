// Package library composes the bibliography cache, the resource resolver and
// the notes registry into the operations the API, MCP server and CLI expose.
package library

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/starford/bibkit/internal/apperr"
	"github.com/starford/bibkit/internal/bibcache"
	"github.com/starford/bibkit/internal/crossref"
	"github.com/starford/bibkit/internal/format"
	"github.com/starford/bibkit/internal/models"
	"github.com/starford/bibkit/internal/notes"
	"github.com/starford/bibkit/internal/resource"
)

// Indicators are the symbols marking resource availability in candidate lines.
type Indicators struct {
	Files string `json:"files" yaml:"files" toml:"files"`
	Notes string `json:"notes" yaml:"notes" toml:"notes"`
	Links string `json:"links" yaml:"links" toml:"links"`
}

// MaxWidth bounds every display width a caller may request.
const MaxWidth = 1000

// Options configures a Service.
type Options struct {
	// Global bibliography files, consulted before any local files.
	Global     []string
	Crossref   crossref.Expander
	Formatter  *format.Formatter
	Suffix     format.Template
	Indicators Indicators
	Width      int
}

// Service answers library queries against snapshots of the bibliography.
type Service struct {
	cache    *bibcache.Cache
	resolver *resource.Resolver
	notes    *notes.Registry
	opts     Options
}

// NewService creates a Service. The resolver's crossref settings are
// overridden by opts.Crossref.
func NewService(cache *bibcache.Cache, resolver *resource.Resolver, reg *notes.Registry, opts Options) *Service {
	if opts.Formatter == nil {
		opts.Formatter = format.NewFormatter("…")
	}
	if opts.Width <= 0 {
		opts.Width = 120
	}
	resolver.Crossref = opts.Crossref
	resolver.Notes = reg
	return &Service{cache: cache, resolver: resolver, notes: reg, opts: opts}
}

// Sources returns the bibliography files of a scope: global files followed by
// local ones, so that local records win. A path listed in both keeps its
// local position.
func (s *Service) Sources(local []string) []string {
	seen := make(map[string]struct{}, len(local))
	var tail []string
	for _, p := range local {
		abs := absPath(p)
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		tail = append(tail, abs)
	}
	var out []string
	for _, p := range s.opts.Global {
		abs := absPath(p)
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return append(out, tail...)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Snapshot is a consistent view of a scope. Operations that must agree with
// each other take the same snapshot.
type Snapshot struct {
	View *bibcache.View
	Has  resource.HasSet
}

// Snapshot refreshes the scope's sources and returns its merged view.
func (s *Service) Snapshot(ctx context.Context, local []string) (*Snapshot, error) {
	v, err := s.cache.View(ctx, s.Sources(local))
	if err != nil {
		return nil, fmt.Errorf("library: snapshot: %w", err)
	}
	return &Snapshot{View: v, Has: s.resolver.Has(v)}, nil
}

// Available lists the resource types key has, as "files", "notes" and "links".
func (s *Snapshot) Available(key string) []string {
	var out []string
	if s.Has.Files != nil && s.Has.Files(key) {
		out = append(out, "files")
	}
	if s.Has.Notes != nil && s.Has.Notes(key) {
		out = append(out, "notes")
	}
	if s.Has.Links != nil && s.Has.Links(key) {
		out = append(out, "links")
	}
	return out
}

// Candidate is one selectable record line.
type Candidate struct {
	Key     string   `json:"key"`
	Display string   `json:"display"`
	Suffix  string   `json:"suffix,omitempty"`
	Has     []string `json:"has,omitempty"`
}

// Tags returns the hidden search tags of c, e.g. "has:files has:links".
func (c Candidate) Tags() string {
	tags := make([]string, len(c.Has))
	for i, h := range c.Has {
		tags[i] = "has:" + h
	}
	return strings.Join(tags, " ")
}

// Candidates renders every record of snap in width columns. Configured
// indicators lead each line, blank where the resource is missing.
func (s *Service) Candidates(_ context.Context, snap *Snapshot, width int) []Candidate {
	width = s.width(width)
	ind := s.opts.Indicators
	out := make([]Candidate, 0, snap.View.Len())
	for _, key := range snap.View.Keys() {
		c := Candidate{Key: key}
		var prefix strings.Builder
		mark := func(p resource.Predicate, symbol, tag string) {
			on := p != nil && p(key)
			if on {
				c.Has = append(c.Has, tag)
			}
			if symbol == "" {
				return
			}
			if on {
				prefix.WriteString(symbol)
			} else {
				prefix.WriteString(strings.Repeat(" ", runewidth.StringWidth(symbol)))
			}
		}
		mark(snap.Has.Files, ind.Files, "files")
		mark(snap.Has.Notes, ind.Notes, "notes")
		mark(snap.Has.Links, ind.Links, "links")
		if prefix.Len() > 0 {
			prefix.WriteString(" ")
		}
		lead := prefix.String()
		lw := runewidth.StringWidth(lead)
		if lw >= width {
			// Too narrow for the indicators; the record text keeps the line.
			lead, lw = "", 0
		}
		c.Display = lead + snap.View.Render(key, width-lw)
		if s.opts.Suffix != nil {
			rec, _ := snap.View.Get(key)
			c.Suffix = strings.TrimSpace(s.opts.Formatter.Plain(rec, s.opts.Suffix))
		}
		out = append(out, c)
	}
	return out
}

// Record returns the record for key.
func (s *Service) Record(snap *Snapshot, key string) (models.Record, error) {
	rec, ok := snap.View.Get(key)
	if !ok {
		return models.Record{}, fmt.Errorf("library: record %q: %w", key, apperr.ErrNotFound)
	}
	return rec, nil
}

// Render formats key's record in width columns.
func (s *Service) Render(snap *Snapshot, key string, width int) (string, error) {
	if !snap.View.Has(key) {
		return "", fmt.Errorf("library: render %q: %w", key, apperr.ErrNotFound)
	}
	return snap.View.Render(key, s.width(width)), nil
}

// RenderTemplate formats key's record with tpl instead of the main template.
// A width of 0 or less renders without a total width.
func (s *Service) RenderTemplate(snap *Snapshot, key string, tpl format.Template, width int) (string, error) {
	rec, err := s.Record(snap, key)
	if err != nil {
		return "", err
	}
	if width <= 0 {
		return s.opts.Formatter.Plain(rec, tpl), nil
	}
	return s.opts.Formatter.Render(rec, min(width, MaxWidth), tpl), nil
}

// width resolves a requested width: the configured one when unset, never
// more than MaxWidth.
func (s *Service) width(w int) int {
	if w <= 0 {
		w = s.opts.Width
	}
	return min(w, MaxWidth)
}

// Expand appends to keys the keys their records cross-reference.
func (s *Service) Expand(snap *Snapshot, keys []string) []string {
	return s.opts.Crossref.Expand(keys, snap.View.Get)
}

// CrossrefField is the configured cross-reference field, "" when disabled.
func (s *Service) CrossrefField() string { return s.opts.Crossref.Field }

// Resources gathers the wanted resources of keys.
func (s *Service) Resources(ctx context.Context, snap *Snapshot, keys []string, want resource.Want) (resource.Candidates, error) {
	return s.resolver.Gather(ctx, snap.View, keys, want)
}

// CreateNote creates a note for key with the active notes backend.
func (s *Service) CreateNote(ctx context.Context, snap *Snapshot, key string) (string, error) {
	rec, err := s.Record(snap, key)
	if err != nil {
		return "", err
	}
	b, err := s.notes.Active()
	if err != nil {
		return "", fmt.Errorf("library: create note: %w", err)
	}
	if b.Create == nil {
		return "", fmt.Errorf("library: backend %q cannot create notes: %w", b.Name, apperr.ErrInvalidBackend)
	}
	return b.Create(ctx, rec)
}

// OpenNote reads a note by the ID its backend listed it under.
func (s *Service) OpenNote(ctx context.Context, id string) (*notes.Note, error) {
	b, err := s.notes.Active()
	if err != nil {
		return nil, fmt.Errorf("library: open note: %w", err)
	}
	return b.Open(ctx, id)
}
