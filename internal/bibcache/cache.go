// Package bibcache keeps parsed bibliography files in memory and merges them
// into per-scope views, re-parsing a file only when its fingerprint changes.
package bibcache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/bibkit/internal/format"
	"github.com/starford/bibkit/internal/models"
	"github.com/starford/bibkit/internal/parser"
)

// DefaultTemplate is used for preformatted entries when none is configured.
const DefaultTemplate = "${author editor:30%sn}  ${date year issued:4%year}  ${title:*}"

// ParseFunc parses one bibliography file.
type ParseFunc func(path string) (*parser.Result, error)

// Option configures a Cache.
type Option func(*Cache)

// WithParser replaces the bibliography parser.
func WithParser(p ParseFunc) Option {
	return func(c *Cache) { c.parse = p }
}

// WithLogger sets the logger used for refresh diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithFormatter sets the formatter and template used for preformatted entries.
func WithFormatter(f *format.Formatter, tpl format.Template) Option {
	return func(c *Cache) {
		c.formatter = f
		c.template = tpl
	}
}

// Cache maps bibliography file paths to parsed record stores and ordered
// path lists to merged views.
//
// Stores are replaced whole on a successful parse and never modified after
// publication, so readers never observe a partial store. Concurrent refreshes
// of one path are collapsed into a single parse.
type Cache struct {
	parse     ParseFunc
	logger    *slog.Logger
	formatter *format.Formatter
	template  format.Template

	mu     sync.RWMutex
	stores map[string]*models.RecordStore
	views  map[string]*View

	group singleflight.Group
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		parse:  parser.ParseFile,
		logger: slog.Default(),
		stores: make(map[string]*models.RecordStore),
		views:  make(map[string]*View),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.formatter == nil {
		c.formatter = format.NewFormatter("…")
	}
	if c.template == nil {
		c.template = format.MustParse(DefaultTemplate)
	}
	return c
}

// Store returns the record store for path, parsing the file if it was never
// parsed or its fingerprint changed. A failed parse is returned as an error and
// leaves any previously cached store in place.
func (c *Cache) Store(ctx context.Context, path string) (*models.RecordStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := normalize(path)
	if err != nil {
		return nil, err
	}
	fp, err := fingerprint(abs)
	if err != nil {
		return nil, err
	}
	if cur := c.cached(abs); cur != nil && cur.Fingerprint.Equal(fp) {
		return cur, nil
	}

	v, err, _ := c.group.Do(abs, func() (any, error) {
		if cur := c.cached(abs); cur != nil && cur.Fingerprint.Equal(fp) {
			return cur, nil
		}
		res, err := c.parse(abs)
		if err != nil {
			return nil, err
		}
		st := &models.RecordStore{Fingerprint: fp, Records: res.Records, Keys: res.Keys}
		c.mu.Lock()
		c.stores[abs] = st
		c.mu.Unlock()
		c.logger.Debug("bibcache: parsed",
			slog.String("path", abs),
			slog.Int("records", len(st.Keys)))
		return st, nil
	})
	if err != nil {
		return nil, fmt.Errorf("bibcache: refresh %s: %w", abs, err)
	}
	return v.(*models.RecordStore), nil
}

// View returns the merged view of paths. Later paths win on key collisions.
// The view is reused while every constituent store is unchanged; an empty
// path list yields an empty view.
func (c *Cache) View(ctx context.Context, paths []string) (*View, error) {
	stores := make([]*models.RecordStore, 0, len(paths))
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		st, err := c.Store(ctx, p)
		if err != nil {
			return nil, err
		}
		stores = append(stores, st)
		ids = append(ids, st.Path())
	}
	id := strings.Join(ids, "\x00")

	c.mu.RLock()
	v := c.views[id]
	c.mu.RUnlock()
	if v != nil && v.built(stores) {
		return v, nil
	}

	v = newView(stores, c.formatter, c.template)
	c.mu.Lock()
	c.views[id] = v
	c.mu.Unlock()
	c.logger.Debug("bibcache: merged view",
		slog.Int("sources", len(stores)),
		slog.Int("records", v.Len()))
	return v, nil
}

// Lookup returns the cached store for path without touching the file.
func (c *Cache) Lookup(path string) (*models.RecordStore, bool) {
	abs, err := normalize(path)
	if err != nil {
		return nil, false
	}
	st := c.cached(abs)
	return st, st != nil
}

// Invalidate drops the store for path and every view built from it.
func (c *Cache) Invalidate(path string) {
	abs, err := normalize(path)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stores, abs)
	for id, v := range c.views {
		if v.uses(abs) {
			delete(c.views, id)
		}
	}
}

// Clear drops every store and view.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores = make(map[string]*models.RecordStore)
	c.views = make(map[string]*View)
}

// Paths returns the paths currently cached.
func (c *Cache) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.stores))
	for p := range c.stores {
		out = append(out, p)
	}
	return out
}

func (c *Cache) cached(abs string) *models.RecordStore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stores[abs]
}

func normalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("bibcache: resolve %s: %w", path, err)
	}
	return abs, nil
}

func fingerprint(abs string) (models.Fingerprint, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return models.Fingerprint{}, fmt.Errorf("bibcache: stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return models.Fingerprint{}, fmt.Errorf("bibcache: %s is a directory", abs)
	}
	return models.Fingerprint{Path: abs, ModTime: info.ModTime(), Size: info.Size()}, nil
}
