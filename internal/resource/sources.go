package resource

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/bibkit/internal/models"
	"github.com/starford/bibkit/internal/storage"
)

// Records looks up records by key. *bibcache.View implements it.
type Records interface {
	Get(key string) (models.Record, bool)
}

// FileSource detects and lists files attached to records.
type FileSource interface {
	// Has returns a predicate valid for recs, or nil if the source is unusable.
	Has(recs Records) Predicate
	// Files returns the file paths of each of keys that has any.
	Files(recs Records, keys []string) map[string][]string
}

// LibrarySource finds files named <key>.<ext> or <key><sep><anything>.<ext>
// in library directories.
type LibrarySource struct {
	Dirs       []*storage.FS
	Extensions []string
	Separator  string
	Logger     *slog.Logger
}

// Has lists the library once and answers from the listing.
func (s *LibrarySource) Has(_ Records) Predicate {
	if len(s.Dirs) == 0 {
		return nil
	}
	idx := s.index()
	return func(key string) bool {
		return len(idx[key]) > 0
	}
}

// Files lists the library once and returns the files of keys.
func (s *LibrarySource) Files(_ Records, keys []string) map[string][]string {
	if len(s.Dirs) == 0 {
		return nil
	}
	idx := s.index()
	out := make(map[string][]string, len(keys))
	for _, k := range keys {
		if files := idx[k]; len(files) > 0 {
			out[k] = files
		}
	}
	return out
}

func (s *LibrarySource) index() map[string][]string {
	idx := make(map[string][]string)
	for _, fs := range s.Dirs {
		entries, err := fs.List("", s.Extensions)
		if err != nil {
			s.logger().Warn("resource: list library",
				slog.String("dir", fs.Root()),
				slog.String("error", err.Error()))
			continue
		}
		for _, e := range entries {
			base := strings.TrimSuffix(filepath.Base(e.Path), filepath.Ext(e.Path))
			key := base
			if s.Separator != "" {
				key, _, _ = strings.Cut(base, s.Separator)
			}
			idx[key] = append(idx[key], e.Abs)
		}
	}
	return idx
}

func (s *LibrarySource) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// FieldSource reads file paths from a record field. Entries are separated by
// ';' and may use the "description:path:type" form written by reference
// managers. Relative paths are resolved against BaseDir.
type FieldSource struct {
	Field   string
	BaseDir string
}

// Has holds for records with a non-empty file field.
func (s *FieldSource) Has(recs Records) Predicate {
	if s.Field == "" || recs == nil {
		return nil
	}
	return func(key string) bool {
		rec, ok := recs.Get(key)
		return ok && rec.Get(s.Field) != ""
	}
}

// Files parses the file field of each key's record.
func (s *FieldSource) Files(recs Records, keys []string) map[string][]string {
	if s.Field == "" || recs == nil {
		return nil
	}
	out := make(map[string][]string, len(keys))
	for _, k := range keys {
		rec, ok := recs.Get(k)
		if !ok {
			continue
		}
		for _, p := range ParseFileField(rec.Get(s.Field)) {
			if !filepath.IsAbs(p) && s.BaseDir != "" {
				p = filepath.Join(s.BaseDir, p)
			}
			out[k] = append(out[k], p)
		}
	}
	return out
}

// ParseFileField splits a file field into paths.
func ParseFileField(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if parts := strings.Split(item, ":"); len(parts) >= 3 {
			item = strings.Join(parts[1:len(parts)-1], ":")
		}
		item = strings.ReplaceAll(item, `\:`, ":")
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Link maps a record field to a URL.
type Link struct {
	Field  string
	Format string
}

// DefaultLinks is the built-in field→URL table.
var DefaultLinks = []Link{
	{Field: "doi", Format: "https://doi.org/%s"},
	{Field: "pmid", Format: "https://www.ncbi.nlm.nih.gov/pubmed/%s"},
	{Field: "pmcid", Format: "https://www.ncbi.nlm.nih.gov/pmc/articles/%s"},
	{Field: "url", Format: "%s"},
}

// Links returns one URL per table entry whose field is set in rec.
func Links(rec models.Record, table []Link) []string {
	var out []string
	for _, l := range table {
		if v := rec.Get(l.Field); v != "" {
			out = append(out, fmt.Sprintf(l.Format, v))
		}
	}
	return out
}
