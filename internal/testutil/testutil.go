// Package testutil provides shared test helpers for setting up bibliographies, libraries and databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/bibkit/internal/bibcache"
	"github.com/starford/bibkit/internal/crossref"
	"github.com/starford/bibkit/internal/format"
	"github.com/starford/bibkit/internal/index"
	"github.com/starford/bibkit/internal/library"
	"github.com/starford/bibkit/internal/notes"
	"github.com/starford/bibkit/internal/resource"
	"github.com/starford/bibkit/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "bibkit-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Library is a library service over a temporary directory:
//
//	<Root>/refs.bib      global bibliography
//	<Root>/library/      PDF files named by citation key
//	<Root>/notes/        directory notes backend (active)
type Library struct {
	Service  *library.Service
	Cache    *bibcache.Cache
	Registry *notes.Registry
	Root     string
	Global   string
	Files    string
	Notes    string
}

// TestLibrary creates a Library whose global bibliography holds bib.
func TestLibrary(t *testing.T, bib string) *Library {
	t.Helper()
	root := t.TempDir()
	l := &Library{
		Root:   root,
		Global: filepath.Join(root, "refs.bib"),
		Files:  filepath.Join(root, "library"),
		Notes:  filepath.Join(root, "notes"),
	}
	WriteFile(t, l.Global, bib)
	if err := os.MkdirAll(l.Files, 0o755); err != nil {
		t.Fatal(err)
	}

	fs, err := storage.NewFS(l.Files)
	if err != nil {
		t.Fatal(err)
	}
	dir, err := notes.NewDir([]string{l.Notes}, "md", nil)
	if err != nil {
		t.Fatal(err)
	}
	l.Registry = notes.NewRegistry(nil)
	if err := l.Registry.Register(dir.Backend()); err != nil {
		t.Fatal(err)
	}
	if err := l.Registry.Activate(notes.DirBackendName); err != nil {
		t.Fatal(err)
	}

	fm := format.NewFormatter("…")
	l.Cache = bibcache.New(bibcache.WithFormatter(fm, format.MustParse("${=key=:8} ${title:*}")))
	resolver := &resource.Resolver{
		Files: []resource.FileSource{&resource.LibrarySource{Dirs: []*storage.FS{fs}, Extensions: []string{"pdf"}}},
		Links: resource.DefaultLinks,
	}
	l.Service = library.NewService(l.Cache, resolver, l.Registry, library.Options{
		Global:     []string{l.Global},
		Crossref:   crossref.Expander{Field: "crossref"},
		Formatter:  fm,
		Suffix:     format.MustParse("${year}"),
		Indicators: library.Indicators{Files: "F", Notes: "N", Links: "L"},
		Width:      60,
	})
	return l
}

// AddFile creates an empty library file for key.
func (l *Library) AddFile(t *testing.T, key, ext string) string {
	t.Helper()
	path := filepath.Join(l.Files, key+"."+ext)
	WriteFile(t, path, "")
	return path
}
