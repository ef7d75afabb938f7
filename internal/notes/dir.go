package notes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"

	"github.com/starford/bibkit/internal/apperr"
	"github.com/starford/bibkit/internal/models"
	"github.com/starford/bibkit/internal/storage"
)

// DirBackendName is the registered name of the directory backend.
const DirBackendName = "directory"

// TitleFunc renders the heading of a new note.
type TitleFunc func(rec models.Record) string

// Dir keeps notes as files named after the slugged citation key in one or
// more directories. New notes go to the first directory.
type Dir struct {
	dirs  []*storage.FS
	ext   string
	title TitleFunc
}

// NewDir opens the note directories, creating the first one if needed.
func NewDir(paths []string, ext string, title TitleFunc) (*Dir, error) {
	if len(paths) == 0 {
		return nil, errors.New("notes: no note directories configured")
	}
	if err := os.MkdirAll(paths[0], 0o755); err != nil {
		return nil, fmt.Errorf("notes: create %s: %w", paths[0], err)
	}
	d := &Dir{ext: strings.TrimPrefix(ext, "."), title: title}
	if d.ext == "" {
		d.ext = "md"
	}
	for _, p := range paths {
		fs, err := storage.NewFS(p)
		if err != nil {
			return nil, fmt.Errorf("notes: %w", err)
		}
		d.dirs = append(d.dirs, fs)
	}
	return d, nil
}

// FileName returns the note file name for key.
func (d *Dir) FileName(key string) string {
	return slug.Make(key) + "." + d.ext
}

// Backend returns d's capabilities.
func (d *Dir) Backend() Backend {
	return Backend{
		Name:        DirBackendName,
		DisplayName: "Notes",
		Category:    DefaultCategory,
		List:        d.List,
		Has:         d.Has,
		Open:        d.Open,
		Create:      d.Create,
		Annotate:    d.Annotate,
		Group:       d.Group,
	}
}

// Has reports whether any directory holds a note for key.
func (d *Dir) Has(key string) bool {
	name := d.FileName(key)
	for _, fs := range d.dirs {
		if fs.Exists(name) {
			return true
		}
	}
	return false
}

// List returns the absolute paths of the notes for keys.
func (d *Dir) List(_ context.Context, keys []string) ([]string, error) {
	var out []string
	for _, k := range keys {
		name := d.FileName(k)
		for _, fs := range d.dirs {
			if !fs.Exists(name) {
				continue
			}
			abs, err := fs.Abs(name)
			if err != nil {
				return nil, err
			}
			out = append(out, abs)
		}
	}
	return out, nil
}

// Open reads the note at the absolute path note.
func (d *Dir) Open(_ context.Context, note string) (*Note, error) {
	fs, rel, ok := d.locate(note)
	if !ok {
		return nil, fmt.Errorf("notes: open %s: %w", note, apperr.ErrNotFound)
	}
	data, err := fs.Read(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("notes: open %s: %w", note, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &Note{ID: note, Content: string(data)}, nil
}

// Create writes a new note for rec in the first directory and returns its path.
func (d *Dir) Create(_ context.Context, rec models.Record) (string, error) {
	fs := d.dirs[0]
	name := d.FileName(rec.Key)
	if fs.Exists(name) {
		return "", fmt.Errorf("notes: create %s: %w", name, apperr.ErrAlreadyExists)
	}
	heading := rec.Key
	if d.title != nil {
		if t := strings.TrimSpace(d.title(rec)); t != "" {
			heading = t
		}
	}
	content := fmt.Sprintf("# %s\n\n", heading)
	if err := fs.Write(name, []byte(content)); err != nil {
		return "", fmt.Errorf("notes: create: %w", err)
	}
	return fs.Abs(name)
}

// Annotate returns the first non-empty line of the note.
func (d *Dir) Annotate(note string) string {
	fs, rel, ok := d.locate(note)
	if !ok {
		return ""
	}
	data, err := fs.Read(rel)
	if err != nil {
		return ""
	}
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		if line := strings.TrimSpace(strings.TrimLeft(sc.Text(), "#")); line != "" {
			return line
		}
	}
	return ""
}

// Group puts every note under "Notes" and displays notes by file name.
func (d *Dir) Group(note string, transform bool) string {
	if transform {
		return filepath.Base(note)
	}
	return "Notes"
}

func (d *Dir) locate(abs string) (*storage.FS, string, bool) {
	for _, fs := range d.dirs {
		rel, err := filepath.Rel(fs.Root(), abs)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		return fs, rel, true
	}
	return nil, "", false
}
