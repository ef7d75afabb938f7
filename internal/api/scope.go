package api

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/starford/bibkit/internal/parser"
)

var errOutOfScope = errors.New("local bibliography file is outside the allowed scope")

// Scope limits the bibliography files a request may add with the "local"
// query parameter. Local files are part of every request; Dirs admit any
// supported bibliography file below them.
type Scope struct {
	Local []string
	Dirs  []string
}

// resolve checks the requested files against the scope and returns the
// request's local list.
func (s Scope) resolve(requested []string) ([]string, error) {
	out := make([]string, 0, len(s.Local)+len(requested))
	out = append(out, s.Local...)
	for _, p := range requested {
		if !s.allows(p) {
			return nil, errOutOfScope
		}
		out = append(out, p)
	}
	return out, nil
}

func (s Scope) allows(p string) bool {
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	for _, l := range s.Local {
		if la, err := filepath.Abs(l); err == nil && la == abs {
			return true
		}
	}
	if !parser.Supported(abs) {
		return false
	}
	for _, d := range s.Dirs {
		dir, err := filepath.Abs(d)
		if err != nil || !within(dir, abs) {
			continue
		}
		// A symlink below dir must not lead out of it.
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return true
		}
		realDir, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return false
		}
		if within(realDir, resolved) {
			return true
		}
	}
	return false
}

// within reports whether path lies strictly below dir. Both must be clean
// and absolute.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
