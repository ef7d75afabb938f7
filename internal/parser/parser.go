// Package parser reads BibTeX/BibLaTeX and CSL-JSON bibliography files into records.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/bibkit/internal/models"
)

// Result holds the output of parsing one bibliography file.
type Result struct {
	Records map[string]models.Record
	Keys    []string // file order, first occurrence
}

func newResult() *Result {
	return &Result{Records: make(map[string]models.Record)}
}

// add stores rec; a duplicate key replaces the earlier record but keeps its position.
func (r *Result) add(rec models.Record) {
	if _, dup := r.Records[rec.Key]; !dup {
		r.Keys = append(r.Keys, rec.Key)
	}
	r.Records[rec.Key] = rec
}

// Supported reports whether path has a bibliography file extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bib", ".bibtex", ".json":
		return true
	}
	return false
}

// ParseFile reads path and parses it according to its extension.
// .json files are CSL-JSON; everything else is treated as BibTeX.
func ParseFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("parser: read %s: %w", path, err)
	}
	var res *Result
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		res, err = ParseCSL(data)
	default:
		res, err = ParseBibTeX(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parser: %s: %w", path, err)
	}
	return res, nil
}
