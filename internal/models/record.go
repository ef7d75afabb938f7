// Package models defines the domain types for bibkit.
package models

import (
	"strings"
	"time"
)

// Record is one bibliographic entry identified by its citation key.
type Record struct {
	Key    string            `json:"key"`
	Type   string            `json:"type"`
	Fields map[string]string `json:"fields"`
	// Order lists field names in source order.
	Order []string `json:"-"`
}

// Get returns the trimmed value of a field, or "" if absent.
func (r Record) Get(field string) string {
	if r.Fields == nil {
		return ""
	}
	return strings.TrimSpace(r.Fields[strings.ToLower(field)])
}

// FieldNames returns the record's field names in source order. Fields missing
// from Order (records built by hand) are appended at the end.
func (r Record) FieldNames() []string {
	if len(r.Order) == len(r.Fields) {
		return r.Order
	}
	seen := make(map[string]struct{}, len(r.Order))
	out := make([]string, 0, len(r.Fields))
	for _, name := range r.Order {
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for name := range r.Fields {
		if _, ok := seen[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Fingerprint is the change token of a bibliography source.
type Fingerprint struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
}

// Equal reports whether two fingerprints describe the same file state.
func (f Fingerprint) Equal(o Fingerprint) bool {
	return f.Path == o.Path && f.Size == o.Size && f.ModTime.Equal(o.ModTime)
}

// RecordStore is the parsed content of one bibliography file. A published
// store is never mutated; a refresh replaces it.
type RecordStore struct {
	Fingerprint Fingerprint
	Records     map[string]Record
	Keys        []string // file order
}

// Path returns the source file path.
func (s *RecordStore) Path() string {
	return s.Fingerprint.Path
}

// ResourceType classifies a resource attached to a record.
type ResourceType string

// Resource types.
const (
	ResourceFile ResourceType = "file"
	ResourceURL  ResourceType = "url"
	ResourceNote ResourceType = "note"
)

// Resource is a file, link, or note associated with a record.
type Resource struct {
	Type  ResourceType `json:"type"`
	Value string       `json:"value"`
	Key   string       `json:"key,omitempty"`
}
