// Package crossref expands citation key sets with the records they reference.
package crossref

import (
	"strings"

	"github.com/starford/bibkit/internal/models"
)

// LookupFunc returns the record for key, if known.
type LookupFunc func(key string) (models.Record, bool)

// Target returns the key referenced by key's record through field, or "".
func Target(key, field string, lookup LookupFunc) string {
	if field == "" || lookup == nil {
		return ""
	}
	rec, ok := lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(rec.Get(field))
}

// Expand returns keys followed, each in place, by the key its record references
// through field. The result is deduplicated keeping first occurrences, so
// originals come before their cross-references. References are followed one
// level deep; an empty field only deduplicates.
func Expand(keys []string, field string, lookup LookupFunc) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	emit := func(k string) {
		if k == "" {
			return
		}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, k := range keys {
		emit(k)
		emit(Target(k, field, lookup))
	}
	return out
}

// ExpandTransitive is Expand following reference chains to any depth.
// Cycles terminate at the first repeated key.
func ExpandTransitive(keys []string, field string, lookup LookupFunc) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		for k != "" {
			if _, dup := seen[k]; dup {
				break
			}
			seen[k] = struct{}{}
			out = append(out, k)
			k = Target(k, field, lookup)
		}
	}
	return out
}

// Expander picks one-level or transitive expansion.
type Expander struct {
	Field      string
	Transitive bool
}

// Expand applies the configured expansion.
func (e Expander) Expand(keys []string, lookup LookupFunc) []string {
	if e.Transitive {
		return ExpandTransitive(keys, e.Field, lookup)
	}
	return Expand(keys, e.Field, lookup)
}
