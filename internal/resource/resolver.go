package resource

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/starford/bibkit/internal/apperr"
	"github.com/starford/bibkit/internal/crossref"
	"github.com/starford/bibkit/internal/host"
	"github.com/starford/bibkit/internal/models"
	"github.com/starford/bibkit/internal/notes"
)

// CategoryMulti tags candidate lists mixing several resource types.
const CategoryMulti = "multi"

// Want selects the resource types to gather.
type Want struct {
	Files bool
	Notes bool
	Links bool
}

// All wants every resource type.
var All = Want{Files: true, Notes: true, Links: true}

// Candidate is one gathered resource with its completion sub-category.
type Candidate struct {
	models.Resource
	Category string `json:"category"`
}

// Candidates is a category-tagged candidate list. Category is the resource
// type's own category when only one type is present, CategoryMulti otherwise,
// and empty when nothing was found.
type Candidates struct {
	Category string      `json:"category"`
	Items    []Candidate `json:"items"`
}

// Empty reports whether no resource was found.
func (c Candidates) Empty() bool { return len(c.Items) == 0 }

// HasSet holds one predicate per resource type. A nil predicate means that no
// detector for the type is configured.
type HasSet struct {
	Files Predicate
	Notes Predicate
	Links Predicate
}

// Resolver gathers resources for keys through the configured sources.
type Resolver struct {
	Files    []FileSource
	Links    []Link
	Notes    *notes.Registry
	Crossref crossref.Expander
}

// Has builds the availability predicates for recs. Each predicate also holds
// for keys whose cross-referenced record has the resource.
func (r *Resolver) Has(recs Records) HasSet {
	target := func(key string) string {
		return crossref.Target(key, r.Crossref.Field, lookup(recs))
	}
	var files []Predicate
	for _, src := range r.Files {
		files = append(files, src.Has(recs))
	}
	var notesHas Predicate
	if b, err := r.activeNotes(); err == nil {
		notesHas = b.Has
	}
	var links Predicate
	if len(r.Links) > 0 && recs != nil {
		links = func(key string) bool {
			rec, ok := recs.Get(key)
			return ok && len(Links(rec, r.Links)) > 0
		}
	}
	return HasSet{
		Files: WithCrossref(Combine(files...), target),
		Notes: WithCrossref(notesHas, target),
		Links: WithCrossref(links, target),
	}
}

// Gather collects resources of the wanted types for keys and their
// cross-references. Values are deduplicated per type.
func (r *Resolver) Gather(ctx context.Context, recs Records, keys []string, want Want) (Candidates, error) {
	keys = r.Crossref.Expand(keys, lookup(recs))

	var groups [][]Candidate
	if want.Files {
		var files []Candidate
		seen := map[string]struct{}{}
		found := make([]map[string][]string, len(r.Files))
		for i, src := range r.Files {
			found[i] = src.Files(recs, keys)
		}
		for _, k := range keys {
			for i := range r.Files {
				for _, f := range found[i][k] {
					files = addUnique(files, seen, models.ResourceFile, string(models.ResourceFile), f, k)
				}
			}
		}
		groups = append(groups, files)
	}
	if want.Links && recs != nil {
		var links []Candidate
		seen := map[string]struct{}{}
		for _, k := range keys {
			rec, ok := recs.Get(k)
			if !ok {
				continue
			}
			for _, u := range Links(rec, r.Links) {
				links = addUnique(links, seen, models.ResourceURL, string(models.ResourceURL), u, k)
			}
		}
		groups = append(groups, links)
	}
	if want.Notes {
		b, err := r.activeNotes()
		switch {
		case errors.Is(err, apperr.ErrNoBackend):
		case err != nil:
			return Candidates{}, err
		default:
			var list []Candidate
			seen := map[string]struct{}{}
			for _, k := range keys {
				ids, err := b.List(ctx, []string{k})
				if err != nil {
					return Candidates{}, fmt.Errorf("resource: list notes: %w", err)
				}
				for _, id := range ids {
					list = addUnique(list, seen, models.ResourceNote, b.CategoryName(), id, k)
				}
			}
			groups = append(groups, list)
		}
	}

	var out Candidates
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		if out.Category == "" {
			out.Category = g[0].Category
		} else {
			out.Category = CategoryMulti
		}
		out.Items = append(out.Items, g...)
	}
	return out, nil
}

func addUnique(dst []Candidate, seen map[string]struct{}, typ models.ResourceType, category, value, key string) []Candidate {
	if _, dup := seen[value]; dup {
		return dst
	}
	seen[value] = struct{}{}
	return append(dst, Candidate{
		Resource: models.Resource{Type: typ, Value: value, Key: key},
		Category: category,
	})
}

func (r *Resolver) activeNotes() (notes.Backend, error) {
	if r.Notes == nil {
		return notes.Backend{}, apperr.ErrNoBackend
	}
	return r.Notes.Active()
}

// SelectOne picks one candidate. A single candidate is returned without
// prompting unless alwaysPrompt is set. ok is false when there is nothing to
// pick or the user aborted.
func (r *Resolver) SelectOne(ctx context.Context, h host.Completer, cands Candidates, prompt string, alwaysPrompt bool) (Candidate, bool, error) {
	switch {
	case cands.Empty():
		return Candidate{}, false, nil
	case len(cands.Items) == 1 && !alwaysPrompt:
		return cands.Items[0], true, nil
	}

	items := make([]host.Item, len(cands.Items))
	byID := make(map[string]Candidate, len(cands.Items))
	for i, c := range cands.Items {
		id := strconv.Itoa(i)
		items[i] = host.Item{ID: id, Text: c.Value}
		byID[id] = c
	}
	backend, _ := r.activeNotes()

	meta := host.Metadata{
		Category: cands.Category,
		Group: func(it host.Item, transform bool) string {
			c := byID[it.ID]
			switch c.Type {
			case models.ResourceFile:
				if transform {
					return filepath.Base(c.Value)
				}
				return filepath.Base(filepath.Dir(c.Value))
			case models.ResourceNote:
				if backend.Group != nil {
					return backend.Group(c.Value, transform)
				}
				if transform {
					return c.Value
				}
				return backend.DisplayName
			}
			if transform {
				return c.Value
			}
			return ""
		},
		Annotate: func(it host.Item) string {
			c := byID[it.ID]
			if c.Type != models.ResourceNote || backend.Annotate == nil {
				return ""
			}
			return backend.Annotate(c.Value)
		},
	}

	resp, ok, err := h.Complete(ctx, host.Request{Prompt: prompt, Items: items, Metadata: meta})
	if err != nil {
		return Candidate{}, false, fmt.Errorf("resource: select: %w", err)
	}
	if !ok {
		return Candidate{}, false, nil
	}
	c, found := byID[resp.ID]
	return c, found, nil
}

func lookup(recs Records) crossref.LookupFunc {
	if recs == nil {
		return nil
	}
	return recs.Get
}
