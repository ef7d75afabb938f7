package library

import (
	"context"
	"fmt"

	"github.com/starford/bibkit/internal/host"
	"github.com/starford/bibkit/internal/multiselect"
	"github.com/starford/bibkit/internal/resource"
)

// CategoryRecord is the completion category of record candidates.
const CategoryRecord = "citation-key"

// SelectKeys prompts for records of snap. With multi set the user toggles any
// number of keys; otherwise one key is picked. An abort yields no keys.
func (s *Service) SelectKeys(ctx context.Context, h host.Completer, snap *Snapshot, prompt string, width int, multi bool) ([]string, error) {
	cands := s.Candidates(ctx, snap, width)
	items := make([]host.Item, len(cands))
	suffix := make(map[string]string, len(cands))
	for i, c := range cands {
		items[i] = host.Item{ID: c.Key, Text: c.Display}
		suffix[c.Key] = c.Suffix
	}
	if multi {
		sess := &multiselect.Session{Host: h, Prompt: prompt, Category: CategoryRecord}
		return sess.Run(ctx, items)
	}

	resp, ok, err := h.Complete(ctx, host.Request{
		Prompt: prompt + ": ",
		Items:  items,
		Metadata: host.Metadata{
			Category: CategoryRecord,
			Annotate: func(it host.Item) string { return suffix[it.ID] },
		},
	})
	if err != nil {
		return nil, fmt.Errorf("library: select: %w", err)
	}
	if !ok || resp.ID == "" || !snap.View.Has(resp.ID) {
		return nil, nil
	}
	return []string{resp.ID}, nil
}

// SelectResource gathers the wanted resources of keys and lets the user pick
// one. ok is false when nothing was found or the user aborted.
func (s *Service) SelectResource(ctx context.Context, h host.Completer, snap *Snapshot, keys []string, want resource.Want, alwaysPrompt bool) (resource.Candidate, bool, error) {
	cands, err := s.Resources(ctx, snap, keys, want)
	if err != nil {
		return resource.Candidate{}, false, err
	}
	return s.resolver.SelectOne(ctx, h, cands, "Resource: ", alwaysPrompt)
}
