// Package multiselect builds a multiple-choice selection on top of a
// single-choice completion host by toggling one item per prompt.
package multiselect

import (
	"context"
	"fmt"
	"sort"

	"github.com/starford/bibkit/internal/host"
)

// Selected marks chosen items in the candidate list.
const Selected = "* "

// Session toggles items in and out of a selection until the user exits.
// A Session keeps its input history across runs; deselecting an item drops
// the history entry that the deselecting choice added.
type Session struct {
	Host     host.Completer
	Prompt   string
	Category string

	history []string
}

// History returns the session's chosen IDs, oldest first.
func (s *Session) History() []string {
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// Run prompts until the user picks the empty sentinel, finishes, or aborts,
// and returns the selected IDs sorted. An abort ends the session with the
// selection made so far; only host failures are errors.
func (s *Session) Run(ctx context.Context, items []host.Item) ([]string, error) {
	known := make(map[string]struct{}, len(items))
	for _, it := range items {
		known[it.ID] = struct{}{}
	}
	selected := make(map[string]struct{})

	for {
		req := host.Request{
			Prompt: fmt.Sprintf("%s (%d/%d): ", s.Prompt, len(selected), len(items)),
			Items:  items,
			Metadata: host.Metadata{
				Category: s.Category,
				Affix: func(it host.Item) (string, string) {
					if _, ok := selected[it.ID]; ok {
						return Selected, ""
					}
					return "  ", ""
				},
			},
		}
		resp, ok, err := s.Host.Complete(ctx, req)
		if err != nil {
			return sorted(selected), fmt.Errorf("multiselect: %w", err)
		}
		if !ok || resp.ID == "" {
			return sorted(selected), nil
		}
		if _, valid := known[resp.ID]; valid {
			s.history = append(s.history, resp.ID)
			if _, on := selected[resp.ID]; on {
				delete(selected, resp.ID)
				s.history = s.history[:len(s.history)-1]
			} else {
				selected[resp.ID] = struct{}{}
			}
		}
		if resp.Finish {
			return sorted(selected), nil
		}
	}
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
