// Package host defines the single-choice completion contract the engine
// prompts through, and a line-oriented terminal implementation of it.
package host

import "context"

// Item is one completion candidate.
type Item struct {
	ID   string
	Text string
}

// Metadata carries display hooks for a completion request. Every hook is optional.
type Metadata struct {
	Category string
	// Affix returns text shown before and after the candidate.
	Affix func(Item) (prefix, suffix string)
	// Group returns the group title of item, or with transform set the text
	// to display for it inside its group.
	Group func(item Item, transform bool) string
	// Annotate returns a short description shown next to the candidate.
	Annotate func(Item) string
}

// Request asks the host to pick one item.
type Request struct {
	Prompt   string
	Items    []Item
	Metadata Metadata
}

// Response is the host's answer. An empty ID is the exit sentinel. Finish
// asks the caller to accept ID and stop prompting.
type Response struct {
	ID     string
	Finish bool
}

// Completer prompts for a single choice. ok is false when the user aborted;
// an abort is never reported as an error.
type Completer interface {
	Complete(ctx context.Context, req Request) (resp Response, ok bool, err error)
}

// Func adapts a function to Completer.
type Func func(ctx context.Context, req Request) (Response, bool, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, req Request) (Response, bool, error) {
	return f(ctx, req)
}

// Scripted replays a fixed sequence of responses and aborts once they run out.
// It records every request it receives.
type Scripted struct {
	Responses []Response
	Requests  []Request
}

// Complete returns the next scripted response.
func (s *Scripted) Complete(_ context.Context, req Request) (Response, bool, error) {
	s.Requests = append(s.Requests, req)
	if len(s.Responses) == 0 {
		return Response{}, false, nil
	}
	resp := s.Responses[0]
	s.Responses = s.Responses[1:]
	return resp, true, nil
}
