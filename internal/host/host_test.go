package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var items = []Item{
	{ID: "smith2020", Text: "Smith  2020  Deep Learning"},
	{ID: "doe2019", Text: "Doe    2019  Shallow Learning"},
	{ID: "roe2018", Text: "Roe    2018  Graph Theory"},
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     Response
		narrowed int
		done     bool
	}{
		{name: "empty is exit", input: "  ", want: Response{}, done: true},
		{name: "index", input: "2", want: Response{ID: "doe2019"}, done: true},
		{name: "index out of range filters", input: "7", narrowed: 0},
		{name: "unique substring", input: "graph", want: Response{ID: "roe2018"}, done: true},
		{name: "ambiguous substring", input: "learning", narrowed: 2},
		{name: "exact id", input: "smith2020", want: Response{ID: "smith2020"}, done: true},
		{name: "finish with index", input: "1!", want: Response{ID: "smith2020", Finish: true}, done: true},
		{name: "bare finish", input: "!", want: Response{Finish: true}, done: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, narrowed, done := Match(tt.input, items)
			assert.Equal(t, tt.done, done)
			if tt.done {
				assert.Equal(t, tt.want, resp)
				return
			}
			assert.Len(t, narrowed, tt.narrowed)
		})
	}
}

func TestScripted(t *testing.T) {
	s := &Scripted{Responses: []Response{{ID: "a"}}}
	resp, ok, err := s.Complete(context.Background(), Request{Prompt: "p1"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", resp.ID)

	_, ok, err = s.Complete(context.Background(), Request{Prompt: "p2"})
	require.NoError(t, err)
	assert.False(t, ok, "exhausted script aborts")
	assert.Len(t, s.Requests, 2)
}
