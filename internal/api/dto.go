package api

import (
	"github.com/starford/bibkit/internal/index"
	"github.com/starford/bibkit/internal/library"
	"github.com/starford/bibkit/internal/resource"
)

// CandidateListResponse wraps the rendered candidate lines of a scope.
type CandidateListResponse struct {
	Candidates []library.Candidate `json:"candidates" validate:"required"`
	Total      int                 `json:"total" example:"42" validate:"required"`
}

// RecordDetail is the full record response.
type RecordDetail struct {
	Key      string            `json:"key" example:"smith2020" validate:"required"`
	Type     string            `json:"type" example:"article" validate:"required"`
	Fields   map[string]string `json:"fields" validate:"required"`
	Source   string            `json:"source" example:"/home/me/refs.bib" validate:"required"`
	Crossref string            `json:"crossref,omitempty" example:"smith2020book"`
	Display  string            `json:"display" validate:"required"`
	Has      []string          `json:"has" example:"files,links" validate:"required"`
}

// ResourceListResponse is the category-tagged resource list of a record.
type ResourceListResponse = resource.Candidates

// CrossrefResponse lists keys expanded with their cross-references.
type CrossrefResponse struct {
	Keys []string `json:"keys" example:"chapter1,book" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// NoteCreatedResponse is returned after a note was created.
type NoteCreatedResponse struct {
	Key  string `json:"key" example:"smith2020" validate:"required"`
	Path string `json:"path" example:"/home/me/notes/smith2020.md" validate:"required"`
}
