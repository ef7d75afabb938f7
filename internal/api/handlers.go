package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/bibkit/internal/apperr"
	"github.com/starford/bibkit/internal/crossref"
	"github.com/starford/bibkit/internal/index"
	"github.com/starford/bibkit/internal/library"
	"github.com/starford/bibkit/internal/parser"
	"github.com/starford/bibkit/internal/resource"
)

// NoteEvents is notified of notes created through the API. *sse.Broker
// implements it.
type NoteEvents interface {
	PublishNoteCreated(key, path string)
}

// Handler holds API route handlers.
type Handler struct {
	lib    *library.Service
	db     index.RecordIndex
	scope  Scope
	events NoteEvents
}

// NewHandler creates a new Handler. scope.Local is added to the global
// bibliography for every request; requests may add files within scope with
// the "local" query parameter. db and events may be nil.
func NewHandler(lib *library.Service, db index.RecordIndex, scope Scope, events NoteEvents) *Handler {
	return &Handler{lib: lib, db: db, scope: scope, events: events}
}

// snapshot takes the request's scope snapshot, writing the error response
// when the bibliography cannot be loaded.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*library.Snapshot, bool) {
	local, err := h.scope.resolve(queryList(r, "local"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return nil, false
	}
	snap, err := h.lib.Snapshot(r.Context(), local)
	if err == nil {
		return snap, true
	}
	var syntaxErr *parser.SyntaxError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		writeJSON(w, http.StatusNotFound, errorBody("bibliography file not found"))
	case errors.As(err, &syntaxErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(syntaxErr.Error()))
	default:
		slog.Error("snapshot failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
	return nil, false
}

// Candidates handles GET /api/candidates.
//
//	@Summary		Rendered candidate lines of every record in scope
//	@Tags			records
//	@Produce		json
//	@Param			width	query		int		false	"Display width"
//	@Param			local	query		string	false	"Additional local bibliography files"
//	@Success		200		{object}	CandidateListResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/candidates [get]
func (h *Handler) Candidates(w http.ResponseWriter, r *http.Request) {
	width, err := queryWidth(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	cands := h.lib.Candidates(r.Context(), snap, width)
	writeJSON(w, http.StatusOK, CandidateListResponse{Candidates: cands, Total: len(cands)})
}

// GetRecord handles GET /api/records/{key}.
//
//	@Summary		Get a single record by citation key
//	@Tags			records
//	@Produce		json
//	@Param			key		path		string	true	"Citation key"
//	@Param			width	query		int		false	"Display width"
//	@Success		200		{object}	RecordDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{key} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	width, err := queryWidth(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	rec, err := h.lib.Record(snap, key)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	display, _ := h.lib.Render(snap, key, width)
	has := snap.Available(key)
	if has == nil {
		has = []string{}
	}
	writeJSON(w, http.StatusOK, RecordDetail{
		Key:      rec.Key,
		Type:     rec.Type,
		Fields:   rec.Fields,
		Source:   snap.View.Source(key),
		Crossref: crossref.Target(key, h.lib.CrossrefField(), snap.View.Get),
		Display:  display,
		Has:      has,
	})
}

// Resources handles GET /api/records/{key}/resources.
//
//	@Summary		Files, notes and links of a record and its cross-references
//	@Tags			records
//	@Produce		json
//	@Param			key		path		string	true	"Citation key"
//	@Param			want	query		string	false	"Resource types"	Enums(files, notes, links)
//	@Success		200		{object}	ResourceListResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{key}/resources [get]
func (h *Handler) Resources(w http.ResponseWriter, r *http.Request) {
	want, err := parseWant(queryList(r, "want"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	if !snap.View.Has(key) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	cands, err := h.lib.Resources(r.Context(), snap, []string{key}, want)
	if err != nil {
		slog.Error("resources failed", slog.String("key", key), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if cands.Items == nil {
		cands.Items = []resource.Candidate{}
	}
	writeJSON(w, http.StatusOK, cands)
}

var errBadWidth = fmt.Errorf("width must be between 0 and %d", library.MaxWidth)

// queryWidth reads the "width" parameter; absent means the configured width.
func queryWidth(r *http.Request) (int, error) {
	v := r.URL.Query().Get("width")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > library.MaxWidth {
		return 0, errBadWidth
	}
	return n, nil
}

var errUnknownWant = errors.New("want must be files, notes or links")

func parseWant(names []string) (resource.Want, error) {
	if len(names) == 0 {
		return resource.All, nil
	}
	var want resource.Want
	for _, n := range names {
		switch n {
		case "files":
			want.Files = true
		case "notes":
			want.Notes = true
		case "links":
			want.Links = true
		default:
			return want, errUnknownWant
		}
	}
	return want, nil
}

// Crossref handles GET /api/crossref.
//
//	@Summary		Expand citation keys with their cross-referenced records
//	@Tags			records
//	@Produce		json
//	@Param			keys	query		string	true	"Comma-separated citation keys"
//	@Success		200		{object}	CrossrefResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/crossref [get]
func (h *Handler) Crossref(w http.ResponseWriter, r *http.Request) {
	keys := queryList(r, "keys")
	if len(keys) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'keys' is required"))
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, CrossrefResponse{Keys: h.lib.Expand(snap, keys)})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across indexed records
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("search index disabled"))
		return
	}
	results, err := h.db.Search(q, queryInt(r, "limit"))
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// CreateNote handles POST /api/notes/{key}.
//
//	@Summary		Create a note for a record with the active notes backend
//	@Tags			notes
//	@Produce		json
//	@Param			key	path		string	true	"Citation key"
//	@Success		201	{object}	NoteCreatedResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{key} [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	path, err := h.lib.CreateNote(r.Context(), snap, key)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrAlreadyExists):
			writeJSON(w, http.StatusConflict, errorBody("note already exists"))
		case errors.Is(err, apperr.ErrInvalidBackend), errors.Is(err, apperr.ErrNoBackend):
			writeJSON(w, http.StatusNotImplemented, errorBody("notes backend cannot create notes"))
		default:
			slog.Error("create note failed", slog.String("key", key), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if h.events != nil {
		h.events.PublishNoteCreated(key, path)
	}
	writeJSON(w, http.StatusCreated, NoteCreatedResponse{Key: key, Path: path})
}
