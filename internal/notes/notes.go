// Package notes holds the registry of notes backends and a directory backend
// that keeps one note file per citation key.
package notes

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/bibkit/internal/apperr"
	"github.com/starford/bibkit/internal/models"
)

// Capability function types. They are aliases so that plain function values
// stored in a capability map satisfy them.
type (
	ListFunc     = func(ctx context.Context, keys []string) ([]string, error)
	HasFunc      = func(key string) bool
	OpenFunc     = func(ctx context.Context, note string) (*Note, error)
	CreateFunc   = func(ctx context.Context, rec models.Record) (string, error)
	AnnotateFunc = func(note string) string
	GroupFunc    = func(note string, transform bool) string
)

// Capability names accepted by RegisterCapabilities.
const (
	CapList        = "list"
	CapHas         = "has"
	CapOpen        = "open"
	CapCreate      = "create"
	CapDisplayName = "display-name"
	CapCategory    = "category"
	CapAnnotate    = "annotate"
	CapGroup       = "group"
)

// DefaultCategory is the completion category of backends that declare none.
const DefaultCategory = "note"

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Note is an opened note.
type Note struct {
	ID      string `json:"id"`
	Key     string `json:"key,omitempty"`
	Content string `json:"content"`
}

// Backend is a named set of note capabilities. List, Has and Open are
// required; the rest are optional.
type Backend struct {
	Name        string
	DisplayName string
	Category    string

	List     ListFunc
	Has      HasFunc
	Open     OpenFunc
	Create   CreateFunc
	Annotate AnnotateFunc
	Group    GroupFunc
}

// Validate checks the required capabilities.
func (b *Backend) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.Name, validation.Required, validation.Match(namePattern)),
		validation.Field(&b.Category, validation.Match(namePattern)),
		validation.Field(&b.List, validation.NotNil),
		validation.Field(&b.Has, validation.NotNil),
		validation.Field(&b.Open, validation.NotNil),
	)
}

// CategoryName returns the declared category or DefaultCategory.
func (b Backend) CategoryName() string {
	if b.Category == "" {
		return DefaultCategory
	}
	return b.Category
}

// Registry maps backend names to backends and tracks the active one.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	backends map[string]Backend
	active   string
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger, backends: make(map[string]Backend)}
}

// Register validates b and adds it, replacing any backend of the same name.
func (r *Registry) Register(b Backend) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("notes: register %q: %w: %w", b.Name, apperr.ErrInvalidBackend, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name] = b
	return nil
}

// RegisterCapabilities builds a backend from a capability map. A value of the
// wrong type is an error; unknown capability names are logged and ignored.
func (r *Registry) RegisterCapabilities(name string, caps map[string]any) error {
	b := Backend{Name: name}
	for capName, v := range caps {
		var err error
		switch capName {
		case CapList:
			err = assign(&b.List, capName, v)
		case CapHas:
			err = assign(&b.Has, capName, v)
		case CapOpen:
			err = assign(&b.Open, capName, v)
		case CapCreate:
			err = assign(&b.Create, capName, v)
		case CapAnnotate:
			err = assign(&b.Annotate, capName, v)
		case CapGroup:
			err = assign(&b.Group, capName, v)
		case CapDisplayName:
			err = assign(&b.DisplayName, capName, v)
		case CapCategory:
			err = assign(&b.Category, capName, v)
		default:
			r.logger.Warn("notes: unknown backend capability",
				slog.String("backend", name),
				slog.String("capability", capName))
		}
		if err != nil {
			return fmt.Errorf("notes: register %q: %w: %w", name, apperr.ErrInvalidBackend, err)
		}
	}
	return r.Register(b)
}

func assign[T any](dst *T, name string, v any) error {
	t, ok := v.(T)
	if !ok {
		return fmt.Errorf("capability %q has type %T, want %T", name, v, *dst)
	}
	*dst = t
	return nil
}

// Activate makes the named backend the active one.
func (r *Registry) Activate(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backends[name]; !ok {
		return fmt.Errorf("notes: activate %q: %w", name, apperr.ErrNotFound)
	}
	r.active = name
	return nil
}

// Active returns the active backend, or apperr.ErrNoBackend.
func (r *Registry) Active() (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[r.active]
	if !ok {
		return Backend{}, apperr.ErrNoBackend
	}
	return b, nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.backends))
	for n := range r.backends {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
