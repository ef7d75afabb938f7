package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/bibkit/internal/bibcache"
	"github.com/starford/bibkit/internal/crossref"
	"github.com/starford/bibkit/internal/library"
	"github.com/starford/bibkit/internal/notes"
	"github.com/starford/bibkit/internal/resource"
	"github.com/starford/bibkit/internal/storage"
)

var errNoConfig = errors.New("config is required")

// components are the services every command shares.
type components struct {
	cfg     *Config
	logger  *slog.Logger
	cache   *bibcache.Cache
	notes   *notes.Registry
	library *library.Service
}

// setup applies opts and wires the components. Logs go to stdout unless
// WithLogOutput says otherwise.
func setup(opts []Option) (*application, *components, error) {
	app := &application{out: os.Stdout, logOut: os.Stdout, want: resource.All}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, errNoConfig
	}
	cfg := app.config
	if app.width > 0 {
		cfg.Display.Width = app.width
	}

	logger := newLogger(app.logOut, cfg.App.LogLevel)
	slog.SetDefault(logger)

	c, err := newComponents(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return app, c, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func newComponents(cfg *Config, logger *slog.Logger) (*components, error) {
	fm := cfg.Display.Formatter()
	mainTpl, suffixTpl, err := cfg.Display.Templates()
	if err != nil {
		return nil, fmt.Errorf("display templates: %w", err)
	}
	cache := bibcache.New(
		bibcache.WithLogger(logger),
		bibcache.WithFormatter(fm, mainTpl),
	)

	resolver := &resource.Resolver{Links: resource.DefaultLinks}
	if len(cfg.Library.Paths) > 0 {
		src := &resource.LibrarySource{
			Extensions: cfg.Library.Extensions,
			Separator:  cfg.Library.Separator,
			Logger:     logger,
		}
		for _, p := range cfg.Library.Paths {
			fs, err := storage.NewFS(p)
			if err != nil {
				return nil, fmt.Errorf("library path: %w", err)
			}
			src.Dirs = append(src.Dirs, fs)
		}
		resolver.Files = append(resolver.Files, src)
	}
	if cfg.Library.FileField != "" {
		field := &resource.FieldSource{Field: cfg.Library.FileField}
		if len(cfg.Library.Paths) > 0 {
			field.BaseDir = cfg.Library.Paths[0]
		}
		resolver.Files = append(resolver.Files, field)
	}

	reg := notes.NewRegistry(logger)
	if cfg.Notes.Backend != "" {
		if err := registerNotes(reg, cfg.Notes); err != nil {
			return nil, err
		}
	}

	lib := library.NewService(cache, resolver, reg, library.Options{
		Global:     cfg.Bibliography.Global,
		Crossref:   crossref.Expander{Field: cfg.Crossref.Field, Transitive: cfg.Crossref.Transitive},
		Formatter:  fm,
		Suffix:     suffixTpl,
		Indicators: cfg.Display.Indicators,
		Width:      cfg.Display.Width,
	})

	return &components{cfg: cfg, logger: logger, cache: cache, notes: reg, library: lib}, nil
}

func registerNotes(reg *notes.Registry, cfg NotesConfig) error {
	switch cfg.Backend {
	case notes.DirBackendName:
		dir, err := notes.NewDir(cfg.Paths, cfg.Extension, nil)
		if err != nil {
			return fmt.Errorf("notes: %w", err)
		}
		if err := reg.Register(dir.Backend()); err != nil {
			return err
		}
	}
	if err := reg.Activate(cfg.Backend); err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	return nil
}
