package internal

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/bibkit/internal/host"
	"github.com/starford/bibkit/internal/index"
	"github.com/starford/bibkit/internal/library"
	"github.com/starford/bibkit/internal/mcpserver"
)

// ServeMCP serves the MCP tools on stdin/stdout. Logs must not go to stdout;
// pass WithLogOutput.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, c, err := setup(opts)
	if err != nil {
		return err
	}
	local := slices.Concat(c.cfg.Bibliography.Local, app.local)

	db, err := index.Open(c.cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()
	if err := syncIndex(ctx, c.library, db, local, c.logger); err != nil {
		c.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return mcpserver.New(c.library, db, local).ServeStdio()
}

// session is an interactive command's scope snapshot and completion host.
type session struct {
	app   *application
	c     *components
	snap  *library.Snapshot
	host  host.Completer
	close func()
}

func openSession(ctx context.Context, opts []Option) (*session, error) {
	app, c, err := setup(opts)
	if err != nil {
		return nil, err
	}
	snap, err := c.library.Snapshot(ctx, slices.Concat(c.cfg.Bibliography.Local, app.local))
	if err != nil {
		return nil, err
	}
	s := &session{app: app, c: c, snap: snap, host: app.host, close: func() {}}
	if s.host == nil {
		term, err := host.NewTerminal(app.logOut)
		if err != nil {
			return nil, err
		}
		s.host, s.close = term, func() { _ = term.Close() }
	}
	return s, nil
}

// Select prompts for citation keys and prints them, one per line.
func Select(ctx context.Context, opts ...Option) error {
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	prompt := "Reference"
	if s.app.multi {
		prompt = "References"
	}
	keys, err := s.c.library.SelectKeys(ctx, s.host, s.snap, prompt, s.app.width, s.app.multi)
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintln(s.app.out, k)
	}
	return nil
}

// Resources gathers the resources of keys, or of keys selected interactively
// when none are given, lets the user pick one and prints it.
func Resources(ctx context.Context, keys []string, opts ...Option) error {
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	if len(keys) == 0 {
		keys, err = s.c.library.SelectKeys(ctx, s.host, s.snap, "References", s.app.width, true)
		if err != nil {
			return err
		}
	}
	if len(keys) == 0 {
		return nil
	}
	cand, ok, err := s.c.library.SelectResource(ctx, s.host, s.snap, keys, s.app.want, s.app.prompt)
	if err != nil {
		return err
	}
	if !ok {
		s.c.logger.Info("no resource selected", slog.Any("keys", keys))
		return nil
	}
	fmt.Fprintln(s.app.out, cand.Value)
	return nil
}

// Render prints the display line of each key.
func Render(ctx context.Context, keys []string, opts ...Option) error {
	app, c, err := setup(opts)
	if err != nil {
		return err
	}
	snap, err := c.library.Snapshot(ctx, slices.Concat(c.cfg.Bibliography.Local, app.local))
	if err != nil {
		return err
	}
	for _, k := range keys {
		line, err := c.library.Render(snap, k, app.width)
		if err != nil {
			return err
		}
		fmt.Fprintln(app.out, line)
	}
	return nil
}

// CreateNote creates a note for key and prints its path.
func CreateNote(ctx context.Context, key string, opts ...Option) error {
	app, c, err := setup(opts)
	if err != nil {
		return err
	}
	snap, err := c.library.Snapshot(ctx, slices.Concat(c.cfg.Bibliography.Local, app.local))
	if err != nil {
		return err
	}
	path, err := c.library.CreateNote(ctx, snap, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.out, path)
	return nil
}
