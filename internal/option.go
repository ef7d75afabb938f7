package internal

import (
	"io"

	"github.com/starford/bibkit/internal/host"
	"github.com/starford/bibkit/internal/resource"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	local  []string
	host   host.Completer
	out    io.Writer
	logOut io.Writer
	width  int
	multi  bool
	want   resource.Want
	prompt bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLocal adds bibliography files after the configured ones.
func WithLocal(paths ...string) Option {
	return func(a *application) {
		a.local = append(a.local, paths...)
	}
}

// WithHost sets the completion host used by interactive commands. Without
// one a terminal host is opened.
func WithHost(h host.Completer) Option {
	return func(a *application) {
		a.host = h
	}
}

// WithOutput sets where command results are written.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithLogOutput sets where logs are written.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

// WithWidth overrides the configured display width.
func WithWidth(n int) Option {
	return func(a *application) {
		a.width = n
	}
}

// WithMulti makes Select collect any number of keys.
func WithMulti(multi bool) Option {
	return func(a *application) {
		a.multi = multi
	}
}

// WithWant restricts the resource types offered by Resources.
func WithWant(want resource.Want) Option {
	return func(a *application) {
		a.want = want
	}
}

// WithAlwaysPrompt makes Resources prompt even for a single candidate.
func WithAlwaysPrompt(always bool) Option {
	return func(a *application) {
		a.prompt = always
	}
}
