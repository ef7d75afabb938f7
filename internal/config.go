package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/bibkit/internal/format"
	"github.com/starford/bibkit/internal/library"
	"github.com/starford/bibkit/internal/notes"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

var extPattern = regexp.MustCompile(`^\.?[A-Za-z0-9]+$`)

// Config represents the application configuration.
type Config struct {
	App          ApplicationConfig  `yaml:"app" toml:"app"`
	Bibliography BibliographyConfig `yaml:"bibliography" toml:"bibliography"`
	Crossref     CrossrefConfig     `yaml:"crossref" toml:"crossref"`
	Library      LibraryConfig      `yaml:"library" toml:"library"`
	Notes        NotesConfig        `yaml:"notes" toml:"notes"`
	Display      DisplayConfig      `yaml:"display" toml:"display"`
	SQLite       SQLiteConfig       `yaml:"sqlite" toml:"sqlite"`
	Auth         AuthConfig         `yaml:"auth" toml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"app", c.App},
		{"bibliography", c.Bibliography},
		{"library", c.Library},
		{"notes", c.Notes},
		{"display", c.Display},
		{"sqlite", c.SQLite},
		{"auth", &c.Auth},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c HTTPConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// BibliographyConfig lists bibliography files. Local files are consulted
// after global ones and win on key collisions. API requests may add local
// files only from below Dirs.
type BibliographyConfig struct {
	Global []string `yaml:"global" toml:"global"`
	Local  []string `yaml:"local" toml:"local"`
	Dirs   []string `yaml:"dirs" toml:"dirs"`
}

// Validate validates the bibliography configuration.
func (c BibliographyConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Global, validation.Required.When(len(c.Local) == 0).Error("at least one bibliography file is required")),
		validation.Field(&c.Dirs, validation.Each(validation.Required)),
	)
}

// CrossrefConfig controls cross-reference expansion. An empty field disables it.
type CrossrefConfig struct {
	Field      string `yaml:"field" toml:"field"`
	Transitive bool   `yaml:"transitive" toml:"transitive"`
}

// LibraryConfig describes where record files are found.
type LibraryConfig struct {
	// Paths are directories holding files named after citation keys.
	Paths      []string `yaml:"paths" toml:"paths"`
	Extensions []string `yaml:"extensions" toml:"extensions"`
	// Separator ends the key part of a file name, e.g. "-" for "key-suppl.pdf".
	Separator string `yaml:"separator" toml:"separator"`
	// FileField is a record field listing attached files, e.g. "file".
	FileField string `yaml:"file_field" toml:"file_field"`
}

// Validate validates the library configuration.
func (c LibraryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Extensions,
			validation.Required.When(len(c.Paths) > 0),
			validation.Each(validation.Match(extPattern)),
		),
	)
}

// NotesConfig selects the notes backend.
type NotesConfig struct {
	Backend   string   `yaml:"backend" toml:"backend"`
	Paths     []string `yaml:"paths" toml:"paths"`
	Extension string   `yaml:"extension" toml:"extension"`
}

// Validate validates the notes configuration.
func (c NotesConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.In(notes.DirBackendName)),
		validation.Field(&c.Paths, validation.Required.When(c.Backend == notes.DirBackendName)),
		validation.Field(&c.Extension, validation.Match(extPattern)),
	)
}

// TransformRule applies named transforms to fields.
type TransformRule struct {
	Fields     []string `yaml:"fields" toml:"fields"`
	Transforms []string `yaml:"transforms" toml:"transforms"`
}

// Validate validates the transform rule.
func (r TransformRule) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Fields, validation.Required),
		validation.Field(&r.Transforms, validation.Required, validation.Each(validation.By(knownTransform))),
	)
}

func knownTransform(v any) error {
	name, _ := v.(string)
	if _, ok := format.Builtins()[name]; !ok {
		return fmt.Errorf("unknown transform %q", name)
	}
	return nil
}

func validTemplate(v any) error {
	src, _ := v.(string)
	if src == "" {
		return nil
	}
	_, err := format.Parse(src)
	return err
}

// fitsWidth rejects templates whose literals and sized fields alone overflow width.
func fitsWidth(width int) validation.RuleFunc {
	return func(value any) error {
		tpl, err := format.Parse(value.(string))
		if err != nil || width <= 0 {
			return nil
		}
		if fixed, _ := tpl.FixedWidth(); fixed > width {
			return fmt.Errorf("template needs %d fixed columns, width is %d", fixed, width)
		}
		return nil
	}
}

// DisplayConfig controls how records are rendered.
type DisplayConfig struct {
	Main     string `yaml:"main" toml:"main"`
	Suffix   string `yaml:"suffix" toml:"suffix"`
	Width    int    `yaml:"width" toml:"width"`
	Ellipsis string `yaml:"ellipsis" toml:"ellipsis"`
	// Transforms replace the default display rules when set.
	Transforms []TransformRule     `yaml:"transforms" toml:"transforms"`
	Indicators library.Indicators `yaml:"indicators" toml:"indicators"`
}

// Validate validates the display configuration.
func (c DisplayConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Main, validation.Required, validation.By(validTemplate), validation.By(fitsWidth(c.Width))),
		validation.Field(&c.Suffix, validation.By(validTemplate)),
		validation.Field(&c.Width, validation.Min(20), validation.Max(library.MaxWidth)),
		validation.Field(&c.Transforms),
	)
}

// Formatter builds the display formatter.
func (c *DisplayConfig) Formatter() *format.Formatter {
	f := format.NewFormatter(c.Ellipsis)
	if len(c.Transforms) == 0 {
		return f
	}
	f.Rules = f.Rules[:0]
	for _, r := range c.Transforms {
		rule := format.Rule{Fields: r.Fields}
		for _, name := range r.Transforms {
			rule.Funcs = append(rule.Funcs, f.Named[name])
		}
		f.Rules = append(f.Rules, rule)
	}
	return f
}

// Templates parses the main and suffix templates. The suffix is nil when unset.
func (c *DisplayConfig) Templates() (main, suffix format.Template, err error) {
	main, err = format.Parse(c.Main)
	if err != nil {
		return nil, nil, err
	}
	if c.Suffix != "" {
		if suffix, err = format.Parse(c.Suffix); err != nil {
			return nil, nil, err
		}
	}
	return main, suffix, nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Validate validates the SQLite configuration.
func (c SQLiteConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

var errEmptyToken = errors.New(`mode is "token" but token is empty`)

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return errEmptyToken
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Crossref: CrossrefConfig{
			Field: "crossref",
		},
		Library: LibraryConfig{
			Extensions: []string{"pdf"},
		},
		Notes: NotesConfig{
			Extension: "md",
		},
		Display: DisplayConfig{
			Main:     "${author editor:30%sn}  ${date year issued:4%year}  ${title:*}",
			Suffix:   "${=key=:15}  ${=type=:12}",
			Width:    120,
			Ellipsis: "…",
			Indicators: library.Indicators{
				Files: "F",
				Notes: "N",
				Links: "L",
			},
		},
		SQLite: SQLiteConfig{
			Path: "./bibkit.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
