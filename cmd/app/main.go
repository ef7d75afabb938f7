package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/bibkit/internal"
	"github.com/starford/bibkit/internal/resource"
	pkgconfig "github.com/starford/bibkit/pkg/config"
)

// userConfigPath is the per-user config read when the --config file is absent.
func userConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "bibkit", "config.yaml")
}

// baseOptions loads the config and collects the flags shared by subcommands.
func baseOptions(cmd *cli.Command) ([]internal.Option, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), userConfigPath(), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithLocal(cmd.StringSlice("local")...),
	}
	if w := cmd.Int("width"); w > 0 {
		opts = append(opts, internal.WithWidth(int(w)))
	}
	return opts, nil
}

// interactiveOptions keep stdout for results only.
func interactiveOptions(cmd *cli.Command) ([]internal.Option, error) {
	opts, err := baseOptions(cmd)
	if err != nil {
		return nil, err
	}
	return append(opts, internal.WithLogOutput(os.Stderr)), nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := baseOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := interactiveOptions(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func selectKeys(ctx context.Context, cmd *cli.Command) error {
	opts, err := interactiveOptions(cmd)
	if err != nil {
		return err
	}
	return internal.Select(ctx, append(opts, internal.WithMulti(cmd.Bool("multi")))...)
}

func resources(ctx context.Context, cmd *cli.Command) error {
	opts, err := interactiveOptions(cmd)
	if err != nil {
		return err
	}
	want := resource.Want{Files: cmd.Bool("files"), Notes: cmd.Bool("notes"), Links: cmd.Bool("links")}
	if want == (resource.Want{}) {
		want = resource.All
	}
	opts = append(opts, internal.WithWant(want), internal.WithAlwaysPrompt(cmd.Bool("prompt")))
	return internal.Resources(ctx, cmd.Args().Slice(), opts...)
}

func render(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("render: at least one key is required")
	}
	opts, err := interactiveOptions(cmd)
	if err != nil {
		return err
	}
	return internal.Render(ctx, cmd.Args().Slice(), opts...)
}

func note(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("note: exactly one key is required")
	}
	opts, err := interactiveOptions(cmd)
	if err != nil {
		return err
	}
	return internal.CreateNote(ctx, cmd.Args().First(), opts...)
}

func main() {
	scopeFlags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "local",
			Aliases: []string{"l"},
			Usage:   "Local bibliography file, in addition to the configured ones",
		},
		&cli.IntFlag{
			Name:  "width",
			Usage: "Display width of candidate lines",
		},
	}

	cmd := &cli.Command{
		Name:   "bibkit",
		Usage:  "Bibliography toolkit: search references, find their files, notes and links",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file; falls back to the user config directory's bibkit/config.yaml",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live updates",
				Flags:  scopeFlags,
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Flags:  scopeFlags,
				Action: serveMCP,
			},
			{
				Name:  "select",
				Usage: "Pick citation keys and print them",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: "multi", Aliases: []string{"m"}, Usage: "Select several keys"},
				}, scopeFlags...),
				Action: selectKeys,
			},
			{
				Name:      "resources",
				Usage:     "Pick a file, note or link of the given keys and print it",
				ArgsUsage: "[key...]",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: "files", Usage: "Only library files"},
					&cli.BoolFlag{Name: "notes", Usage: "Only notes"},
					&cli.BoolFlag{Name: "links", Usage: "Only links"},
					&cli.BoolFlag{Name: "prompt", Usage: "Prompt even for a single resource"},
				}, scopeFlags...),
				Action: resources,
			},
			{
				Name:      "render",
				Usage:     "Print the display line of each key",
				ArgsUsage: "key...",
				Flags:     scopeFlags,
				Action:    render,
			},
			{
				Name:      "note",
				Usage:     "Create a note for a key and print its path",
				ArgsUsage: "key",
				Flags:     scopeFlags,
				Action:    note,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
