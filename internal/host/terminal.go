package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
)

var (
	groupStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA"))
	indexStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	annotateStyle = lipgloss.NewStyle().Faint(true)
)

// ErrNotInteractive is returned by NewTerminal when stdin is not a terminal.
var ErrNotInteractive = errors.New("host: stdin is not a terminal")

// Terminal is a Completer that lists candidates on out and reads the choice
// with line editing. Input is matched against the candidates: a number picks
// by index, other text filters by case-insensitive substring, a trailing '!'
// finishes, and an empty line is the exit sentinel. Ctrl-C aborts.
type Terminal struct {
	line *liner.State
	out  io.Writer
}

// NewTerminal opens the terminal. Close must be called to restore the tty mode.
func NewTerminal(out io.Writer) (*Terminal, error) {
	fd := os.Stdin.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil, ErrNotInteractive
	}
	t := &Terminal{line: liner.NewLiner(), out: out}
	t.line.SetCtrlCAborts(true)
	return t, nil
}

// Close restores the terminal.
func (t *Terminal) Close() error {
	return t.line.Close()
}

// Complete implements Completer.
func (t *Terminal) Complete(ctx context.Context, req Request) (Response, bool, error) {
	items := req.Items
	t.line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, it := range req.Items {
			if strings.HasPrefix(strings.ToLower(it.Text), strings.ToLower(prefix)) {
				out = append(out, it.Text)
			}
		}
		return out
	})
	for {
		if err := ctx.Err(); err != nil {
			return Response{}, false, err
		}
		t.list(items, req.Metadata)
		input, err := t.line.Prompt(req.Prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return Response{}, false, nil
			}
			return Response{}, false, fmt.Errorf("host: read input: %w", err)
		}
		resp, narrowed, done := Match(input, items)
		if done {
			if resp.ID != "" {
				t.line.AppendHistory(input)
			}
			return resp, true, nil
		}
		if len(narrowed) == 0 {
			fmt.Fprintln(t.out, annotateStyle.Render("no match"))
			continue
		}
		items = narrowed
	}
}

func (t *Terminal) list(items []Item, meta Metadata) {
	var group string
	for i, it := range items {
		text := it.Text
		if meta.Group != nil {
			if g := meta.Group(it, false); g != group {
				group = g
				if g != "" {
					fmt.Fprintln(t.out, groupStyle.Render(g))
				}
			}
			text = meta.Group(it, true)
		}
		if meta.Affix != nil {
			pre, suf := meta.Affix(it)
			text = pre + text + suf
		}
		line := indexStyle.Render(fmt.Sprintf("%3d", i+1)) + " " + text
		if meta.Annotate != nil {
			if a := meta.Annotate(it); a != "" {
				line += "  " + annotateStyle.Render(a)
			}
		}
		fmt.Fprintln(t.out, line)
	}
}

// Match interprets one line of input against items. done is true when the
// input settles the request; otherwise narrowed holds the items still matching.
func Match(input string, items []Item) (resp Response, narrowed []Item, done bool) {
	input = strings.TrimSpace(input)
	if before, ok := strings.CutSuffix(input, "!"); ok {
		resp.Finish = true
		input = strings.TrimSpace(before)
	}
	if input == "" {
		return resp, nil, true
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(items) {
		resp.ID = items[n-1].ID
		return resp, nil, true
	}
	needle := strings.ToLower(input)
	for _, it := range items {
		if strings.ToLower(it.Text) == needle || it.ID == input {
			resp.ID = it.ID
			return resp, nil, true
		}
		if strings.Contains(strings.ToLower(it.Text), needle) {
			narrowed = append(narrowed, it)
		}
	}
	if len(narrowed) == 1 {
		resp.ID = narrowed[0].ID
		return resp, nil, true
	}
	return Response{}, narrowed, false
}
