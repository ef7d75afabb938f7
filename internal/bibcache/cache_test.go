package bibcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/bibkit/internal/format"
	"github.com/starford/bibkit/internal/parser"
)

// countingParser wraps parser.ParseFile and counts calls per path.
type countingParser struct {
	mu    sync.Mutex
	calls map[string]int
	total atomic.Int32
}

func newCountingParser() *countingParser {
	return &countingParser{calls: make(map[string]int)}
}

func (p *countingParser) parse(path string) (*parser.Result, error) {
	p.mu.Lock()
	p.calls[path]++
	p.mu.Unlock()
	p.total.Add(1)
	return parser.ParseFile(path)
}

func (p *countingParser) count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	abs, _ := filepath.Abs(path)
	return p.calls[abs]
}

// writeBib writes content and moves the mtime forward so the change is
// visible regardless of file-system timestamp granularity.
func writeBib(t *testing.T, path, content string) {
	t.Helper()
	var next time.Time
	if info, err := os.Stat(path); err == nil {
		next = info.ModTime().Add(2 * time.Second)
	} else {
		next = time.Now().Add(-time.Hour)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, next, next); err != nil {
		t.Fatal(err)
	}
}

func testCache(t *testing.T) (*Cache, *countingParser, string) {
	t.Helper()
	p := newCountingParser()
	return New(WithParser(p.parse)), p, t.TempDir()
}

func TestView_UnchangedFilesReused(t *testing.T) {
	c, p, dir := testCache(t)
	a := filepath.Join(dir, "a.bib")
	b := filepath.Join(dir, "b.bib")
	writeBib(t, a, `@misc{a1, title={A1}} @misc{a2, title={A2}}`)
	writeBib(t, b, `@misc{b1, title={B1}}`)
	ctx := context.Background()

	v1, err := c.View(ctx, []string{a, b})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	v2, err := c.View(ctx, []string{a, b})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v1 != v2 {
		t.Error("expected the same view for unchanged sources")
	}
	for i := range v1.Sources() {
		if v1.Sources()[i] != v2.Sources()[i] {
			t.Errorf("source %d re-created", i)
		}
	}
	if p.count(a) != 1 || p.count(b) != 1 {
		t.Errorf("parse counts = %d, %d, want 1, 1", p.count(a), p.count(b))
	}
	if diff := cmp.Diff([]string{"a1", "a2", "b1"}, v2.Keys()); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
}

func TestView_ChangedFileReparsedAlone(t *testing.T) {
	c, p, dir := testCache(t)
	a := filepath.Join(dir, "a.bib")
	b := filepath.Join(dir, "b.bib")
	writeBib(t, a, `@misc{a1, title={Old}, note={stale}}`)
	writeBib(t, b, `@misc{b1, title={B1}}`)
	ctx := context.Background()

	v1, err := c.View(ctx, []string{a, b})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	writeBib(t, a, `@misc{a1, title={New}}`)

	v2, err := c.View(ctx, []string{a, b})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v1 == v2 {
		t.Fatal("expected a new view after a source changed")
	}
	rec, _ := v2.Get("a1")
	if rec.Get("title") != "New" {
		t.Errorf("title = %q, want New", rec.Get("title"))
	}
	if rec.Get("note") != "" {
		t.Errorf("stale note field survived: %q", rec.Get("note"))
	}
	if p.count(a) != 2 {
		t.Errorf("a parsed %d times, want 2", p.count(a))
	}
	if p.count(b) != 1 {
		t.Errorf("b parsed %d times, want 1", p.count(b))
	}
	if v1.Sources()[1] != v2.Sources()[1] {
		t.Error("unchanged store should be shared between views")
	}
}

func TestView_LaterSourceWins(t *testing.T) {
	c, _, dir := testCache(t)
	global := filepath.Join(dir, "global.bib")
	local := filepath.Join(dir, "local.bib")
	writeBib(t, global, `@misc{k, title={Global}, year={1999}} @misc{g, title={G}}`)
	writeBib(t, local, `@misc{k, title={Local}}`)

	v, err := c.View(context.Background(), []string{global, local})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	rec, _ := v.Get("k")
	if rec.Get("title") != "Local" {
		t.Errorf("title = %q, want Local", rec.Get("title"))
	}
	if rec.Get("year") != "" {
		t.Errorf("records must not be content-merged, got year %q", rec.Get("year"))
	}
	if diff := cmp.Diff([]string{"k", "g"}, v.Keys()); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
}

func TestView_ParseErrorKeepsPriorStore(t *testing.T) {
	c, _, dir := testCache(t)
	a := filepath.Join(dir, "a.bib")
	writeBib(t, a, `@misc{a1, title={Good}}`)
	ctx := context.Background()

	if _, err := c.View(ctx, []string{a}); err != nil {
		t.Fatalf("View: %v", err)
	}
	prior, _ := c.Lookup(a)

	writeBib(t, a, `@misc{a1, title={broken}`)
	v, err := c.View(ctx, []string{a})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if v != nil {
		t.Error("no view should be returned on parse error")
	}
	var synErr *parser.SyntaxError
	if !errors.As(err, &synErr) {
		t.Errorf("err = %v, want wrapped *parser.SyntaxError", err)
	}
	cur, ok := c.Lookup(a)
	if !ok || cur != prior {
		t.Error("failed refresh must leave the prior store untouched")
	}

	writeBib(t, a, `@misc{a1, title={Fixed}}`)
	v, err = c.View(ctx, []string{a})
	if err != nil {
		t.Fatalf("View after fix: %v", err)
	}
	rec, _ := v.Get("a1")
	if rec.Get("title") != "Fixed" {
		t.Errorf("title = %q, want Fixed", rec.Get("title"))
	}
}

func TestView_MissingFileIsError(t *testing.T) {
	c, _, dir := testCache(t)
	_, err := c.View(context.Background(), []string{filepath.Join(dir, "nope.bib")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestView_EmptySourcesGiveEmptyView(t *testing.T) {
	c, _, _ := testCache(t)
	v, err := c.View(context.Background(), nil)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.Len() != 0 {
		t.Errorf("Len = %d, want 0", v.Len())
	}
}

func TestStore_ConcurrentRefreshParsesOnce(t *testing.T) {
	c, p, dir := testCache(t)
	a := filepath.Join(dir, "a.bib")
	writeBib(t, a, `@misc{a1, title={A}}`)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.View(context.Background(), []string{a})
			if err != nil {
				t.Errorf("View: %v", err)
				return
			}
			if _, ok := v.Get("a1"); !ok {
				t.Error("record missing from concurrent view")
			}
		}()
	}
	wg.Wait()
	if n := p.count(a); n != 1 {
		t.Errorf("parsed %d times, want 1", n)
	}
}

func TestInvalidateAndClear(t *testing.T) {
	c, p, dir := testCache(t)
	a := filepath.Join(dir, "a.bib")
	writeBib(t, a, `@misc{a1, title={A}}`)
	ctx := context.Background()

	v1, _ := c.View(ctx, []string{a})
	c.Invalidate(a)
	if _, ok := c.Lookup(a); ok {
		t.Error("store still cached after Invalidate")
	}
	v2, _ := c.View(ctx, []string{a})
	if v1 == v2 || p.count(a) != 2 {
		t.Errorf("expected re-parse after Invalidate, parses = %d", p.count(a))
	}

	c.Clear()
	if len(c.Paths()) != 0 {
		t.Errorf("Paths after Clear = %v", c.Paths())
	}
}

func TestPreformatted_ComputedOncePerView(t *testing.T) {
	var calls atomic.Int32
	f := &format.Formatter{Rules: []format.Rule{{
		Fields: []string{format.Wildcard},
		Funcs: []format.TransformFunc{func(s string) string {
			calls.Add(1)
			return s
		}},
	}}}
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bib")
	writeBib(t, a, `@misc{a1, title={Title}}`)
	c := New(WithFormatter(f, format.MustParse("${title:*}")))
	ctx := context.Background()

	v, err := c.View(ctx, []string{a})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	first := v.Preformatted("a1")
	second := v.Preformatted("a1")
	if calls.Load() != 1 {
		t.Errorf("transform ran %d times, want 1", calls.Load())
	}
	if first.Stars != 1 || second.Stars != 1 {
		t.Errorf("unexpected preformatted entry %+v", first)
	}
	if got := v.Render("a1", 8); got != "Title   " {
		t.Errorf("Render = %q", got)
	}

	writeBib(t, a, `@misc{a1, title={Other}}`)
	v2, _ := c.View(ctx, []string{a})
	_ = v2.Preformatted("a1")
	if calls.Load() != 2 {
		t.Errorf("preformatted entry not recomputed for new view, calls = %d", calls.Load())
	}
}

func TestPreformatted_UnknownKeyPanics(t *testing.T) {
	c, _, dir := testCache(t)
	a := filepath.Join(dir, "a.bib")
	writeBib(t, a, `@misc{a1, title={A}}`)
	v, _ := c.View(context.Background(), []string{a})

	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown key")
		}
	}()
	v.Preformatted("missing")
}

func TestView_SourceOfWinningRecord(t *testing.T) {
	c, _, dir := testCache(t)
	a := filepath.Join(dir, "a.bib")
	b := filepath.Join(dir, "b.bib")
	writeBib(t, a, `@misc{k, title={A}} @misc{only, title={A}}`)
	writeBib(t, b, `@misc{k, title={B}}`)

	v, err := c.View(context.Background(), []string{a, b})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if got := v.Source("k"); got != b {
		t.Errorf("Source(k) = %q, want %q", got, b)
	}
	if got := v.Source("only"); got != a {
		t.Errorf("Source(only) = %q, want %q", got, a)
	}
}
