package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseBibTeX_Entries(t *testing.T) {
	input := []byte(`
% leading comment
@Article{smith2020,
  author  = {Smith, John and Doe, Jane},
  title   = "A {DNA} Study",
  year    = 2020,
  month   = mar,
  doi     = {10.1000/xyz}
}

@book(doe2019, title = {Collected
   Works}, crossref = {smith2020})
`)
	r, err := ParseBibTeX(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"smith2020", "doe2019"}, r.Keys); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
	smith := r.Records["smith2020"]
	if smith.Type != "article" {
		t.Errorf("type = %q, want article", smith.Type)
	}
	want := map[string]string{
		"author": "Smith, John and Doe, Jane",
		"title":  "A {DNA} Study",
		"year":   "2020",
		"month":  "3",
		"doi":    "10.1000/xyz",
	}
	if diff := cmp.Diff(want, smith.Fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"author", "title", "year", "month", "doi"}, smith.Order); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	doe := r.Records["doe2019"]
	if doe.Get("title") != "Collected Works" {
		t.Errorf("title = %q", doe.Get("title"))
	}
	if doe.Get("crossref") != "smith2020" {
		t.Errorf("crossref = %q", doe.Get("crossref"))
	}
}

func TestParseBibTeX_StringMacrosAndConcat(t *testing.T) {
	input := []byte(`@string{jgo = "Journal of Go"}
@comment{ this {is} ignored }
@preamble{ "\newcommand{\x}{y}" }
@article{k1, journal = jgo # " Letters", note = "say \"hi\""}`)
	r, err := ParseBibTeX(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Keys) != 1 {
		t.Fatalf("keys = %v, want [k1]", r.Keys)
	}
	if got := r.Records["k1"].Get("journal"); got != "Journal of Go Letters" {
		t.Errorf("journal = %q", got)
	}
}

func TestParseBibTeX_DuplicateKeyLaterWins(t *testing.T) {
	r, err := ParseBibTeX([]byte(`@misc{a, title={one}} @misc{b, title={x}} @misc{a, title={two}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, r.Keys); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
	if got := r.Records["a"].Get("title"); got != "two" {
		t.Errorf("title = %q, want two", got)
	}
}

func TestParseBibTeX_Malformed(t *testing.T) {
	cases := map[string]string{
		"unbalanced": `@article{k, title = {oops}`,
		"no key":     `@article{, title = {x}}`,
		"no equals":  `@article{k, title {x}}`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBibTeX([]byte(src))
			var synErr *SyntaxError
			if !errors.As(err, &synErr) {
				t.Fatalf("err = %v, want *SyntaxError", err)
			}
		})
	}
}

func TestParseCSL(t *testing.T) {
	input := []byte(`[
  // exported from a reference manager
  {
    "id": "lee2021",
    "type": "article-journal",
    "title": "Graph Methods",
    "author": [{"family": "Lee", "given": "Ann"}, {"literal": "WHO"}],
    "issued": {"date-parts": [[2021, 4, 9]]},
    "DOI": "10.1/abc",
    "container-title": "Networks",
  },
]`)
	r, err := ParseCSL(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := r.Records["lee2021"]
	if !ok {
		t.Fatalf("missing record lee2021: %v", r.Keys)
	}
	checks := map[string]string{
		"author":       "Lee, Ann and WHO",
		"date":         "2021-04-09",
		"year":         "2021",
		"doi":          "10.1/abc",
		"journaltitle": "Networks",
		"title":        "Graph Methods",
	}
	for field, want := range checks {
		if got := rec.Get(field); got != want {
			t.Errorf("%s = %q, want %q", field, got, want)
		}
	}
	if rec.Type != "article-journal" {
		t.Errorf("type = %q", rec.Type)
	}
}

func TestParseCSL_MissingID(t *testing.T) {
	if _, err := ParseCSL([]byte(`[{"title": "x"}]`)); err == nil {
		t.Fatal("expected error for item without id")
	}
}

func TestParseFile_DispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	bib := filepath.Join(dir, "refs.bib")
	csl := filepath.Join(dir, "refs.json")
	_ = os.WriteFile(bib, []byte(`@misc{b1, title={T}}`), 0o644)
	_ = os.WriteFile(csl, []byte(`[{"id": "c1", "title": "T"}]`), 0o644)

	for path, key := range map[string]string{bib: "b1", csl: "c1"} {
		r, err := ParseFile(path)
		if err != nil {
			t.Fatalf("ParseFile(%s): %v", path, err)
		}
		if _, ok := r.Records[key]; !ok {
			t.Errorf("%s: missing key %s", path, key)
		}
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.bib")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v, want os.ErrNotExist", err)
	}
}
