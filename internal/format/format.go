package format

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/starford/bibkit/internal/models"
)

// Wildcard matches every field in a Rule.
const Wildcard = "*"

// TransformFunc maps a field value to its display form.
type TransformFunc func(string) string

// Rule applies Funcs, in order, to values of the listed fields.
type Rule struct {
	Fields []string
	Funcs  []TransformFunc
}

func (r Rule) matches(field string) bool {
	for _, f := range r.Fields {
		if f == Wildcard || strings.EqualFold(f, field) {
			return true
		}
	}
	return false
}

// Formatter renders records with display transforms and an ellipsis policy.
// The zero value renders raw values and hard-truncates.
type Formatter struct {
	Rules    []Rule
	Named    map[string]TransformFunc // referenced as %name in templates
	Ellipsis string
}

// NewFormatter returns a formatter with the default rules: every value is
// cleaned, and author/editor lists are shortened to family names.
func NewFormatter(ellipsis string) *Formatter {
	return &Formatter{
		Rules: []Rule{
			{Fields: []string{Wildcard}, Funcs: []TransformFunc{CleanString}},
			{Fields: []string{"author", "editor"}, Funcs: []TransformFunc{ShortenNames}},
		},
		Named:    Builtins(),
		Ellipsis: ellipsis,
	}
}

type part struct {
	text  string // rendered literal or fixed field
	star  bool
	value string // transformed value for star fields
}

// Preformatted is a record rendered as far as possible without knowing the
// total width. Star fields are kept as raw slots until Finish.
type Preformatted struct {
	// Fixed is the display width consumed by literals and sized fields.
	Fixed int
	Stars int
	parts []part
}

// Fragment returns the rendered line with star fields at zero width.
func (p Preformatted) Fragment() string {
	var b strings.Builder
	for _, pt := range p.parts {
		if !pt.star {
			b.WriteString(pt.text)
		}
	}
	return b.String()
}

// Preformat renders every width-independent part of rec. The record is not modified.
func (f *Formatter) Preformat(rec models.Record, tpl Template) Preformatted {
	var p Preformatted
	for _, seg := range tpl {
		if !seg.IsField() {
			p.parts = append(p.parts, part{text: seg.Literal})
			p.Fixed += runewidth.StringWidth(seg.Literal)
			continue
		}
		value := f.Value(rec, seg)
		switch {
		case seg.Star:
			p.parts = append(p.parts, part{star: true, value: value})
			p.Stars++
		case seg.Width > 0:
			p.parts = append(p.parts, part{text: Fit(value, seg.Width, f.Ellipsis)})
			p.Fixed += seg.Width
		default:
			p.parts = append(p.parts, part{text: value})
			p.Fixed += runewidth.StringWidth(value)
		}
	}
	return p
}

// Finish lays out p in exactly width display columns. Leftover width is
// divided evenly among star fields, the remainder going to the earliest ones.
func (f *Formatter) Finish(p Preformatted, width int) string {
	if width <= 0 {
		return ""
	}
	remaining := width - p.Fixed
	if remaining < 0 {
		remaining = 0
	}
	share, extra := 0, 0
	if p.Stars > 0 {
		share, extra = remaining/p.Stars, remaining%p.Stars
	}

	var b strings.Builder
	for _, pt := range p.parts {
		if !pt.star {
			b.WriteString(pt.text)
			continue
		}
		w := share
		if extra > 0 {
			w++
			extra--
		}
		b.WriteString(Fit(pt.value, w, f.Ellipsis))
	}
	return Fit(b.String(), width, f.Ellipsis)
}

// Render is Preformat followed by Finish.
func (f *Formatter) Render(rec models.Record, width int, tpl Template) string {
	return f.Finish(f.Preformat(rec, tpl), width)
}

// Plain renders rec without a total width. Sized fields are fitted to their
// width; star and unsized fields keep their natural width.
func (f *Formatter) Plain(rec models.Record, tpl Template) string {
	var b strings.Builder
	for _, seg := range tpl {
		if !seg.IsField() {
			b.WriteString(seg.Literal)
			continue
		}
		value := f.Value(rec, seg)
		if seg.Width > 0 {
			value = Fit(value, seg.Width, f.Ellipsis)
		}
		b.WriteString(value)
	}
	return b.String()
}

// Value resolves seg's alias chain against rec and applies transforms.
func (f *Formatter) Value(rec models.Record, seg Segment) string {
	field, value := resolve(rec, seg.Fields)
	if value == "" {
		return ""
	}
	for _, r := range f.Rules {
		if !r.matches(field) {
			continue
		}
		for _, fn := range r.Funcs {
			value = fn(value)
		}
	}
	if seg.Transform != "" {
		if fn, ok := f.Named[seg.Transform]; ok {
			value = fn(value)
		}
	}
	return value
}

func resolve(rec models.Record, names []string) (string, string) {
	for _, name := range names {
		var v string
		switch name {
		case "=key=":
			v = rec.Key
		case "=type=":
			v = rec.Type
		default:
			v = rec.Get(name)
		}
		if v != "" {
			return name, v
		}
	}
	return "", ""
}

// Fit truncates or right-pads s to exactly width display columns. When s is
// truncated and ellipsis fits in width, the ellipsis ends the result.
func Fit(s string, width int, ellipsis string) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) > width {
		tail := ellipsis
		if runewidth.StringWidth(tail) > width {
			tail = ""
		}
		s = runewidth.Truncate(s, width, tail)
	}
	return runewidth.FillRight(s, width)
}
