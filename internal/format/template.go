// Package format renders records into fixed-width display lines.
//
// A template is literal text interleaved with field references:
//
//	${author editor:30%sn}  ${date year issued:4}  ${title:*}
//
// Space-separated names form an alias chain tried in order until one yields a
// non-empty value. The width after ':' is a column count from 1 to
// MaxFieldWidth or '*' (share of the leftover width). Without a width the value is rendered at its natural width.
// An optional %name applies a named transform to that reference only.
// The pseudo fields =key= and =type= resolve to the citation key and entry type.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// MaxFieldWidth is the largest explicit width a field reference may ask for.
const MaxFieldWidth = 1000

// Segment is one piece of a template: literal text or a field reference.
type Segment struct {
	Literal   string
	Fields    []string
	Width     int
	Star      bool
	Transform string
}

// IsField reports whether the segment references record fields.
func (s Segment) IsField() bool { return len(s.Fields) > 0 }

// Template is an ordered list of segments.
type Template []Segment

// Parse compiles a template string.
func Parse(src string) (Template, error) {
	var tpl Template
	rest := src
	for rest != "" {
		i := strings.Index(rest, "${")
		if i < 0 {
			tpl = append(tpl, Segment{Literal: rest})
			break
		}
		if i > 0 {
			tpl = append(tpl, Segment{Literal: rest[:i]})
		}
		end := strings.IndexByte(rest[i:], '}')
		if end < 0 {
			return nil, fmt.Errorf("format: unterminated field reference in %q", src)
		}
		seg, err := parseRef(rest[i+2 : i+end])
		if err != nil {
			return nil, fmt.Errorf("format: %q: %w", src, err)
		}
		tpl = append(tpl, seg)
		rest = rest[i+end+1:]
	}
	return tpl, nil
}

// MustParse is like Parse but panics on error. Intended for built-in templates.
func MustParse(src string) Template {
	tpl, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return tpl
}

func parseRef(ref string) (Segment, error) {
	var seg Segment
	names, spec, hasSpec := strings.Cut(ref, ":")
	if !hasSpec {
		names, seg.Transform, _ = strings.Cut(names, "%")
	} else {
		var width string
		width, seg.Transform, _ = strings.Cut(spec, "%")
		width = strings.TrimSpace(width)
		switch width {
		case "*":
			seg.Star = true
		case "":
		default:
			n, err := strconv.Atoi(width)
			if err != nil || n < 1 || n > MaxFieldWidth {
				return seg, fmt.Errorf("invalid width %q", width)
			}
			seg.Width = n
		}
	}
	for _, name := range strings.Fields(names) {
		seg.Fields = append(seg.Fields, strings.ToLower(name))
	}
	if len(seg.Fields) == 0 {
		return seg, fmt.Errorf("empty field reference %q", ref)
	}
	seg.Transform = strings.TrimSpace(seg.Transform)
	return seg, nil
}

// FixedWidth returns the width consumed by literals and explicit-width fields,
// and the number of star fields.
func (t Template) FixedWidth() (fixed, stars int) {
	for _, seg := range t {
		switch {
		case !seg.IsField():
			fixed += runewidth.StringWidth(seg.Literal)
		case seg.Star:
			stars++
		default:
			fixed += seg.Width
		}
	}
	return fixed, stars
}
