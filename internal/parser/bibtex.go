package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/starford/bibkit/internal/models"
)

var monthMacros = map[string]string{
	"jan": "1", "feb": "2", "mar": "3", "apr": "4", "may": "5", "jun": "6",
	"jul": "7", "aug": "8", "sep": "9", "oct": "10", "nov": "11", "dec": "12",
}

// SyntaxError reports malformed BibTeX input.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type bibScanner struct {
	src    []rune
	pos    int
	macros map[string]string
}

// ParseBibTeX parses BibTeX/BibLaTeX source. @string macros and # concatenation
// are expanded; @comment and @preamble blocks are skipped. Field names are
// lowercased and values have runs of whitespace collapsed. Inner braces are kept.
func ParseBibTeX(data []byte) (*Result, error) {
	s := &bibScanner{src: []rune(string(data)), macros: make(map[string]string)}
	res := newResult()
	for {
		if !s.seek('@') {
			return res, nil
		}
		s.pos++ // '@'
		typ := strings.ToLower(s.ident())
		s.skipSpace()
		if s.eof() {
			return nil, s.errorf("unexpected end of input after @%s", typ)
		}
		open := s.src[s.pos]
		if open != '{' && open != '(' {
			// Stray '@' in free text between entries.
			continue
		}
		closer := '}'
		if open == '(' {
			closer = ')'
		}
		switch typ {
		case "comment", "preamble":
			if err := s.skipBalanced(open, closer); err != nil {
				return nil, err
			}
		case "string":
			s.pos++
			if err := s.parseMacro(closer); err != nil {
				return nil, err
			}
		default:
			s.pos++
			rec, err := s.parseEntry(typ, closer)
			if err != nil {
				return nil, err
			}
			res.add(rec)
		}
	}
}

func (s *bibScanner) parseEntry(typ string, closer rune) (models.Record, error) {
	s.skipSpace()
	start := s.pos
	for !s.eof() && s.src[s.pos] != ',' && s.src[s.pos] != closer {
		s.pos++
	}
	if s.eof() {
		return models.Record{}, s.errorf("unterminated @%s entry", typ)
	}
	key := strings.TrimSpace(string(s.src[start:s.pos]))
	if key == "" {
		return models.Record{}, s.errorf("@%s entry without citation key", typ)
	}
	rec := models.Record{Key: key, Type: typ, Fields: make(map[string]string)}
	if s.src[s.pos] == closer {
		s.pos++
		return rec, nil
	}
	s.pos++ // ','

	for {
		s.skipSpace()
		if s.eof() {
			return models.Record{}, s.errorf("unterminated entry %q", key)
		}
		if s.src[s.pos] == closer {
			s.pos++
			return rec, nil
		}
		name := strings.ToLower(s.ident())
		if name == "" {
			return models.Record{}, s.errorf("expected field name in entry %q", key)
		}
		s.skipSpace()
		if s.eof() || s.src[s.pos] != '=' {
			return models.Record{}, s.errorf("expected '=' after field %q in entry %q", name, key)
		}
		s.pos++
		value, err := s.value(closer)
		if err != nil {
			return models.Record{}, err
		}
		if _, dup := rec.Fields[name]; !dup {
			rec.Order = append(rec.Order, name)
		}
		rec.Fields[name] = value
		s.skipSpace()
		if !s.eof() && s.src[s.pos] == ',' {
			s.pos++
		}
	}
}

func (s *bibScanner) parseMacro(closer rune) error {
	s.skipSpace()
	name := strings.ToLower(s.ident())
	if name == "" {
		return s.errorf("expected @string name")
	}
	s.skipSpace()
	if s.eof() || s.src[s.pos] != '=' {
		return s.errorf("expected '=' in @string %q", name)
	}
	s.pos++
	value, err := s.value(closer)
	if err != nil {
		return err
	}
	s.macros[name] = value
	s.skipSpace()
	if s.eof() || s.src[s.pos] != closer {
		return s.errorf("unterminated @string %q", name)
	}
	s.pos++
	return nil
}

// value reads a field value: parts joined by '#'.
func (s *bibScanner) value(closer rune) (string, error) {
	var b strings.Builder
	for {
		s.skipSpace()
		if s.eof() {
			return "", s.errorf("unexpected end of input in field value")
		}
		switch c := s.src[s.pos]; {
		case c == '{':
			part, err := s.delimited('{', '}')
			if err != nil {
				return "", err
			}
			b.WriteString(part)
		case c == '"':
			part, err := s.quoted()
			if err != nil {
				return "", err
			}
			b.WriteString(part)
		case unicode.IsDigit(c):
			start := s.pos
			for !s.eof() && unicode.IsDigit(s.src[s.pos]) {
				s.pos++
			}
			b.WriteString(string(s.src[start:s.pos]))
		default:
			name := strings.ToLower(s.ident())
			if name == "" {
				return "", s.errorf("unexpected %q in field value", c)
			}
			if v, ok := s.macros[name]; ok {
				b.WriteString(v)
			} else if v, ok := monthMacros[name]; ok {
				b.WriteString(v)
			} else {
				b.WriteString(name)
			}
		}
		s.skipSpace()
		if s.eof() || s.src[s.pos] != '#' {
			return collapseSpace(b.String()), nil
		}
		s.pos++
	}
}

// delimited reads a brace-balanced group and returns its inner text.
func (s *bibScanner) delimited(open, closer rune) (string, error) {
	startLine := s.line()
	depth := 0
	start := s.pos + 1
	for ; !s.eof(); s.pos++ {
		switch s.src[s.pos] {
		case '\\':
			s.pos++
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				inner := string(s.src[start:s.pos])
				s.pos++
				return inner, nil
			}
		}
	}
	return "", &SyntaxError{Line: startLine, Msg: "unbalanced braces"}
}

// quoted reads a "..." value; quotes nested inside braces do not terminate it.
func (s *bibScanner) quoted() (string, error) {
	startLine := s.line()
	depth := 0
	start := s.pos + 1
	for s.pos++; !s.eof(); s.pos++ {
		switch s.src[s.pos] {
		case '\\':
			s.pos++
		case '{':
			depth++
		case '}':
			depth--
		case '"':
			if depth == 0 {
				inner := string(s.src[start:s.pos])
				s.pos++
				return inner, nil
			}
		}
	}
	return "", &SyntaxError{Line: startLine, Msg: "unterminated quoted value"}
}

func (s *bibScanner) skipBalanced(open, closer rune) error {
	_, err := s.delimited(open, closer)
	return err
}

func (s *bibScanner) ident() string {
	start := s.pos
	for !s.eof() {
		c := s.src[s.pos]
		if unicode.IsLetter(c) || unicode.IsDigit(c) || strings.ContainsRune("_-:.+/", c) {
			s.pos++
			continue
		}
		break
	}
	return string(s.src[start:s.pos])
}

func (s *bibScanner) seek(r rune) bool {
	for ; !s.eof(); s.pos++ {
		if s.src[s.pos] == r {
			return true
		}
	}
	return false
}

func (s *bibScanner) skipSpace() {
	for !s.eof() && unicode.IsSpace(s.src[s.pos]) {
		s.pos++
	}
}

func (s *bibScanner) eof() bool { return s.pos >= len(s.src) }

func (s *bibScanner) line() int {
	end := s.pos
	if end > len(s.src) {
		end = len(s.src)
	}
	return strings.Count(string(s.src[:end]), "\n") + 1
}

func (s *bibScanner) errorf(format string, args ...any) error {
	return &SyntaxError{Line: s.line(), Msg: fmt.Sprintf(format, args...)}
}

func collapseSpace(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
