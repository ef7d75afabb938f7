package format

import "strings"

// Builtins returns the named transforms available to configuration and to
// %name template references.
func Builtins() map[string]TransformFunc {
	return map[string]TransformFunc{
		"clean":         CleanString,
		"shorten-names": ShortenNames,
		"sn":            ShortenNames,
		"etal":          func(s string) string { return ShortenNamesN(s, 3, "&") },
		"year":          Year,
		"upcase":        strings.ToUpper,
		"downcase":      strings.ToLower,
	}
}

// ShortenNames reduces an " and "-separated name list to family names.
// A name in "family, given" form keeps its family part; any other name,
// including single-token corporate names, is kept as is.
//
//	ShortenNames("Smith, John and Doe, Jane") == "Smith, Doe"
func ShortenNames(names string) string {
	return ShortenNamesN(names, 0, "")
}

// ShortenNamesN is ShortenNames keeping at most n names (0 keeps all). When
// names are dropped the list ends with " et al.". A non-empty and joins the
// last two kept names.
func ShortenNamesN(names string, n int, and string) string {
	list := splitNames(names)
	if len(list) == 0 {
		return ""
	}
	kept := list
	if n > 0 && n < len(list) {
		kept = list[:n]
	}
	var b strings.Builder
	for i, name := range kept {
		b.WriteString(shortenName(name))
		switch {
		case i == len(kept)-1:
			if len(kept) < len(list) {
				b.WriteString(" et al.")
			}
		case and != "" && i == len(kept)-2:
			b.WriteString(" " + and + " ")
		default:
			b.WriteString(", ")
		}
	}
	return b.String()
}

func splitNames(names string) []string {
	var out []string
	for _, n := range strings.Split(names, " and ") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func shortenName(name string) string {
	family, given, ok := strings.Cut(name, ",")
	if !ok || strings.TrimSpace(given) == "" {
		return name
	}
	return strings.TrimSpace(family)
}

// CleanString removes BibTeX grouping braces and escapes and collapses whitespace.
func CleanString(s string) string {
	r := strings.NewReplacer("{", "", "}", "", `\&`, "&", `\%`, "%", `\_`, "_", `\$`, "$", "~", " ")
	return strings.Join(strings.Fields(r.Replace(s)), " ")
}

// Year returns the first run of four digits in s, or s unchanged.
func Year(s string) string {
	run := 0
	for i, r := range s {
		if r >= '0' && r <= '9' {
			run++
			if run == 4 {
				return s[i-3 : i+1]
			}
			continue
		}
		run = 0
	}
	return s
}
