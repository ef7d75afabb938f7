package parser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/starford/bibkit/internal/models"
)

var cslNameFields = map[string]bool{
	"author": true, "editor": true, "translator": true,
	"container-author": true, "collection-editor": true,
}

var cslDateFields = map[string]bool{
	"issued": true, "accessed": true, "event-date": true, "original-date": true,
}

// ParseCSL parses a CSL-JSON array. Comments and trailing commas are accepted.
// Names become "family, given and ..." strings and "issued" becomes date and year
// fields, so CSL records can be formatted with the same templates as BibTeX ones.
func ParseCSL(data []byte) (*Result, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("csl: %w", err)
	}
	var items []map[string]any
	if err := json.Unmarshal(std, &items); err != nil {
		return nil, fmt.Errorf("csl: %w", err)
	}

	res := newResult()
	for i, item := range items {
		key, _ := item["id"].(string)
		if num, ok := item["id"].(float64); ok {
			key = strconv.FormatFloat(num, 'f', -1, 64)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("csl: item %d has no id", i)
		}
		typ, _ := item["type"].(string)
		rec := models.Record{Key: key, Type: typ, Fields: make(map[string]string)}

		names := make([]string, 0, len(item))
		for k := range item {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			field := strings.ToLower(k)
			if field == "id" || field == "type" {
				continue
			}
			switch {
			case cslNameFields[field]:
				setField(&rec, field, cslNames(item[k]))
			case cslDateFields[field]:
				date, year := cslDate(item[k])
				if field == "issued" {
					setField(&rec, "date", date)
					setField(&rec, "year", year)
				} else {
					setField(&rec, field, date)
				}
			default:
				setField(&rec, field, cslScalar(item[k]))
			}
		}
		if v := rec.Fields["container-title"]; v != "" && rec.Fields["journaltitle"] == "" {
			setField(&rec, "journaltitle", v)
		}
		res.add(rec)
	}
	return res, nil
}

func setField(rec *models.Record, field, value string) {
	if value == "" {
		return
	}
	if _, dup := rec.Fields[field]; !dup {
		rec.Order = append(rec.Order, field)
	}
	rec.Fields[field] = value
}

func cslScalar(v any) string {
	switch t := v.(type) {
	case string:
		return collapseSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func cslNames(v any) string {
	list, ok := v.([]any)
	if !ok {
		return ""
	}
	out := make([]string, 0, len(list))
	for _, raw := range list {
		n, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		family, _ := n["family"].(string)
		given, _ := n["given"].(string)
		literal, _ := n["literal"].(string)
		switch {
		case family != "" && given != "":
			out = append(out, family+", "+given)
		case family != "":
			out = append(out, family)
		case literal != "":
			out = append(out, literal)
		}
	}
	return strings.Join(out, " and ")
}

// cslDate returns an ISO-like date string and the year.
func cslDate(v any) (string, string) {
	d, ok := v.(map[string]any)
	if !ok {
		return "", ""
	}
	if parts, ok := d["date-parts"].([]any); ok && len(parts) > 0 {
		if first, ok := parts[0].([]any); ok && len(first) > 0 {
			segs := make([]string, 0, len(first))
			for i, p := range first {
				s := cslScalar(p)
				if i > 0 && len(s) == 1 {
					s = "0" + s
				}
				segs = append(segs, s)
			}
			return strings.Join(segs, "-"), segs[0]
		}
	}
	for _, k := range []string{"raw", "literal"} {
		if s, ok := d[k].(string); ok && s != "" {
			year := s
			if len(s) >= 4 {
				year = s[:4]
			}
			return s, year
		}
	}
	return "", ""
}
