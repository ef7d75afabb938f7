package bibcache

import (
	"fmt"
	"sync"

	"github.com/starford/bibkit/internal/format"
	"github.com/starford/bibkit/internal/models"
)

// View is the merged key→record mapping of an ordered list of sources.
// A View is immutable apart from its memoized preformatted entries; callers
// that need several operations to agree hold on to one View and pass it along.
type View struct {
	sources []*models.RecordStore
	records map[string]models.Record
	origin  map[string]string
	keys    []string

	formatter *format.Formatter
	template  format.Template

	mu  sync.Mutex
	pre map[string]format.Preformatted
}

func newView(sources []*models.RecordStore, f *format.Formatter, tpl format.Template) *View {
	v := &View{
		sources:   sources,
		records:   make(map[string]models.Record),
		origin:    make(map[string]string),
		formatter: f,
		template:  tpl,
		pre:       make(map[string]format.Preformatted),
	}
	for _, st := range sources {
		for _, k := range st.Keys {
			if _, seen := v.records[k]; !seen {
				v.keys = append(v.keys, k)
			}
			v.records[k] = st.Records[k]
			v.origin[k] = st.Path()
		}
	}
	return v
}

// built reports whether v was merged from exactly these store instances.
func (v *View) built(stores []*models.RecordStore) bool {
	if len(stores) != len(v.sources) {
		return false
	}
	for i := range stores {
		if stores[i] != v.sources[i] {
			return false
		}
	}
	return true
}

func (v *View) uses(abs string) bool {
	for _, st := range v.sources {
		if st.Path() == abs {
			return true
		}
	}
	return false
}

// Sources returns the stores merged into v, in priority order.
func (v *View) Sources() []*models.RecordStore { return v.sources }

// Get returns the record for key.
func (v *View) Get(key string) (models.Record, bool) {
	rec, ok := v.records[key]
	return rec, ok
}

// Has reports whether key is in the view.
func (v *View) Has(key string) bool {
	_, ok := v.records[key]
	return ok
}

// Source returns the path of the file key's record was taken from.
func (v *View) Source(key string) string { return v.origin[key] }

// Keys returns every key in first-appearance order.
func (v *View) Keys() []string { return v.keys }

// Len returns the number of records.
func (v *View) Len() int { return len(v.keys) }

// Preformatted returns the width-independent rendering of key, computing it
// once per view. It panics if key is not in the view.
func (v *View) Preformatted(key string) format.Preformatted {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p, ok := v.pre[key]; ok {
		return p
	}
	rec, ok := v.records[key]
	if !ok {
		panic(fmt.Sprintf("bibcache: preformatted entry requested for unknown key %q", key))
	}
	p := v.formatter.Preformat(rec, v.template)
	v.pre[key] = p
	return p
}

// Render lays out key's preformatted entry in width columns.
func (v *View) Render(key string, width int) string {
	return v.formatter.Finish(v.Preformatted(key), width)
}
