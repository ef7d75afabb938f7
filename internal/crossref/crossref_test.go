package crossref

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/bibkit/internal/models"
)

func lookupFrom(refs map[string]string) LookupFunc {
	return func(key string) (models.Record, bool) {
		target, ok := refs[key]
		if !ok {
			return models.Record{}, false
		}
		fields := map[string]string{}
		if target != "" {
			fields["crossref"] = target
		}
		return models.Record{Key: key, Fields: fields}, true
	}
}

func TestExpand_NoFieldDeduplicates(t *testing.T) {
	got := Expand([]string{"b", "a", "b", "c", "a"}, "", lookupFrom(map[string]string{"a": "x"}))
	if diff := cmp.Diff([]string{"b", "a", "c"}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestExpand_InsertsReferenceAfterOriginal(t *testing.T) {
	lookup := lookupFrom(map[string]string{
		"inbook1": "book",
		"inbook2": "book",
		"book":    "",
		"plain":   "",
	})
	got := Expand([]string{"inbook1", "plain", "inbook2", "book"}, "crossref", lookup)
	want := []string{"inbook1", "book", "plain", "inbook2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestExpand_OneLevelOnly(t *testing.T) {
	lookup := lookupFrom(map[string]string{"a": "b", "b": "c", "c": ""})
	got := Expand([]string{"a"}, "crossref", lookup)
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestExpand_IdempotentForOneLevelChains(t *testing.T) {
	lookup := lookupFrom(map[string]string{"a": "p", "b": "p", "p": "", "c": "q", "q": ""})
	keys := []string{"c", "a", "b", "a"}
	once := Expand(keys, "crossref", lookup)
	twice := Expand(once, "crossref", lookup)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("expand not idempotent (-once +twice):\n%s", diff)
	}
}

func TestExpand_UnknownKeysKept(t *testing.T) {
	got := Expand([]string{"ghost"}, "crossref", lookupFrom(nil))
	if diff := cmp.Diff([]string{"ghost"}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestExpandTransitive_FollowsChainsAndCycles(t *testing.T) {
	lookup := lookupFrom(map[string]string{"a": "b", "b": "c", "c": "a", "d": ""})
	got := Expander{Field: "crossref", Transitive: true}.Expand([]string{"a", "d"}, lookup)
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTarget(t *testing.T) {
	lookup := lookupFrom(map[string]string{"a": "b"})
	if got := Target("a", "crossref", lookup); got != "b" {
		t.Errorf("Target = %q, want b", got)
	}
	if got := Target("a", "", lookup); got != "" {
		t.Errorf("Target with empty field = %q", got)
	}
}
