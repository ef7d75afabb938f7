// Package resource finds the files, links and notes attached to records and
// lets the user pick one of them.
package resource

// Predicate reports whether a key has some resource.
type Predicate func(key string) bool

// Combine ORs preds in order, skipping nil ones. It returns nil when no
// predicate remains, meaning no detector is configured at all, and returns a
// single predicate unwrapped.
func Combine(preds ...Predicate) Predicate {
	var live []Predicate
	for _, p := range preds {
		if p != nil {
			live = append(live, p)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return func(key string) bool {
		for _, p := range live {
			if p(key) {
				return true
			}
		}
		return false
	}
}

// WithCrossref extends p to also hold when the record key cross-references
// satisfies p. target returns the referenced key or "". A nil p stays nil.
func WithCrossref(p Predicate, target func(key string) string) Predicate {
	if p == nil || target == nil {
		return p
	}
	return func(key string) bool {
		if p(key) {
			return true
		}
		ref := target(key)
		return ref != "" && ref != key && p(ref)
	}
}
