package config

import (
	"sort"
	"strings"
)

// node wraps a JSON object mid-validation: every descend call removes the
// key it reads, so that whatever remains once parsing finishes is exactly
// the set of keys nothing recognized - the residual-key check that backs
// the "Unused config key(s)" error.
type node struct {
	attrs map[string]any
}

func newNode(attrs map[string]any) *node {
	return &node{attrs: attrs}
}

// take removes and returns the raw value at key, along with whether it was
// present at all (as opposed to present-but-null).
func (n *node) take(key string) (any, bool) {
	v, ok := n.attrs[key]
	if ok {
		delete(n.attrs, key)
	}
	return v, ok
}

// descend reads key out of n, annotating any error the callback returns
// with key so the final message carries the full path.
func descend[R any](n *node, key string, f func(v any, present bool) (R, error)) (R, error) {
	v, present := n.take(key)
	r, err := f(v, present)
	if err != nil {
		return r, annotate(err, key)
	}
	return r, nil
}

// consumeResidual returns an "unused config key(s)" error if n still has
// keys left after every expected field has been descended into, unless
// firstErr is already set (a real parse failure always wins).
func consumeResidual(n *node, firstErr error) error {
	if firstErr != nil {
		return firstErr
	}
	if len(n.attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		keys = append(keys, k)
	}
	return newError("Unused config key(s): %s", joinSorted(keys))
}

func joinSorted(keys []string) string {
	// map iteration order is unstable; sort for deterministic, testable
	// error messages.
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
