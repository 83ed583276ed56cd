package combo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotRegistered is returned when a combo is not in the live registry.
var ErrNotRegistered = errors.New("combo not registered")

// Set is an immutable-by-convention set of combos.
type Set map[Combo]struct{}

// Equal reports whether both sets hold the same combos.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for c := range s {
		if _, ok := other[c]; !ok {
			return false
		}
	}
	return true
}

// Contains reports whether c is in the set.
func (s Set) Contains(c Combo) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the combos in lexical order.
func (s Set) Sorted() []Combo {
	out := make([]Combo, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Registry is the live set of watched combos. It is only ever replaced
// wholesale; readers get snapshots that are never mutated afterwards.
type Registry struct {
	mu      sync.RWMutex
	set     Set
	changed chan struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		set:     Set{},
		changed: make(chan struct{}, 1),
	}
}

// Replace canonicalizes every entry and swaps the result in as the live set.
// If any entry is invalid the registry is left untouched.
// Returns the number of distinct combos now registered.
func (r *Registry) Replace(raw []string) (int, error) {
	next := make(Set, len(raw))
	for _, s := range raw {
		c, err := Parse(s)
		if err != nil {
			return 0, fmt.Errorf("failed to replace combos: %w", err)
		}
		next[c] = struct{}{}
	}

	r.mu.Lock()
	same := r.set.Equal(next)
	r.set = next
	r.mu.Unlock()

	if !same {
		select {
		case r.changed <- struct{}{}:
		default:
		}
	}
	return len(next), nil
}

// Snapshot returns the current set. Callers must not mutate it.
func (r *Registry) Snapshot() Set {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set
}

// Contains reports whether c is currently registered.
func (r *Registry) Contains(c Combo) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set.Contains(c)
}

// Len returns the number of registered combos.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.set)
}

// Changed is signalled (coalesced) after a Replace that altered the set.
func (r *Registry) Changed() <-chan struct{} {
	return r.changed
}
