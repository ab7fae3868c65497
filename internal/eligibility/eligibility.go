// Package eligibility resolves which catalog products a voucher may be spent on.
package eligibility

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformed is returned when a serialized eligible-product list cannot be parsed.
var ErrMalformed = errors.New("eligibility: malformed product id list")

// Set is an immutable collection of eligible product ids. The zero value is the
// empty set, which means the voucher is unrestricted.
type Set struct {
	ids map[int64]struct{}
}

// NewSet builds a set from product ids, ignoring duplicates.
func NewSet(ids ...int64) Set {
	if len(ids) == 0 {
		return Set{}
	}
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return Set{ids: m}
}

// Len reports the number of distinct ids.
func (s Set) Len() int {
	return len(s.ids)
}

// IsEmpty reports whether the set carries no restriction.
func (s Set) IsEmpty() bool {
	return len(s.ids) == 0
}

// Contains reports membership of a single product id.
func (s Set) Contains(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// IDs returns the members in ascending order.
func (s Set) IDs() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Decode parses a legacy JSON array of product ids. Blank input and JSON null
// decode to the empty set. Anything else that is not an array of integers
// returns the empty set together with ErrMalformed so callers can fail closed.
func Decode(serialized string) (Set, error) {
	trimmed := strings.TrimSpace(serialized)
	if trimmed == "" || trimmed == "null" {
		return Set{}, nil
	}

	var ids []int64
	if err := json.Unmarshal([]byte(trimmed), &ids); err != nil {
		return Set{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return NewSet(ids...), nil
}

// IsEligible reports whether every selected id is allowed. An empty set allows
// any selection.
func IsEligible(selection []int64, set Set) bool {
	if set.IsEmpty() {
		return true
	}
	for _, id := range selection {
		if !set.Contains(id) {
			return false
		}
	}
	return true
}

// Ineligible returns the selected ids that are not members of a non-empty set,
// in selection order without duplicates.
func Ineligible(selection []int64, set Set) []int64 {
	if set.IsEmpty() {
		return nil
	}
	var out []int64
	seen := make(map[int64]struct{})
	for _, id := range selection {
		if set.Contains(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
