package loopir

import (
	"sort"

	"github.com/goccy/go-json"
)

// StringSet is the dependency/iname set representation used throughout
// the IR. Iteration order is unspecified; use Sorted for anything that
// must be deterministic.
type StringSet map[string]struct{}

func NewSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

func (s StringSet) Add(items ...string) {
	for _, it := range items {
		s[it] = struct{}{}
	}
}

func (s StringSet) Remove(items ...string) {
	for _, it := range items {
		delete(s, it)
	}
}

func (s StringSet) Clone() StringSet {
	out := make(StringSet, len(s))
	for it := range s {
		out[it] = struct{}{}
	}
	return out
}

func (s StringSet) ContainsAll(items ...string) bool {
	for _, it := range items {
		if !s.Has(it) {
			return false
		}
	}
	return true
}

// Intersects reports whether s and other share any element.
func (s StringSet) Intersects(other StringSet) bool {
	for it := range other {
		if s.Has(it) {
			return true
		}
	}
	return false
}

func (s StringSet) Intersection(other StringSet) StringSet {
	out := StringSet{}
	for it := range other {
		if s.Has(it) {
			out[it] = struct{}{}
		}
	}
	return out
}

func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for it := range s {
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON renders the set as a sorted array so encodings are
// bit-stable across runs.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewSet(items...)
	return nil
}
