package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// IdentitySet is an unordered set of normalized posting links.
type IdentitySet map[string]struct{}

func NewIdentitySet(ids ...string) IdentitySet {
	s := make(IdentitySet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IdentitySet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IdentitySet) Add(id string) { s[id] = struct{}{} }

func (s IdentitySet) Clone() IdentitySet {
	out := make(IdentitySet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order so snapshots diff cleanly.
func (s IdentitySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s IdentitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *IdentitySet) UnmarshalJSON(b []byte) error {
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*s = NewIdentitySet(ids...)
	return nil
}

// PersistedState is the only durable artifact of a run.
type PersistedState struct {
	SeenIdentities     IdentitySet `json:"seenIdentities"`
	ExcludedIdentities IdentitySet `json:"excludedIdentities"`
	LastRunTimestamp   time.Time   `json:"lastRunTimestamp"`
}

// EmptyState is the state of a pipeline that has never run.
func EmptyState() PersistedState {
	return PersistedState{
		SeenIdentities:     IdentitySet{},
		ExcludedIdentities: IdentitySet{},
	}
}

// Known reports whether id was classified in any earlier run.
func (p PersistedState) Known(id string) bool {
	return p.SeenIdentities.Has(id) || p.ExcludedIdentities.Has(id)
}

// Size is |seen ∪ excluded|.
func (p PersistedState) Size() int {
	n := len(p.ExcludedIdentities)
	for id := range p.SeenIdentities {
		if !p.ExcludedIdentities.Has(id) {
			n++
		}
	}
	return n
}

// Normalized fills nil sets and drops identities present in both sets from
// seen. Exclusion is sticky, so it wins over a hand-edited snapshot.
func (p PersistedState) Normalized() PersistedState {
	out := PersistedState{
		SeenIdentities:     IdentitySet{},
		ExcludedIdentities: p.ExcludedIdentities.Clone(),
		LastRunTimestamp:   p.LastRunTimestamp,
	}
	for id := range p.SeenIdentities {
		if !out.ExcludedIdentities.Has(id) {
			out.SeenIdentities.Add(id)
		}
	}
	return out
}
