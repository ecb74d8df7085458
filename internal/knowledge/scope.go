package knowledge

import "sort"

// IdentitySet is a set of chunkable identities, used to carry tag-scope
// membership between the data layer and the search backends.
type IdentitySet map[Identity]struct{}

// NewIdentitySet builds a set from the given identities.
func NewIdentitySet(ids ...Identity) IdentitySet {
	s := make(IdentitySet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts an identity into the set.
func (s IdentitySet) Add(id Identity) { s[id] = struct{}{} }

// Contains reports set membership.
func (s IdentitySet) Contains(id Identity) bool {
	_, ok := s[id]
	return ok
}

// Identities returns the members in deterministic order (type, then id),
// so filters built from a set are stable across calls.
func (s IdentitySet) Identities() []Identity {
	ids := make([]Identity, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Type != ids[j].Type {
			return ids[i].Type < ids[j].Type
		}
		return ids[i].ID < ids[j].ID
	})
	return ids
}

// UnionScope computes a tag's visibility scope from its three sources:
// chunkables tagged directly, articles whose category carries the tag, and
// webpages whose website carries the tag.
//
// This is the single definition of tag-scope semantics. The SQL UNION in
// internal/postgres and the in-memory fake in internal/testutil both reduce
// to this computation, which keeps the pgvector and scan backends
// behaviorally identical.
func UnionScope(direct, viaCategory, viaWebsite []Identity) IdentitySet {
	s := make(IdentitySet, len(direct)+len(viaCategory)+len(viaWebsite))
	for _, id := range direct {
		s.Add(id)
	}
	for _, id := range viaCategory {
		s.Add(id)
	}
	for _, id := range viaWebsite {
		s.Add(id)
	}
	return s
}
