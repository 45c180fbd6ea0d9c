package db

import (
	"github.com/getmockd/mirage/internal/id"
)

// IdentityManager assigns ids for a single collection.
//
// Next returns an id that has not been handed out or marked with Set.
// Set marks an explicitly supplied id as consumed. Reset forgets all ids.
type IdentityManager interface {
	Next() string
	Set(id string)
	Reset()
}

// IdentityFactory builds a fresh IdentityManager for a collection.
type IdentityFactory func() IdentityManager

// sequenceIdentity hands out the smallest unused value of an integer
// sequence rendered through format. Explicit ids that parse back into the
// sequence move the cursor past them.
type sequenceIdentity struct {
	format func(int) string
	parse  func(string) (int, bool)
	next   int
	used   map[string]struct{}
}

func newSequenceIdentity(format func(int) string, parse func(string) (int, bool)) *sequenceIdentity {
	return &sequenceIdentity{format: format, parse: parse, next: 1, used: make(map[string]struct{})}
}

func (s *sequenceIdentity) Next() string {
	for {
		candidate := s.format(s.next)
		s.next++
		if _, taken := s.used[candidate]; !taken {
			s.used[candidate] = struct{}{}
			return candidate
		}
	}
}

func (s *sequenceIdentity) Set(v string) {
	s.used[v] = struct{}{}
	if n, ok := s.parse(v); ok && n >= s.next {
		s.next = n + 1
	}
}

func (s *sequenceIdentity) Reset() {
	s.next = 1
	s.used = make(map[string]struct{})
}

// CounterIdentity is the default strategy: "1", "2", "3", ...
func CounterIdentity() IdentityManager {
	return newSequenceIdentity(id.Counter, id.ParseCounter)
}

// LetterIdentity assigns "a", "b", ..., "z", "aa", ...
func LetterIdentity() IdentityManager {
	return newSequenceIdentity(id.Letters, id.ParseLetters)
}

// randomIdentity wraps a generator whose values are unique with
// overwhelming probability; used still guards against explicit collisions.
type randomIdentity struct {
	gen  func() string
	used map[string]struct{}
}

func (r *randomIdentity) Next() string {
	for {
		v := r.gen()
		if _, taken := r.used[v]; !taken {
			r.used[v] = struct{}{}
			return v
		}
	}
}

func (r *randomIdentity) Set(v string) { r.used[v] = struct{}{} }

func (r *randomIdentity) Reset() { r.used = make(map[string]struct{}) }

// UUIDIdentity assigns random UUID v4 strings.
func UUIDIdentity() IdentityManager {
	return &randomIdentity{gen: id.UUID, used: make(map[string]struct{})}
}

// ULIDIdentity assigns time-ordered ULIDs.
func ULIDIdentity() IdentityManager {
	src := &id.ULIDSource{}
	return &randomIdentity{gen: src.Next, used: make(map[string]struct{})}
}

// IdentityByName resolves a strategy name used in configuration files.
// An empty name selects the counter strategy.
func IdentityByName(name string) (IdentityFactory, bool) {
	switch name {
	case "", "counter", "integer":
		return CounterIdentity, true
	case "letters", "letter":
		return LetterIdentity, true
	case "uuid":
		return UUIDIdentity, true
	case "ulid":
		return ULIDIdentity, true
	default:
		return nil, false
	}
}
