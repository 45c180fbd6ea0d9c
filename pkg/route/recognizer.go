package route

import (
	"slices"
	"strings"

	"github.com/getmockd/mirage/internal/matching"
)

type entry[T any] struct {
	pattern *matching.Pattern
	value   T
	seq     int
}

// Recognizer matches (method, path) pairs against compiled patterns. Within
// one method the most specific pattern wins and registration order breaks
// ties. It is not safe for concurrent mutation.
type Recognizer[T any] struct {
	groups map[string][]entry[T]
	seq    int
	sorted bool
}

// NewRecognizer returns an empty Recognizer.
func NewRecognizer[T any]() *Recognizer[T] {
	return &Recognizer[T]{groups: make(map[string][]entry[T])}
}

// Add compiles pattern and registers value under method.
func (r *Recognizer[T]) Add(method, pattern string, value T) error {
	p, err := matching.CompilePattern(pattern)
	if err != nil {
		return err
	}
	r.AddPattern(method, p, value)
	return nil
}

// AddPattern registers an already compiled pattern.
func (r *Recognizer[T]) AddPattern(method string, p *matching.Pattern, value T) {
	method = strings.ToUpper(method)
	r.groups[method] = append(r.groups[method], entry[T]{pattern: p, value: value, seq: r.seq})
	r.seq++
	r.sorted = false
}

// Compile orders every method group by specificity. Recognize calls it when
// needed.
func (r *Recognizer[T]) Compile() {
	if r.sorted {
		return
	}
	for _, group := range r.groups {
		slices.SortStableFunc(group, func(a, b entry[T]) int {
			if c := matching.Compare(a.pattern, b.pattern); c != 0 {
				return c
			}
			return a.seq - b.seq
		})
	}
	r.sorted = true
}

// Recognize returns the value of the first matching pattern and its
// captured params.
func (r *Recognizer[T]) Recognize(method, path string) (T, map[string]string, bool) {
	r.Compile()
	for _, e := range r.groups[strings.ToUpper(method)] {
		if params, ok := e.pattern.Match(path); ok {
			return e.value, params, true
		}
	}
	var zero T
	return zero, nil, false
}

// Candidates lists every registered pattern, for near-miss reporting.
func (r *Recognizer[T]) Candidates() []matching.Candidate {
	var out []matching.Candidate
	methods := make([]string, 0, len(r.groups))
	for m := range r.groups {
		methods = append(methods, m)
	}
	slices.Sort(methods)
	for _, m := range methods {
		for _, e := range r.groups[m] {
			out = append(out, matching.Candidate{Method: m, Pattern: e.pattern})
		}
	}
	return out
}
