package matching

import (
	"fmt"
	"strings"
)

// SegmentKind classifies one path segment of a pattern.
type SegmentKind int

const (
	// SegmentLiteral matches itself exactly.
	SegmentLiteral SegmentKind = iota
	// SegmentParam matches any single non-empty segment and captures it.
	SegmentParam
	// SegmentGlob matches the rest of the path, possibly empty, and captures it.
	SegmentGlob
)

// Segment is one compiled path segment.
type Segment struct {
	Kind SegmentKind
	// Value is the literal text, or the capture name for params and globs.
	Value string
}

// Pattern is a compiled route path such as "/contacts/:id" or
// "/files/*path".
type Pattern struct {
	raw      string
	segments []Segment
}

// CompilePattern parses a route path. A glob is only allowed as the last
// segment; an unnamed glob ("*") captures under "*".
func CompilePattern(raw string) (*Pattern, error) {
	p := &Pattern{raw: NormalizePath(raw)}
	parts := splitPath(p.raw)
	seen := make(map[string]bool, len(parts))

	for i, part := range parts {
		switch {
		case strings.HasPrefix(part, ":"):
			name := part[1:]
			if name == "" {
				return nil, fmt.Errorf("pattern %q: segment %d has an empty parameter name", raw, i+1)
			}
			if seen[name] {
				return nil, fmt.Errorf("pattern %q: parameter %q appears twice", raw, name)
			}
			seen[name] = true
			p.segments = append(p.segments, Segment{Kind: SegmentParam, Value: name})
		case strings.HasPrefix(part, "*"):
			if i != len(parts)-1 {
				return nil, fmt.Errorf("pattern %q: glob must be the last segment", raw)
			}
			name := part[1:]
			if name == "" {
				name = "*"
			}
			if seen[name] {
				return nil, fmt.Errorf("pattern %q: parameter %q appears twice", raw, name)
			}
			p.segments = append(p.segments, Segment{Kind: SegmentGlob, Value: name})
		default:
			p.segments = append(p.segments, Segment{Kind: SegmentLiteral, Value: part})
		}
	}
	return p, nil
}

// MustCompilePattern is like CompilePattern but panics on error.
func MustCompilePattern(raw string) *Pattern {
	p, err := CompilePattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the normalized pattern text.
func (p *Pattern) String() string {
	return p.raw
}

// Segments returns the compiled segments.
func (p *Pattern) Segments() []Segment {
	return append([]Segment(nil), p.segments...)
}

// Params returns capture names in path order.
func (p *Pattern) Params() []string {
	var names []string
	for _, s := range p.segments {
		if s.Kind != SegmentLiteral {
			names = append(names, s.Value)
		}
	}
	return names
}

// Literals counts literal segments.
func (p *Pattern) Literals() int {
	n := 0
	for _, s := range p.segments {
		if s.Kind == SegmentLiteral {
			n++
		}
	}
	return n
}

// HasGlob reports whether the pattern ends in a glob.
func (p *Pattern) HasGlob() bool {
	return len(p.segments) > 0 && p.segments[len(p.segments)-1].Kind == SegmentGlob
}

// Match tests path against the pattern and returns the captured values.
func (p *Pattern) Match(path string) (map[string]string, bool) {
	parts := splitPath(NormalizePath(path))
	params := make(map[string]string)

	for i, seg := range p.segments {
		if seg.Kind == SegmentGlob {
			params[seg.Value] = strings.Join(parts[i:], "/")
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}
		switch seg.Kind {
		case SegmentLiteral:
			if parts[i] != seg.Value {
				return nil, false
			}
		case SegmentParam:
			params[seg.Value] = parts[i]
		}
	}
	if len(parts) != len(p.segments) {
		return nil, false
	}
	return params, true
}

// OpenAPIPath renders the pattern with "{name}" parameters.
func (p *Pattern) OpenAPIPath() string {
	if len(p.segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range p.segments {
		b.WriteByte('/')
		if s.Kind == SegmentLiteral {
			b.WriteString(s.Value)
			continue
		}
		name := s.Value
		if name == "*" {
			name = "path"
		}
		b.WriteString("{" + name + "}")
	}
	return b.String()
}

// Join concatenates path prefixes the way namespaces are applied.
func Join(prefix, path string) string {
	prefix = NormalizePath(prefix)
	path = NormalizePath(path)
	if prefix == "/" {
		return path
	}
	if path == "/" {
		return prefix
	}
	return prefix + path
}

// NormalizePath ensures a leading slash, collapses repeated slashes and
// strips a trailing slash except on the root.
func NormalizePath(path string) string {
	parts := splitPath(path)
	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/")
}

func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}
