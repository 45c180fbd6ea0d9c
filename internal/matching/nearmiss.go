package matching

import (
	"fmt"
	"sort"
	"strings"
)

// Candidate is a registered route considered when explaining a miss.
type Candidate struct {
	Method  string
	Pattern *Pattern
}

// NearMiss is a registered route that partially matched a request.
type NearMiss struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
	// Score counts leading segments that matched, plus one when the path
	// matched completely.
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// NearMisses ranks candidates against an unmatched request and returns at
// most limit of the closest ones. Candidates sharing no leading segment
// with the path are dropped.
func NearMisses(method, path string, candidates []Candidate, limit int) []NearMiss {
	parts := splitPath(NormalizePath(path))
	var out []NearMiss

	for _, c := range candidates {
		if _, ok := c.Pattern.Match(path); ok {
			if strings.EqualFold(c.Method, method) {
				continue
			}
			out = append(out, NearMiss{
				Method:  c.Method,
				Pattern: c.Pattern.String(),
				Score:   len(parts) + 1,
				Reason:  fmt.Sprintf("path matches but method is %s, not %s", c.Method, method),
			})
			continue
		}

		prefix := leadingMatch(c.Pattern, parts)
		if prefix == 0 {
			continue
		}
		segs := c.Pattern.segments
		reason := fmt.Sprintf("path has %d segments, pattern expects %d", len(parts), len(segs))
		if prefix < len(segs) && prefix < len(parts) {
			reason = fmt.Sprintf("segment %d %q does not match %q", prefix+1, parts[prefix], describe(segs[prefix]))
		}
		out = append(out, NearMiss{
			Method:  c.Method,
			Pattern: c.Pattern.String(),
			Score:   prefix,
			Reason:  reason,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func leadingMatch(p *Pattern, parts []string) int {
	n := 0
	for i, seg := range p.segments {
		if i >= len(parts) || seg.Kind == SegmentGlob {
			break
		}
		if seg.Kind == SegmentLiteral && seg.Value != parts[i] {
			break
		}
		n++
	}
	return n
}

func describe(s Segment) string {
	switch s.Kind {
	case SegmentParam:
		return ":" + s.Value
	case SegmentGlob:
		return "*" + s.Value
	default:
		return s.Value
	}
}
