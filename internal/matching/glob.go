package matching

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob is a compiled pass-through entry. Entries starting with a scheme
// match against the full request URL, everything else against the path.
// Route-style ":name" segments are accepted and match one segment.
type Glob struct {
	raw     string
	pattern string
	full    bool
}

// CompileGlob parses a pass-through entry such as "/api/**",
// "/users/:id" or "https://cdn.example.com/**".
func CompileGlob(raw string) (*Glob, error) {
	entry := strings.TrimSpace(raw)
	if entry == "" {
		return nil, fmt.Errorf("empty pass-through pattern")
	}

	g := &Glob{raw: raw}
	if u, err := url.Parse(entry); err == nil && u.Scheme != "" && u.Host != "" {
		g.full = true
		path := u.Path
		if path == "" || path == "/" {
			// A bare origin covers every path under it.
			path = "/**"
		}
		g.pattern = u.Scheme + "://" + u.Host + paramsToStars(path)
	} else {
		g.pattern = paramsToStars(NormalizePath(entry))
	}

	if !doublestar.ValidatePattern(g.pattern) {
		return nil, fmt.Errorf("invalid pass-through pattern %q", raw)
	}
	return g, nil
}

// String returns the entry as given.
func (g *Glob) String() string {
	return g.raw
}

// Match reports whether the request URL is covered by the entry.
func (g *Glob) Match(u *url.URL, path string) bool {
	target := NormalizePath(path)
	if g.full {
		if u == nil || u.Host == "" {
			return false
		}
		scheme := u.Scheme
		if scheme == "" {
			scheme = "http"
		}
		target = scheme + "://" + u.Host + target
	}
	ok, err := doublestar.Match(g.pattern, target)
	return err == nil && ok
}

func paramsToStars(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") && len(p) > 1 {
			parts[i] = "*"
		}
	}
	return strings.Join(parts, "/")
}
