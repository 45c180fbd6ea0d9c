package route

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/getmockd/mirage/internal/inflect"
	"github.com/getmockd/mirage/internal/matching"
	"github.com/getmockd/mirage/pkg/mock"
	"github.com/getmockd/mirage/pkg/schema"
)

// Handler answers a matched request. It may return a *mock.Response, any
// other JSON-serializable value (sent as 200), or nil for an empty 200.
type Handler func(s *schema.Schema, req *mock.Request) (any, error)

// Shorthand identifies a generated CRUD handler.
type Shorthand struct {
	Model  string `json:"model"`
	Action Action `json:"action"`

	// param names the capture holding the record id; defaults to "id".
	param string
}

func (s Shorthand) idParam() string {
	if s.param == "" {
		return "id"
	}
	return s.param
}

// Route is one registered route.
type Route struct {
	Method  string
	Path    string
	Handler Handler
	// Timing overrides the server delay when set.
	Timing *time.Duration
	// Shorthand is set when Handler was generated for a model.
	Shorthand *Shorthand
	// Generated marks routes expanded from Resource.
	Generated bool

	pattern *matching.Pattern
}

// Pattern returns the compiled path pattern.
func (r *Route) Pattern() *matching.Pattern {
	return r.pattern
}

// shape identifies method and path independently of parameter names.
func (r *Route) shape() string {
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte(' ')
	for _, s := range r.pattern.Segments() {
		b.WriteByte('/')
		switch s.Kind {
		case matching.SegmentParam:
			b.WriteByte(':')
		case matching.SegmentGlob:
			b.WriteByte('*')
		default:
			b.WriteString(s.Value)
		}
	}
	return b.String()
}

// Table is the ordered set of routes and pass-through entries of one
// server.
type Table struct {
	mu sync.RWMutex

	namespace   []string
	explicit    []*Route
	generated   []*Route
	passthrough []*matching.Glob
	// passAll forwards every request no route matches.
	passAll bool
	errs    []error

	active     []*Route
	recognizer *Recognizer[*Route]
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Get registers a GET route.
func (t *Table) Get(path string, h Handler, opts ...Option) {
	t.Handle(http.MethodGet, path, h, opts...)
}

// Post registers a POST route.
func (t *Table) Post(path string, h Handler, opts ...Option) {
	t.Handle(http.MethodPost, path, h, opts...)
}

// Put registers a PUT route.
func (t *Table) Put(path string, h Handler, opts ...Option) {
	t.Handle(http.MethodPut, path, h, opts...)
}

// Patch registers a PATCH route.
func (t *Table) Patch(path string, h Handler, opts ...Option) {
	t.Handle(http.MethodPatch, path, h, opts...)
}

// Delete registers a DELETE route.
func (t *Table) Delete(path string, h Handler, opts ...Option) {
	t.Handle(http.MethodDelete, path, h, opts...)
}

// Head registers a HEAD route. Without one, HEAD requests use GET routes.
func (t *Table) Head(path string, h Handler, opts ...Option) {
	t.Handle(http.MethodHead, path, h, opts...)
}

// Options registers an OPTIONS route.
func (t *Table) Options(path string, h Handler, opts ...Option) {
	t.Handle(http.MethodOptions, path, h, opts...)
}

// Handle registers a route for any method. A nil handler is replaced by the
// shorthand the path implies. Registration errors are collected and
// reported by Finalize.
func (t *Table) Handle(method, path string, h Handler, opts ...Option) {
	t.mu.Lock()
	defer t.mu.Unlock()

	method = strings.ToUpper(method)
	o := applyOptions(opts)
	full := t.prefixed(path)

	p, err := matching.CompilePattern(full)
	if err != nil {
		t.errs = append(t.errs, &RegistrationError{Method: method, Path: full, Err: err})
		return
	}
	r := &Route{Method: method, Path: p.String(), Handler: h, Timing: o.timing, pattern: p}

	if h == nil {
		sh, err := inferShorthand(method, p, o.model)
		if err != nil {
			t.errs = append(t.errs, &RegistrationError{Method: method, Path: full, Err: err})
			return
		}
		r.Shorthand = sh
		r.Handler = shorthandHandler(*sh)
	}

	t.explicit = append(t.explicit, r)
	t.invalidate()
}

// Resource registers shorthand CRUD routes for a model, given by its type
// name or its plural ("contact" or "contacts"). The routes are generated at
// finalize time and yield to explicit routes of the same shape.
func (t *Table) Resource(name string, opts ...Option) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o := applyOptions(opts)
	model := inflect.ModelName(name)
	if o.model != "" {
		model = o.model
	}
	if model == "" {
		t.errs = append(t.errs, &RegistrationError{Path: name, Err: errors.New("resource name is required")})
		return
	}
	segment := o.path
	if segment == "" {
		segment = inflect.PathSegment(model)
	}
	base := t.prefixed(segment)

	for _, action := range o.actions() {
		var methods []string
		path := base
		switch action {
		case ActionIndex:
			methods = []string{http.MethodGet}
		case ActionCreate:
			methods = []string{http.MethodPost}
		case ActionShow:
			methods, path = []string{http.MethodGet}, base+"/:id"
		case ActionUpdate:
			// PATCH is an alias of PUT.
			methods, path = []string{http.MethodPut, http.MethodPatch}, base+"/:id"
		case ActionDelete:
			methods, path = []string{http.MethodDelete}, base+"/:id"
		default:
			t.errs = append(t.errs, &RegistrationError{Path: base, Err: fmt.Errorf("unknown action %q", action)})
			continue
		}

		p, err := matching.CompilePattern(path)
		if err != nil {
			t.errs = append(t.errs, &RegistrationError{Path: path, Err: err})
			continue
		}
		sh := Shorthand{Model: model, Action: action}
		for _, m := range methods {
			t.generated = append(t.generated, &Route{
				Method:    m,
				Path:      p.String(),
				Handler:   shorthandHandler(sh),
				Timing:    o.timing,
				Shorthand: &sh,
				Generated: true,
				pattern:   p,
			})
		}
	}
	t.invalidate()
}

// Namespace prefixes every route registered inside fn with prefix.
// Namespaces nest.
func (t *Table) Namespace(prefix string, fn func(t *Table)) {
	t.mu.Lock()
	t.namespace = append(t.namespace, prefix)
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.namespace = t.namespace[:len(t.namespace)-1]
		t.mu.Unlock()
	}()
	fn(t)
}

// Passthrough forwards matching requests to the real network before any
// route is consulted. Entries are path globs, route patterns or full URL
// globs; path entries are prefixed by the current namespace. Called without
// arguments it forwards every request that no route matches.
func (t *Table) Passthrough(patterns ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(patterns) == 0 {
		t.passAll = true
		return
	}
	for _, raw := range patterns {
		entry := raw
		if !strings.Contains(raw, "://") {
			entry = t.prefixed(raw)
		}
		g, err := matching.CompileGlob(entry)
		if err != nil {
			t.errs = append(t.errs, &RegistrationError{Path: raw, Err: err})
			continue
		}
		t.passthrough = append(t.passthrough, g)
	}
}

// PassesThrough reports whether the request is covered by an explicit
// pass-through entry.
func (t *Table) PassesThrough(u *url.URL, path string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, g := range t.passthrough {
		if g.Match(u, path) {
			return true
		}
	}
	return false
}

// PassesUnmatched reports whether unmatched requests are forwarded.
func (t *Table) PassesUnmatched() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.passAll
}

// PassthroughPatterns returns the pass-through entries as registered.
func (t *Table) PassthroughPatterns() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.passthrough))
	for _, g := range t.passthrough {
		out = append(out, g.String())
	}
	return out
}

// Finalize materializes shorthand routes and compiles the match order. It
// returns every registration error collected so far. Match finalizes on
// demand; registering another route invalidates the result.
func (t *Table) Finalize() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finalizeLocked()
}

func (t *Table) finalizeLocked() error {
	if err := errors.Join(t.errs...); err != nil {
		return err
	}
	if t.recognizer != nil {
		return nil
	}

	rec := NewRecognizer[*Route]()
	taken := make(map[string]bool, len(t.explicit)+len(t.generated))
	active := make([]*Route, 0, len(t.explicit)+len(t.generated))

	for _, r := range t.explicit {
		taken[r.shape()] = true
		rec.AddPattern(r.Method, r.pattern, r)
		active = append(active, r)
	}
	for _, r := range t.generated {
		if taken[r.shape()] {
			continue
		}
		taken[r.shape()] = true
		rec.AddPattern(r.Method, r.pattern, r)
		active = append(active, r)
	}
	rec.Compile()

	t.recognizer = rec
	t.active = active
	return nil
}

// Match finds the route for a request. HEAD falls back to GET routes when
// no HEAD route matches.
func (t *Table) Match(method, path string) (*Route, map[string]string, error) {
	rec, err := t.compiled()
	if err != nil {
		return nil, nil, err
	}

	method = strings.ToUpper(method)
	if r, params, ok := rec.Recognize(method, path); ok {
		return r, params, nil
	}
	if method == http.MethodHead {
		if r, params, ok := rec.Recognize(http.MethodGet, path); ok {
			return r, params, nil
		}
	}
	return nil, nil, nil
}

// NearMisses explains why no route matched a request.
func (t *Table) NearMisses(method, path string, limit int) []matching.NearMiss {
	rec, err := t.compiled()
	if err != nil {
		return nil
	}
	return matching.NearMisses(method, path, rec.Candidates(), limit)
}

// Routes returns the finalized routes, explicit routes first and then the
// generated ones that were kept, each in registration order.
func (t *Table) Routes() ([]*Route, error) {
	if _, err := t.compiled(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Route(nil), t.active...), nil
}

// CheckModels verifies every shorthand route names a model registered in s.
func (t *Table) CheckModels(s *schema.Schema) error {
	routes, err := t.Routes()
	if err != nil {
		return err
	}
	var errs []error
	seen := make(map[string]bool)
	for _, r := range routes {
		if r.Shorthand == nil || seen[r.Shorthand.Model] {
			continue
		}
		seen[r.Shorthand.Model] = true
		if _, ok := s.ResolveModelName(r.Shorthand.Model); !ok {
			errs = append(errs, &RegistrationError{
				Method: r.Method,
				Path:   r.Path,
				Err:    &schema.UnknownModelError{Model: r.Shorthand.Model},
			})
		}
	}
	return errors.Join(errs...)
}

func (t *Table) compiled() (*Recognizer[*Route], error) {
	t.mu.RLock()
	rec := t.recognizer
	t.mu.RUnlock()
	if rec != nil {
		return rec, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.finalizeLocked(); err != nil {
		return nil, err
	}
	return t.recognizer, nil
}

func (t *Table) invalidate() {
	t.recognizer = nil
	t.active = nil
}

func (t *Table) prefixed(path string) string {
	full := "/"
	for _, ns := range t.namespace {
		full = matching.Join(full, ns)
	}
	return matching.Join(full, path)
}
