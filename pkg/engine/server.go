package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/getmockd/mirage/internal/id"
	"github.com/getmockd/mirage/pkg/logging"
	"github.com/getmockd/mirage/pkg/mock"
	"github.com/getmockd/mirage/pkg/requestlog"
	"github.com/getmockd/mirage/pkg/route"
	"github.com/getmockd/mirage/pkg/schema"
	"github.com/getmockd/mirage/pkg/util"
)

// DefaultAdminPrefix is where Handler serves the admin API.
const DefaultAdminPrefix = "/__mirage"

// nearMissLimit caps the routes suggested in a 404 body.
const nearMissLimit = 3

// Seeder loads fixtures into a freshly emptied schema.
type Seeder func(s *schema.Schema) error

// Server dispatches intercepted calls against a schema and route table.
type Server struct {
	schema *schema.Schema
	routes *route.Table
	log    *slog.Logger
	calls  requestlog.Store
	seed   Seeder

	// upstream carries pass-through calls to the real network.
	upstream http.RoundTripper
	// upstreamURL receives pass-through calls whose URL has no host.
	upstreamURL *url.URL
	// via marks calls this server forwarded.
	via string

	// storeMu serializes handler execution.
	storeMu sync.Mutex

	mu     sync.RWMutex
	timing time.Duration
	closed bool

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	adminPrefix string
	started     time.Time
	metrics     *serverMetrics
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTiming sets the default delay applied before every handled call.
func WithTiming(d time.Duration) Option {
	return func(s *Server) {
		s.timing = max(d, 0)
	}
}

// WithTransport sets the round tripper used for pass-through calls.
// Defaults to http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Server) {
		if rt != nil {
			s.upstream = rt
		}
	}
}

// WithUpstream sets the base URL for pass-through calls that carry only a
// path, such as requests Handler receives from its listener. Without it
// those calls answer 502.
func WithUpstream(base *url.URL) Option {
	return func(s *Server) {
		if base != nil {
			u := *base
			s.upstreamURL = &u
		}
	}
}

// ParseUpstream validates an upstream base URL for WithUpstream.
func ParseUpstream(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q: use an http or https URL with a host", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("invalid upstream %q: query and fragment are not allowed", raw)
	}
	return u, nil
}

// WithRequestLog sets the store that records handled calls.
func WithRequestLog(store requestlog.Store) Option {
	return func(s *Server) {
		if store != nil {
			s.calls = store
		}
	}
}

// WithSeeder sets the fixture loader run at New and on every Reset.
func WithSeeder(fn Seeder) Option {
	return func(s *Server) {
		s.seed = fn
	}
}

// WithAdminPrefix mounts the admin API under prefix in Handler. An empty
// prefix disables it.
func WithAdminPrefix(prefix string) Option {
	return func(s *Server) {
		s.adminPrefix = strings.TrimSuffix(prefix, "/")
	}
}

// New creates a Server. A nil table starts empty.
func New(s *schema.Schema, routes *route.Table, opts ...Option) (*Server, error) {
	if s == nil {
		return nil, ErrSchemaRequired
	}
	if routes == nil {
		routes = route.NewTable()
	}

	srv := &Server{
		schema:   s,
		routes:   routes,
		log:      logging.Nop(),
		calls:    requestlog.NewMemoryStore(0),
		upstream: http.DefaultTransport,
		via:      "1.1 mirage-" + id.UUID()[:8],

		adminPrefix: DefaultAdminPrefix,
		started:     time.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.ctx, srv.cancel = context.WithCancel(context.Background())
	srv.metrics = newServerMetrics(srv)

	if srv.seed != nil {
		if err := srv.seed(s); err != nil {
			return nil, fmt.Errorf("failed to load fixtures: %w", err)
		}
	}
	return srv, nil
}

// Schema returns the server's schema.
func (s *Server) Schema() *schema.Schema {
	return s.schema
}

// Routes returns the server's route table.
func (s *Server) Routes() *route.Table {
	return s.routes
}

// Timing returns the default delay.
func (s *Server) Timing() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timing
}

// SetTiming changes the default delay for subsequent calls.
func (s *Server) SetTiming(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timing = max(d, 0)
}

// Calls returns the recorded calls matching filter, oldest first.
func (s *Server) Calls(filter *requestlog.Filter) []*requestlog.Entry {
	return s.calls.List(filter)
}

// Reset empties every collection, clears the call log and reloads
// fixtures. It waits for the running handler, if any.
func (s *Server) Reset() error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	s.schema.EmptyData()
	s.calls.Clear()
	if s.seed != nil {
		if err := s.seed(s.schema); err != nil {
			return fmt.Errorf("failed to load fixtures: %w", err)
		}
	}
	return nil
}

// Shutdown stops accepting calls and abandons pending delays. Handlers
// already running complete. It returns when every in-flight call has
// finished or ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Debug("server shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch answers one intercepted call. Failures inside handlers become
// error responses; the returned error is only set when the call was
// abandoned because ctx ended or the server shut down.
func (s *Server) Dispatch(ctx context.Context, req *mock.Request) (*mock.Response, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrServerClosed
	}
	s.inflight.Add(1)
	s.mu.RUnlock()
	defer s.inflight.Done()

	start := time.Now()
	entry := &requestlog.Entry{
		Method:      req.Method,
		URL:         urlString(req),
		Path:        req.Path,
		QueryString: req.Query.Encode(),
		Headers:     req.Headers,
		Body:        util.LogBody(req.Body, 0),
	}
	defer func() {
		entry.Duration = time.Since(start)
		s.calls.Log(entry)
		s.metrics.observe(entry)
	}()

	if s.routes.PassesThrough(req.URL, req.Path) {
		return s.passthrough(ctx, req, entry), nil
	}

	r, params, err := s.routes.Match(req.Method, req.Path)
	if err != nil {
		s.log.Error("route table is invalid", "error", err)
		entry.Outcome = requestlog.OutcomeHandled
		return s.errorResponse(entry, err), nil
	}
	if r == nil {
		if s.routes.PassesUnmatched() {
			return s.passthrough(ctx, req, entry), nil
		}
		return s.notFound(req, entry), nil
	}

	entry.Route = r.Path
	entry.Params = params
	req.Params = params

	delay := s.Timing()
	if r.Timing != nil {
		delay = *r.Timing
	}
	if err := s.wait(ctx, delay); err != nil {
		entry.Outcome = requestlog.OutcomeCancelled
		entry.Error = err.Error()
		s.log.Debug("call abandoned during delay", "method", req.Method, "path", req.Path, "error", err)
		return nil, err
	}

	resp := s.invoke(r, req, entry)
	entry.Outcome = requestlog.OutcomeHandled
	entry.Status = resp.Status
	s.log.Debug("handled",
		"method", req.Method,
		"path", req.Path,
		"route", r.Path,
		"status", resp.Status,
		"duration", time.Since(start),
	)
	return resp, nil
}

// wait sleeps for d unless ctx ends or the server shuts down first.
func (s *Server) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrServerClosed
	}
}

// invoke runs the handler under the store lock and converts its result.
func (s *Server) invoke(r *route.Route, req *mock.Request, entry *requestlog.Entry) (resp *mock.Response) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.log.Error("handler panicked", "method", req.Method, "route", r.Path, "panic", p)
			entry.Error = fmt.Sprint(p)
			resp = mock.Error(http.StatusInternalServerError, "internal_error", fmt.Sprintf("handler panicked: %v", p))
		}
	}()

	v, err := r.Handler(s.schema, req)
	if err != nil {
		return s.errorResponse(entry, err)
	}
	return s.encode(synthesize(v), entry)
}

// encode replaces a structured body with its JSON encoding. A body that
// cannot be encoded turns the call into a 500.
func (s *Server) encode(resp *mock.Response, entry *requestlog.Entry) *mock.Response {
	switch resp.Body.(type) {
	case nil, []byte, string, json.RawMessage:
		return resp
	}
	data, err := resp.Bytes()
	if err != nil {
		return s.errorResponse(entry, err)
	}
	if resp.Headers.Get("Content-Type") == "" {
		resp.Headers = resp.Headers.Clone()
		resp.Headers.Set("Content-Type", "application/json")
	}
	resp.Body = json.RawMessage(data)
	return resp
}

func (s *Server) notFound(req *mock.Request, entry *requestlog.Entry) *mock.Response {
	entry.Outcome = requestlog.OutcomeUnmatched
	entry.Status = http.StatusNotFound

	misses := s.routes.NearMisses(req.Method, req.Path, nearMissLimit)
	s.log.Warn("no route matched", "method", req.Method, "path", req.Path, "nearMisses", len(misses))

	body := map[string]any{
		"error":   "not_found",
		"message": fmt.Sprintf("no route for %s %s", req.Method, req.Path),
	}
	if len(misses) > 0 {
		body["nearMisses"] = misses
	}
	return mock.JSON(http.StatusNotFound, body)
}

func urlString(req *mock.Request) string {
	if req.URL == nil {
		return req.Path
	}
	return req.URL.String()
}
