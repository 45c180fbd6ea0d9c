package engine

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/getmockd/mirage/pkg/httputil"
	"github.com/getmockd/mirage/pkg/openapi"
	"github.com/getmockd/mirage/pkg/requestlog"
	"github.com/getmockd/mirage/pkg/route"
)

// HealthResponse is the body of GET {prefix}/health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime int    `json:"uptime"`
}

// RouteInfo describes one active route in GET {prefix}/routes.
type RouteInfo struct {
	Method    string           `json:"method"`
	Path      string           `json:"path"`
	Shorthand *route.Shorthand `json:"shorthand,omitempty"`
	Generated bool             `json:"generated,omitempty"`
	Timing    string           `json:"timing,omitempty"`
}

// TimingRequest is the body of PUT {prefix}/timing.
type TimingRequest struct {
	// Timing is a Go duration string such as "250ms".
	Timing string `json:"timing"`
}

func (s *Server) adminRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route(s.adminPrefix, func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/db", s.handleDump)
		r.Get("/routes", s.handleListRoutes)

		r.Get("/calls", s.handleListCalls)
		r.Delete("/calls", s.handleClearCalls)
		r.Get("/calls/{id}", s.handleGetCall)

		r.Post("/reset", s.handleReset)

		r.Get("/timing", s.handleGetTiming)
		r.Put("/timing", s.handleSetTiming)

		r.Get("/openapi.json", s.handleOpenAPI)
		r.Get("/openapi.yaml", s.handleOpenAPI)

		r.Method(http.MethodGet, "/metrics", s.metrics.registry.Handler())
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "not_found", "unknown admin endpoint "+r.URL.Path)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, HealthResponse{
		Status: "ok",
		Uptime: int(time.Since(s.started).Seconds()),
	})
}

// handleDump returns every collection keyed by name.
func (s *Server) handleDump(w http.ResponseWriter, _ *http.Request) {
	s.storeMu.Lock()
	dump := s.schema.Db().Dump()
	s.storeMu.Unlock()
	httputil.WriteOK(w, dump)
}

func (s *Server) handleListRoutes(w http.ResponseWriter, _ *http.Request) {
	routes, err := s.routes.Routes()
	if err != nil {
		httputil.WriteInternalError(w, "invalid_routes", err.Error())
		return
	}
	out := make([]RouteInfo, 0, len(routes))
	for _, r := range routes {
		info := RouteInfo{
			Method:    r.Method,
			Path:      r.Path,
			Shorthand: r.Shorthand,
			Generated: r.Generated,
		}
		if r.Timing != nil {
			info.Timing = r.Timing.String()
		}
		out = append(out, info)
	}
	httputil.WriteOK(w, out)
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &requestlog.Filter{
		Method:  q.Get("method"),
		Path:    q.Get("path"),
		Route:   q.Get("route"),
		Outcome: requestlog.Outcome(q.Get("outcome")),
	}
	if v := q.Get("status"); v != "" {
		status, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid_status", "status must be an integer")
			return
		}
		filter.Status = status
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			httputil.WriteBadRequest(w, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	httputil.WriteOK(w, s.Calls(filter))
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	entry := s.calls.Get(chi.URLParam(r, "id"))
	if entry == nil {
		httputil.WriteError(w, http.StatusNotFound, "not_found", "call not found")
		return
	}
	httputil.WriteOK(w, entry)
}

func (s *Server) handleClearCalls(w http.ResponseWriter, _ *http.Request) {
	s.calls.Clear()
	httputil.WriteNoContent(w)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := s.Reset(); err != nil {
		s.log.Error("reset failed", "error", err)
		httputil.WriteInternalError(w, "reset_failed", err.Error())
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleGetTiming(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, TimingRequest{Timing: s.Timing().String()})
}

func (s *Server) handleSetTiming(w http.ResponseWriter, r *http.Request) {
	var body TimingRequest
	if err := decodeBody(r, &body); err != nil {
		httputil.WriteBadRequest(w, "invalid_json", err.Error())
		return
	}
	d, err := time.ParseDuration(body.Timing)
	if err != nil || d < 0 {
		httputil.WriteBadRequest(w, "invalid_timing", "timing must be a non-negative duration such as \"250ms\"")
		return
	}
	s.SetTiming(d)
	httputil.WriteOK(w, TimingRequest{Timing: d.String()})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := openapi.Export(s.routes, s.schema, openapi.Info{Title: "mirage"})
	if err != nil {
		httputil.WriteInternalError(w, "export_failed", err.Error())
		return
	}

	var (
		data        []byte
		contentType string
	)
	if strings.HasSuffix(r.URL.Path, ".yaml") {
		data, err = doc.YAML()
		contentType = "application/yaml"
	} else {
		data, err = doc.JSON()
		contentType = "application/json"
	}
	if err != nil {
		httputil.WriteInternalError(w, "export_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// maxAdminBody caps admin request bodies.
const maxAdminBody = 1 << 20

// decodeBody decodes a required JSON body.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.New("request body is required")
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxAdminBody)).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	return nil
}
