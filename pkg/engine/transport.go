package engine

import (
	"errors"
	"net/http"
	"strings"

	"github.com/getmockd/mirage/pkg/httputil"
	"github.com/getmockd/mirage/pkg/mock"
)

// Transport returns a RoundTripper that answers every request from the
// server. A call cancelled during its delay fails with the context error.
func (s *Server) Transport() http.RoundTripper {
	return &transport{srv: s}
}

type transport struct {
	srv *Server
}

func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	req, err := mock.FromHTTP(r)
	if err != nil {
		return nil, err
	}
	resp, err := t.srv.Dispatch(r.Context(), req)
	if err != nil {
		return nil, err
	}
	return httputil.ToHTTPResponse(resp, r)
}

// Handler returns an http.Handler serving the admin API under the admin
// prefix and dispatching everything else.
func (s *Server) Handler() http.Handler {
	var admin http.Handler
	if s.adminPrefix != "" {
		admin = s.adminRouter()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if admin != nil && (r.URL.Path == s.adminPrefix || strings.HasPrefix(r.URL.Path, s.adminPrefix+"/")) {
			admin.ServeHTTP(w, r)
			return
		}
		s.serveHTTP(w, r)
	})
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := mock.FromHTTP(r)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid_request", err.Error())
		return
	}
	resp, err := s.Dispatch(r.Context(), req)
	switch {
	case errors.Is(err, ErrServerClosed):
		httputil.WriteError(w, http.StatusServiceUnavailable, "server_closed", err.Error())
		return
	case err != nil:
		// The client went away during the delay.
		return
	}
	httputil.WriteResponse(w, resp, r.Method)
}
