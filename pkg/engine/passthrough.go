package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getmockd/mirage/pkg/mock"
	"github.com/getmockd/mirage/pkg/requestlog"
)

// maxPassthroughBody caps the body read back from the real network.
const maxPassthroughBody = 10 << 20

// passthrough forwards the call unmodified and relays the real response.
// It never consults a handler or the store.
func (s *Server) passthrough(ctx context.Context, req *mock.Request, entry *requestlog.Entry) *mock.Response {
	entry.Outcome = requestlog.OutcomePassthrough
	start := time.Now()

	resp, err := s.forward(ctx, req)
	if err != nil {
		s.log.Warn("pass-through failed", "method", req.Method, "url", entry.URL, "error", err)
		entry.Status = http.StatusBadGateway
		entry.Error = err.Error()
		return mock.Error(http.StatusBadGateway, "bad_gateway", err.Error())
	}

	entry.Status = resp.Status
	s.log.Info("passed through",
		"method", req.Method,
		"url", entry.URL,
		"status", resp.Status,
		"duration", time.Since(start),
	)
	return resp
}

func (s *Server) forward(ctx context.Context, req *mock.Request) (*mock.Response, error) {
	if s.forwardedHere(req.Headers) {
		return nil, ErrPassthroughLoop
	}
	target, err := s.target(req)
	if err != nil {
		return nil, err
	}

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	out, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	copyHeaders(out.Header, req.Headers)
	removeHopByHopHeaders(out.Header)
	out.Header.Add("Via", s.via)

	resp, err := s.upstream.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPassthroughBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream body: %w", err)
	}

	headers := http.Header{}
	copyHeaders(headers, resp.Header)
	removeHopByHopHeaders(headers)
	headers.Del("Content-Length")
	return &mock.Response{Status: resp.StatusCode, Headers: headers, Body: data}, nil
}

// target is where a pass-through call goes: the request URL when it names
// a host, otherwise the path and query resolved against the upstream.
func (s *Server) target(req *mock.Request) (*url.URL, error) {
	if req.URL != nil && req.URL.Host != "" {
		return req.URL, nil
	}
	if s.upstreamURL == nil {
		return nil, fmt.Errorf("cannot pass through %s: %w", req.Path, ErrNoUpstream)
	}
	u := *s.upstreamURL
	u.Path = strings.TrimSuffix(u.Path, "/") + req.Path
	u.RawPath = ""
	u.RawQuery = req.Query.Encode()
	if req.URL != nil && req.URL.RawQuery != "" {
		u.RawQuery = req.URL.RawQuery
	}
	u.Fragment = ""
	return &u, nil
}

// forwardedHere reports whether the call carries this server's Via entry.
func (s *Server) forwardedHere(h http.Header) bool {
	for _, v := range h.Values("Via") {
		for _, hop := range strings.Split(v, ",") {
			if strings.TrimSpace(hop) == s.via {
				return true
			}
		}
	}
	return false
}

// copyHeaders copies headers from src to dst.
func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// removeHopByHopHeaders removes headers that should not be forwarded.
func removeHopByHopHeaders(h http.Header) {
	hopByHopHeaders := []string{
		"Connection",
		"Keep-Alive",
		"Proxy-Authenticate",
		"Proxy-Authorization",
		"Proxy-Connection",
		"TE",
		"Trailers",
		"Transfer-Encoding",
		"Upgrade",
	}

	for _, header := range hopByHopHeaders {
		h.Del(header)
	}
}
