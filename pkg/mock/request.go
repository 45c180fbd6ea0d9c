package mock

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// ErrEmptyBody is returned when decoding a request without a body.
var ErrEmptyBody = errors.New("request body is empty")

// Request is one intercepted call.
type Request struct {
	Method string
	// URL is the full request URL, including scheme and host when known.
	URL *url.URL
	// Path is the URL path used for route matching.
	Path  string
	Query url.Values
	// Params holds the values captured by the matched route pattern.
	Params  map[string]string
	Headers http.Header
	Body    []byte
}

// NewRequest builds a Request from a method, URL and raw body.
func NewRequest(method, rawURL string, body []byte) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", rawURL, err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return &Request{
		Method:  strings.ToUpper(method),
		URL:     u,
		Path:    path,
		Query:   u.Query(),
		Params:  map[string]string{},
		Headers: http.Header{},
		Body:    body,
	}, nil
}

// FromHTTP converts an outgoing or incoming *http.Request. The body is
// read fully and replaced so r can still be forwarded. The URL is kept as
// received: a server request in origin form has no host.
func FromHTTP(r *http.Request) (*Request, error) {
	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		data, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		body = data
		r.Body = io.NopCloser(bytes.NewReader(data))
	}

	u := *r.URL
	path := u.Path
	if path == "" {
		path = "/"
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		Method:  strings.ToUpper(method),
		URL:     &u,
		Path:    path,
		Query:   u.Query(),
		Params:  map[string]string{},
		Headers: r.Header.Clone(),
		Body:    body,
	}, nil
}

// Param returns a captured path parameter.
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// QueryParam returns the first value of a query-string parameter.
func (r *Request) QueryParam(name string) string {
	return r.Query.Get(name)
}

// Header returns the first value of a request header.
func (r *Request) Header(name string) string {
	return r.Headers.Get(name)
}

// DecodeJSON unmarshals the body into v.
func (r *Request) DecodeJSON(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// JSON decodes an object body. An empty body yields an empty map.
func (r *Request) JSON() (map[string]any, error) {
	out := map[string]any{}
	if err := r.DecodeJSON(&out); err != nil {
		if errors.Is(err, ErrEmptyBody) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	return out, nil
}

// JSONPath evaluates a JSONPath expression against the body and returns
// every matched value.
func (r *Request) JSONPath(path string) ([]any, error) {
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath %q: %w", path, err)
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil, nil
	}
	data, err := oj.Parse(r.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return expr.Get(data), nil
}

// JSONPathFirst returns the first value matched by path, or nil.
func (r *Request) JSONPathFirst(path string) (any, error) {
	values, err := r.JSONPath(path)
	if err != nil || len(values) == 0 {
		return nil, err
	}
	return values[0], nil
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	out := *r
	if r.URL != nil {
		u := *r.URL
		out.URL = &u
	}
	out.Query = url.Values(http.Header(r.Query).Clone())
	out.Params = maps.Clone(r.Params)
	out.Headers = r.Headers.Clone()
	out.Body = bytes.Clone(r.Body)
	return &out
}
