// Package httputil converts synthesized responses to HTTP and writes the
// JSON bodies of the admin API.
package httputil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/getmockd/mirage/pkg/mock"
)

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header to application/json.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error response with the given status code.
// The error response includes an error code and a human-readable message.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteJSON(w, status, map[string]string{
		"error":   errCode,
		"message": message,
	})
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteOK writes a 200 OK response with data.
func WriteOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteBadRequest writes a 400 Bad Request error response.
func WriteBadRequest(w http.ResponseWriter, errCode, message string) {
	WriteError(w, http.StatusBadRequest, errCode, message)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, errCode, message string) {
	WriteError(w, http.StatusInternalServerError, errCode, message)
}

// WriteResponse writes a synthesized response. Bodies are omitted for
// statuses that forbid them.
func WriteResponse(w http.ResponseWriter, resp *mock.Response, method string) {
	body, err := resp.Bytes()
	if err != nil {
		WriteInternalError(w, "encode_error", err.Error())
		return
	}
	for k, vs := range resp.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if ct := resp.ContentType(); ct != "" && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", ct)
	}

	status := statusOrOK(resp.Status)
	if !bodyAllowed(status, method) {
		w.WriteHeader(status)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// ToHTTPResponse builds the *http.Response a RoundTripper returns for req.
func ToHTTPResponse(resp *mock.Response, req *http.Request) (*http.Response, error) {
	body, err := resp.Bytes()
	if err != nil {
		return nil, err
	}
	status := statusOrOK(resp.Status)
	method := http.MethodGet
	if req != nil {
		method = req.Method
	}
	if !bodyAllowed(status, method) {
		body = nil
	}

	header := resp.Headers.Clone()
	if header == nil {
		header = http.Header{}
	}
	if ct := resp.ContentType(); ct != "" && header.Get("Content-Type") == "" {
		header.Set("Content-Type", ct)
	}
	if len(body) > 0 {
		header.Set("Content-Length", strconv.Itoa(len(body)))
	}

	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

func statusOrOK(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

func bodyAllowed(status int, method string) bool {
	if method == http.MethodHead {
		return false
	}
	return status != http.StatusNoContent && status != http.StatusNotModified && (status < 100 || status >= 200)
}
