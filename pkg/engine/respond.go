package engine

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/getmockd/mirage/pkg/mock"
	"github.com/getmockd/mirage/pkg/requestlog"
)

// synthesize turns a handler's return value into a response: explicit
// responses pass through, nil becomes an empty 200 and anything else a
// JSON 200.
func synthesize(v any) *mock.Response {
	switch t := v.(type) {
	case nil:
		return mock.Empty(http.StatusOK)
	case *mock.Response:
		if t == nil {
			return mock.Empty(http.StatusOK)
		}
		out := *t
		if out.Status == 0 {
			out.Status = http.StatusOK
		}
		if out.Headers == nil {
			out.Headers = http.Header{}
		}
		return &out
	case mock.Response:
		return synthesize(&t)
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return mock.Empty(http.StatusOK)
	}
	return mock.JSON(http.StatusOK, v)
}

// errorResponse maps a handler error to a JSON error response. Errors that
// carry a status code keep it; everything else is a 500.
func (s *Server) errorResponse(entry *requestlog.Entry, err error) *mock.Response {
	status := http.StatusInternalServerError
	var sc StatusCodeError
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}
	entry.Error = err.Error()

	if status >= http.StatusInternalServerError {
		s.log.Error("handler failed", "method", entry.Method, "path", entry.Path, "status", status, "error", err)
	} else {
		s.log.Debug("handler rejected request", "method", entry.Method, "path", entry.Path, "status", status, "error", err)
	}

	body := map[string]any{
		"error":   errorCode(status),
		"message": err.Error(),
	}
	var hint HintError
	if errors.As(err, &hint) {
		body["hint"] = hint.Hint()
	}
	return mock.JSON(status, body)
}

// errorCode derives a snake_case code from the status text:
// 422 -> "unprocessable_entity".
func errorCode(status int) string {
	if status == http.StatusInternalServerError {
		return "internal_error"
	}
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
