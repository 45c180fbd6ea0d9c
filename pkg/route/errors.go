package route

import (
	"fmt"
	"net/http"
)

// NotFoundError is the typed signal a handler returns to answer 404.
type NotFoundError struct {
	Model string
	ID    string
	// Message replaces the default description.
	Message string
}

// NotFound returns a NotFoundError for a record of model with the given id.
func NotFound(model, id string) *NotFoundError {
	return &NotFoundError{Model: model, ID: id}
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Model != "" && e.ID != "":
		return fmt.Sprintf("%s %q not found", e.Model, e.ID)
	case e.Model != "":
		return e.Model + " not found"
	default:
		return "not found"
	}
}

// StatusCode returns the HTTP status code for this error.
func (e *NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// RegistrationError reports an invalid route registration.
type RegistrationError struct {
	Method string
	Path   string
	Err    error
}

func (e *RegistrationError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("route %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("route %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code for this error.
func (e *RegistrationError) StatusCode() int {
	return http.StatusInternalServerError
}

// BadRequestError is returned by shorthand handlers for malformed bodies.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status code for this error.
func (e *BadRequestError) StatusCode() int {
	return http.StatusBadRequest
}
