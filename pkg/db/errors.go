package db

import (
	"errors"
	"fmt"
	"net/http"
)

// Contract violations. These are programming or configuration mistakes and
// are never retried.
var (
	// ErrTypeRequired is returned when a collection is constructed without a name.
	ErrTypeRequired = errors.New("collection type is required")

	// ErrImmutableID is returned when an update tries to change a record id.
	ErrImmutableID = errors.New("record id cannot be changed")
)

// NotFoundError is returned when an update targets an id that is not stored.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("collection %q record %q not found", e.Collection, e.ID)
}

// StatusCode returns the HTTP status code for this error.
func (e *NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *NotFoundError) Hint() string {
	return fmt.Sprintf("Check that record %q exists in %q before updating it.", e.ID, e.Collection)
}

// ConflictError is returned when a record with the same id already exists.
type ConflictError struct {
	Collection string
	ID         string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("collection %q record %q already exists", e.Collection, e.ID)
}

// StatusCode returns the HTTP status code for this error.
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *ConflictError) Hint() string {
	return fmt.Sprintf("Record %q already exists. Omit the id to have one assigned, or update the existing record.", e.ID)
}

// ConfigError reports a store misconfiguration, such as an unknown
// collection in strict mode or an identity strategy swapped after records
// were inserted.
type ConfigError struct {
	Collection string
	Message    string
}

func (e *ConfigError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("collection %q: %s", e.Collection, e.Message)
	}
	return e.Message
}

// StatusCode returns the HTTP status code for this error.
func (e *ConfigError) StatusCode() int {
	return http.StatusInternalServerError
}
