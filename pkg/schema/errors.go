package schema

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrDbRequired is returned when a Schema is constructed without a Db.
var ErrDbRequired = errors.New("schema requires a db")

// ConfigError reports an invalid model or association declaration.
type ConfigError struct {
	Model   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("model %q: %s", e.Model, e.Message)
	}
	return e.Message
}

// StatusCode returns the HTTP status code for this error.
func (e *ConfigError) StatusCode() int {
	return http.StatusInternalServerError
}

// UnknownModelError is returned when an operation names a model type that
// was never registered. It is a configuration error, not a lookup miss.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("model %q is not registered", e.Model)
}

// StatusCode returns the HTTP status code for this error.
func (e *UnknownModelError) StatusCode() int {
	return http.StatusInternalServerError
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *UnknownModelError) Hint() string {
	return fmt.Sprintf("Register a model definition named %q before using it.", e.Model)
}

// UnknownAssociationError is returned when resolving an association name
// the model does not declare.
type UnknownAssociationError struct {
	Model       string
	Association string
	Kind        Kind
}

func (e *UnknownAssociationError) Error() string {
	return fmt.Sprintf("model %q has no %s association %q", e.Model, e.Kind, e.Association)
}

// StatusCode returns the HTTP status code for this error.
func (e *UnknownAssociationError) StatusCode() int {
	return http.StatusInternalServerError
}

// AssociationError is returned when a write introduces a foreign key that
// does not reference an existing record.
type AssociationError struct {
	Model       string
	Association string
	ForeignKey  string
	Target      string
	ID          string
	// Message replaces the default description for malformed values.
	Message string
}

func (e *AssociationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("model %q %s: %s", e.Model, e.Association, e.Message)
	}
	return fmt.Sprintf("model %q %s: %s %q does not exist (via %s)", e.Model, e.Association, e.Target, e.ID, e.ForeignKey)
}

// StatusCode returns the HTTP status code for this error.
func (e *AssociationError) StatusCode() int {
	return http.StatusUnprocessableEntity
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *AssociationError) Hint() string {
	if e.Message != "" {
		return fmt.Sprintf("Pass a %s, its id, or its attributes.", e.Target)
	}
	return fmt.Sprintf("Create %s %q first, or clear %q.", e.Target, e.ID, e.ForeignKey)
}

// ValidationError is returned when attributes violate the model's declared
// attribute descriptors.
type ValidationError struct {
	Model   string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("model %q: validation failed for field %q: %s", e.Model, e.Field, e.Message)
	}
	return fmt.Sprintf("model %q: validation failed: %s", e.Model, e.Message)
}

// StatusCode returns the HTTP status code for this error.
func (e *ValidationError) StatusCode() int {
	return http.StatusUnprocessableEntity
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *ValidationError) Hint() string {
	if e.Field != "" {
		return fmt.Sprintf("Check the value of field %q.", e.Field)
	}
	return "Check the required attributes of the model."
}
