package platform

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// SchemaCreationError is returned when asynchronous schema creation reaches
// a failed terminal state.
type SchemaCreationError struct {
	// APIID is the API whose schema was submitted.
	APIID string

	// Status is the terminal status reported by the service.
	Status string

	// Details is the service-provided failure description.
	Details string
}

// Error implements the error interface.
func (e *SchemaCreationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("schema creation for api %q ended in %s: %s", e.APIID, e.Status, e.Details)
	}
	return fmt.Sprintf("schema creation for api %q ended in %s", e.APIID, e.Status)
}

// StageError wraps the error that aborted a pipeline stage.
type StageError struct {
	// Stage is the stage that failed.
	Stage Stage

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error { return e.Err }

// ErrNotFound is a provider-neutral "resource does not exist" condition.
var ErrNotFound = errors.New("resource not found")

// notFoundCodes are service error codes meaning the addressed resource does
// not exist.
var notFoundCodes = map[string]bool{
	"NotFoundException":         true,
	"NoSuchEntity":              true,
	"NoSuchKey":                 true,
	"NotFound":                  true,
	"ResourceNotFoundException": true,
}

// IsNotFound reports whether err means the addressed remote resource does
// not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return notFoundCodes[apiErr.ErrorCode()]
	}
	return false
}
