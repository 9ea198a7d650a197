package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrServiceUnavailable indicates a backing service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrFetch indicates the document bytes could not be retrieved from storage
	ErrFetch = errors.New("fetch failed")

	// ErrParse indicates the buffer is not a readable document
	ErrParse = errors.New("parse failed")

	// ErrEmbedding indicates the embedding model could not produce a vector
	ErrEmbedding = errors.New("embedding failed")

	// ErrStore indicates the vector store rejected a write or a query
	ErrStore = errors.New("vector store failed")
)

// StageError records the ingestion state a failure happened in.
// errors.Is matches both the kind sentinel and the underlying cause.
type StageError struct {
	Stage JobState
	Kind  error
	Err   error
}

// NewStageError wraps err with its kind and the stage it occurred in.
func NewStageError(stage JobState, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	if errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
