package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrCollaboratorUnavailable marks a failed embedding, model or index call.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrIndexMismatch marks a query embedded with a different model than the index.
	ErrIndexMismatch = errors.New("index embedding model mismatch")
	// ErrIndexNotBuilt is returned when no persisted index exists yet.
	ErrIndexNotBuilt = errors.New("index not built")
	// ErrEmptyQuestion is returned for blank input.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrInvalidConfig is returned by configuration validation.
	ErrInvalidConfig = errors.New("invalid config")
)

// CollaboratorError wraps a failure of an external collaborator.
// It matches both its cause and ErrCollaboratorUnavailable.
type CollaboratorError struct {
	Collaborator string // "embedder", "local-llm", "cloud-llm", "index"
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaboratorUnavailable, e.Err}
}

// Unavailable wraps err as a CollaboratorError, passing nil through.
func Unavailable(collaborator, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return &CollaboratorError{Collaborator: collaborator, Op: op, Err: err}
}

// IndexMismatchError reports the two embedding models involved.
type IndexMismatchError struct {
	IndexModel string
	QueryModel string
}

func (e *IndexMismatchError) Error() string {
	return fmt.Sprintf("index built with embedding model %q, query uses %q; rebuild the index", e.IndexModel, e.QueryModel)
}

func (e *IndexMismatchError) Unwrap() error { return ErrIndexMismatch }
