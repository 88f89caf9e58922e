package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the document record does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidState means the requested variant has no ciphertext yet.
	ErrInvalidState = errors.New("document variant is not encrypted")
)

// PipelineError wraps a primary-path failure of the encryption sequence.
// Best-effort steps (ledger, audit) never produce one.
type PipelineError struct {
	Step       string
	DocumentID string
	Err        error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("encryption pipeline %s for document %s: %v", e.Step, e.DocumentID, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// IntegrityViolationError means the downloaded ciphertext no longer matches
// the hash anchored at encryption time. Access is denied and the event is
// alert-worthy, not a transient fault.
type IntegrityViolationError struct {
	DocumentID   string
	StoredHash   string
	ComputedHash string
}

func (e *IntegrityViolationError) Error() string {
	return fmt.Sprintf("integrity violation on document %s: stored %s, computed %s", e.DocumentID, e.StoredHash, e.ComputedHash)
}
