package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline and its collaborators.
var (
	// ErrNotFound is returned when a job or video source does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidFormat is returned when a video container or codec cannot be read.
	ErrInvalidFormat = errors.New("invalid video format")

	// ErrUnknownDetectionType is returned for detection types outside birds/livestock.
	ErrUnknownDetectionType = errors.New("unknown detection type")

	// ErrTerminalState is returned when a second terminal write is attempted
	// on a job record.
	ErrTerminalState = errors.New("job already in terminal state")
)

// ErrorKind classifies a pipeline failure so callers can decide whether a
// resubmission makes sense.
type ErrorKind string

const (
	// KindInput covers unreadable or missing video input. Resubmitting the
	// same file will fail again.
	KindInput ErrorKind = "input"
	// KindResource covers unavailable detectors, stalled inference, and
	// exhausted resources. A later resubmission may succeed.
	KindResource ErrorKind = "resource"
	// KindInternal covers violated pipeline invariants. These indicate a bug.
	KindInternal ErrorKind = "internal"
)

// PipelineError wraps a stage failure with its classification.
type PipelineError struct {
	Kind ErrorKind
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// InputError wraps err as an input failure.
func InputError(err error) error {
	return &PipelineError{Kind: KindInput, Err: err}
}

// ResourceError wraps err as a resource failure.
func ResourceError(err error) error {
	return &PipelineError{Kind: KindResource, Err: err}
}

// InternalError wraps err as an invariant violation.
func InternalError(err error) error {
	return &PipelineError{Kind: KindInternal, Err: err}
}

// KindOf returns the classification of err, defaulting to KindInternal for
// unclassified errors.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidFormat) || errors.Is(err, ErrUnknownDetectionType) {
		return KindInput
	}
	return KindInternal
}
