package domain

import "errors"

var (
	// ErrNotFound is returned when a job or assignment id is unknown to the store.
	ErrNotFound = errors.New("record not found")

	// ErrForbidden is returned when the caller lacks permission to mutate a
	// record. The store reports a denied update the same way as "zero rows
	// matched", so the store layer re-checks existence to tell the two apart.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when a concurrent modification is detected.
	// Callers should re-fetch and retry the action deliberately, not blindly.
	ErrConflict = errors.New("conflict: record was modified concurrently")

	// ErrStoreUnavailable is returned for transient store failures. Safe to
	// retry with backoff; the engine itself never retries.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrValidation is returned when a requested mutation is internally
	// inconsistent, e.g. a scheduled end before its start.
	ErrValidation = errors.New("validation failed")

	// ErrTokenExpired is returned when firing an undo token past its window.
	// It means "nothing to undo", not a failure.
	ErrTokenExpired = errors.New("undo token expired")
)

// TransitionError wraps a per-job failure so bulk results can carry the id
// alongside the cause.
type TransitionError struct {
	JobID string
	Err   error
}

func (e *TransitionError) Error() string {
	return "transition failed for job " + e.JobID + ": " + e.Err.Error()
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// NewTransitionError wraps err with the job id it failed for.
func NewTransitionError(jobID string, err error) error {
	return &TransitionError{JobID: jobID, Err: err}
}
