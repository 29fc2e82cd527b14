package transition

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealerhq/dealer-be/internal/engine/domain"
	"github.com/dealerhq/dealer-be/internal/engine/status"
	"github.com/dealerhq/dealer-be/internal/engine/timeutil"
)

// Store is the slice of the backing store the executor needs. The concrete
// implementation lives in internal/store; tests use a fake.
type Store interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// UpdateJobStatus writes the status and completed_at as one logical
	// write, conditional on the record still carrying expectedUpdatedAt.
	// It returns domain.ErrConflict when the record moved underneath us,
	// domain.ErrNotFound when the id is unknown, and domain.ErrForbidden
	// when the caller may not touch the row.
	UpdateJobStatus(ctx context.Context, jobID string, st status.Status, completedAt *time.Time, expectedUpdatedAt time.Time) (*domain.Job, error)

	// UpdateJobSchedule rewrites the scheduled window.
	UpdateJobSchedule(ctx context.Context, jobID, start, end string) (*domain.Job, error)
}

// Notifier receives a change event after a successful write. Optional; used
// to fan store mutations out to other sessions.
type Notifier interface {
	JobUpdated(ctx context.Context, job *domain.Job)
}

// Executor validates and applies status changes. It holds no state of its
// own and never retries: retry policy belongs to the caller.
type Executor struct {
	store           Store
	notifier        Notifier
	logger          *slog.Logger
	bulkConcurrency int
}

// NewExecutor creates an executor. notifier may be nil.
func NewExecutor(store Store, notifier Notifier, logger *slog.Logger) *Executor {
	return &Executor{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Transition moves a job to target, patching completed_at in the same
// logical write. The stored invariant is: completed_at is set if and only if
// the status is completed. Transition enforces it rather than trusting
// callers to.
func (e *Executor) Transition(ctx context.Context, jobID string, target status.Status, completedAt *time.Time) (*domain.Job, error) {
	if _, ok := status.Parse(string(target)); !ok {
		return nil, fmt.Errorf("%w: unknown target status %q", domain.ErrValidation, target)
	}

	if target == status.Completed && completedAt == nil {
		return nil, fmt.Errorf("%w: completing a job requires a completion timestamp", domain.ErrValidation)
	}
	if target != status.Completed && completedAt != nil {
		return nil, fmt.Errorf("%w: completed_at may only be set together with status completed", domain.ErrValidation)
	}

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	updated, err := e.store.UpdateJobStatus(ctx, jobID, target, completedAt, job.UpdatedAt)
	if err != nil {
		e.logger.Error("Job transition failed",
			slog.String("job_id", jobID),
			slog.String("target_status", string(target)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	e.logger.Info("Job transitioned",
		slog.String("job_id", jobID),
		slog.String("from_status", job.Status),
		slog.String("to_status", string(target)),
	)

	if e.notifier != nil {
		e.notifier.JobUpdated(ctx, updated)
	}

	return updated, nil
}

// Complete marks a job completed as of now.
func (e *Executor) Complete(ctx context.Context, jobID string, now time.Time) (*domain.Job, error) {
	return e.Transition(ctx, jobID, status.Completed, &now)
}

// Uncomplete clears a completion. The pre-completion status is not retained
// anywhere, so it is re-derived from the job's scheduling timestamps via
// UncompletedStatus. That makes this a best-effort reversal: callers who
// need the exact previous status back should go through the undo window
// instead.
func (e *Executor) Uncomplete(ctx context.Context, jobID string, now time.Time) (*domain.Job, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	target := UncompletedStatus(*job, now)
	return e.Transition(ctx, jobID, target, nil)
}

// UncompletedStatus derives the status a job would logically be in had it
// never been completed, from its scheduling timestamps relative to now:
// a started window means in_progress, a future window means scheduled, and
// no usable window means pending. Pure and deterministic for a given
// snapshot and instant.
func UncompletedStatus(job domain.Job, now time.Time) status.Status {
	start := timeutil.ParseInstant(job.ScheduledStartTime)
	if start == nil {
		return status.Pending
	}
	if start.After(now) {
		return status.Scheduled
	}
	return status.InProgress
}

// Reschedule rewrites a job's scheduled window. Both values go through
// ParseInstant; a present-but-unparseable value or an end before the start
// is a validation error. Empty strings clear the window ("time TBD").
func (e *Executor) Reschedule(ctx context.Context, jobID, start, end string) (*domain.Job, error) {
	var startT, endT *time.Time

	if start != "" {
		if startT = timeutil.ParseInstant(start); startT == nil {
			return nil, fmt.Errorf("%w: unparseable scheduled start %q", domain.ErrValidation, start)
		}
	}
	if end != "" {
		if endT = timeutil.ParseInstant(end); endT == nil {
			return nil, fmt.Errorf("%w: unparseable scheduled end %q", domain.ErrValidation, end)
		}
	}
	if startT != nil && endT != nil && endT.Before(*startT) {
		return nil, fmt.Errorf("%w: scheduled end before start", domain.ErrValidation)
	}
	if endT != nil && startT == nil {
		return nil, fmt.Errorf("%w: scheduled end requires a start", domain.ErrValidation)
	}

	updated, err := e.store.UpdateJobSchedule(ctx, jobID, start, end)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Job rescheduled",
		slog.String("job_id", jobID),
		slog.String("scheduled_start", start),
		slog.String("scheduled_end", end),
	)

	if e.notifier != nil {
		e.notifier.JobUpdated(ctx, updated)
	}

	return updated, nil
}
