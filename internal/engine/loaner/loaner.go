package loaner

import (
	"context"
	"log/slog"
	"time"

	"github.com/dealerhq/dealer-be/internal/engine/domain"
	"github.com/dealerhq/dealer-be/internal/engine/status"
	"github.com/dealerhq/dealer-be/internal/engine/timeutil"
)

// State classifies a loaner assignment for display.
type State string

const (
	StateActive   State = "active"
	StateDueSoon  State = "due-soon"
	StateOverdue  State = "overdue"
	StateReturned State = "returned"
)

// DefaultDueSoonDays is the window before the ETA in which an assignment
// shows as due-soon.
const DefaultDueSoonDays = 2

// IsOverdue reports whether an assignment is past its return ETA. Returned
// assignments are never overdue, whatever the dates say, and a missing or
// malformed ETA is never overdue. Same strict day-index comparison as job
// promised dates: the ETA day itself still counts as on time.
func IsOverdue(a domain.LoanerAssignment, now time.Time) bool {
	if a.ReturnedAt != nil {
		return false
	}
	eta := timeutil.ParseInstant(a.EtaReturnDate)
	if eta == nil {
		return false
	}
	return timeutil.BusinessDay(*eta) < timeutil.BusinessDay(now)
}

// DaysOverdue returns how many business days past the ETA the loaner is.
// Zero when not overdue.
func DaysOverdue(a domain.LoanerAssignment, now time.Time) int {
	if !IsOverdue(a, now) {
		return 0
	}
	eta := timeutil.ParseInstant(a.EtaReturnDate)
	return timeutil.DaysBetween(*eta, now)
}

// StateOf classifies an assignment at the given instant. dueSoonDays <= 0
// falls back to DefaultDueSoonDays.
func StateOf(a domain.LoanerAssignment, now time.Time, dueSoonDays int) State {
	if a.ReturnedAt != nil {
		return StateReturned
	}
	if IsOverdue(a, now) {
		return StateOverdue
	}

	if dueSoonDays <= 0 {
		dueSoonDays = DefaultDueSoonDays
	}
	if eta := timeutil.ParseInstant(a.EtaReturnDate); eta != nil {
		if d := timeutil.DaysBetween(now, *eta); d >= 0 && d <= dueSoonDays {
			return StateDueSoon
		}
	}
	return StateActive
}

// View is the annotated form of an assignment.
type View struct {
	Assignment  domain.LoanerAssignment
	State       State
	DaysOverdue int
}

// Annotate classifies a list of assignments. Never fails outward.
func Annotate(assignments []domain.LoanerAssignment, now time.Time, dueSoonDays int) []View {
	views := make([]View, len(assignments))
	for i, a := range assignments {
		views[i] = View{
			Assignment:  a,
			State:       StateOf(a, now, dueSoonDays),
			DaysOverdue: DaysOverdue(a, now),
		}
	}
	return views
}

// Store is the slice of the backing store the tracker mutates.
type Store interface {
	GetLoanerAssignment(ctx context.Context, assignmentID string) (*domain.LoanerAssignment, error)

	// MarkLoanerReturned sets returned_at where it is still null. changed is
	// false when the assignment was already returned.
	MarkLoanerReturned(ctx context.Context, assignmentID string, now time.Time) (changed bool, err error)
}

// Notifier receives a change event after a successful return.
type Notifier interface {
	LoanerReturned(ctx context.Context, assignmentID string)
}

// Tracker owns the one mutation in the loaner lifecycle this engine is
// responsible for: marking an assignment returned.
type Tracker struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
}

// NewTracker creates a tracker. notifier may be nil.
func NewTracker(store Store, notifier Notifier, logger *slog.Logger) *Tracker {
	return &Tracker{store: store, notifier: notifier, logger: logger}
}

// MarkReturned sets returned_at = now. Return is terminal and the operation
// is idempotent: a second call is a no-op success so a double click or a
// network retry never fails loudly.
func (t *Tracker) MarkReturned(ctx context.Context, assignmentID string, now time.Time) (*domain.LoanerAssignment, error) {
	changed, err := t.store.MarkLoanerReturned(ctx, assignmentID, now)
	if err != nil {
		t.logger.Error("Failed to mark loaner returned",
			slog.String("assignment_id", assignmentID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if changed {
		t.logger.Info("Loaner marked returned",
			slog.String("assignment_id", assignmentID),
		)
		if t.notifier != nil {
			t.notifier.LoanerReturned(ctx, assignmentID)
		}
	} else {
		t.logger.Debug("Loaner already returned, no-op",
			slog.String("assignment_id", assignmentID),
		)
	}

	return t.store.GetLoanerAssignment(ctx, assignmentID)
}

// JobsNeedingLoaner derives the jobs that are flagged as needing a loaner
// and are not currently covered by an open assignment. Only non-terminal
// jobs count: a delivered deal doesn't need a courtesy car anymore.
func JobsNeedingLoaner(jobs []domain.Job, assignments []domain.LoanerAssignment) []domain.Job {
	open := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		if a.Out() {
			open[a.JobID] = true
		}
	}

	var needing []domain.Job
	for _, job := range jobs {
		if !job.NeedsLoaner {
			continue
		}
		if status.Normalize(job.Status).Terminal() {
			continue
		}
		if open[job.ID] {
			continue
		}
		needing = append(needing, job)
	}
	return needing
}
