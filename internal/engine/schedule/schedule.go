package schedule

import (
	"time"

	"github.com/dealerhq/dealer-be/internal/engine/domain"
	"github.com/dealerhq/dealer-be/internal/engine/status"
	"github.com/dealerhq/dealer-be/internal/engine/timeutil"
)

// Severity buckets overdue jobs for grouped alerting.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Thresholds holds the operational tuning knobs for overdue math. These are
// configuration, not invariants: ops can move them without touching engine
// logic.
type Thresholds struct {
	// CriticalDays and below bucket days-overdue into severities.
	CriticalDays int
	HighDays     int
	MediumDays   int
	// DueSoonDays is how close to a deadline "due soon" starts.
	DueSoonDays int
	// Grace is how long after a scheduled start a job may sit still marked
	// scheduled before the view flags it for attention.
	Grace time.Duration
}

// DefaultThresholds are the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalDays: 7,
		HighDays:     3,
		MediumDays:   1,
		DueSoonDays:  2,
		Grace:        30 * time.Minute,
	}
}

// DisplayStatus is what the UI should render and act on for a job. The
// stored status is never mutated here: a stale scheduled job is flagged, not
// silently transitioned, so every stored-state change stays auditable.
type DisplayStatus struct {
	Status status.Status
	Meta   status.Meta

	// NeedsAttention is set when a scheduled job's start time has passed by
	// more than the grace threshold without the job being moved along.
	NeedsAttention bool
}

// Resolve computes the display status for a job at the given instant.
// Unknown stored statuses degrade to pending rather than erroring.
func Resolve(job domain.Job, now time.Time, th Thresholds) DisplayStatus {
	st := status.Normalize(job.Status)

	ds := DisplayStatus{
		Status: st,
		Meta:   status.MetaFor(st),
	}

	// Terminal states are never overridden or flagged.
	if st.Terminal() {
		return ds
	}

	if st == status.Scheduled {
		if start := timeutil.ParseInstant(job.ScheduledStartTime); start != nil {
			if now.Sub(*start) > th.Grace {
				ds.NeedsAttention = true
			}
		}
	}

	return ds
}

// IsOverdue reports whether a raw promised-date value is strictly before
// today's business day. A job promised "today" is not overdue until
// tomorrow's business day begins: the customer has the promised day to the
// end of business. Malformed or missing input is never overdue.
func IsOverdue(promised string, now time.Time) bool {
	p := timeutil.ParseInstant(promised)
	if p == nil {
		return false
	}
	return timeutil.BusinessDay(*p) < timeutil.BusinessDay(now)
}

// DaysOverdue returns how many business-timezone days past the promised
// date now is. Zero for not-overdue, missing, or malformed input.
func DaysOverdue(promised string, now time.Time) int {
	p := timeutil.ParseInstant(promised)
	if p == nil {
		return 0
	}
	d := timeutil.DaysBetween(*p, now)
	if d < 0 {
		return 0
	}
	return d
}

// JobOverdue applies the status gate on top of the date math: only jobs in
// an overdue-eligible status can be flagged, terminal jobs never are.
func JobOverdue(job domain.Job, now time.Time) bool {
	if !status.Normalize(job.Status).OverdueEligible() {
		return false
	}
	return IsOverdue(job.PromisedDate, now)
}

// SeverityFor buckets a days-overdue count.
func SeverityFor(daysOverdue int, th Thresholds) Severity {
	switch {
	case daysOverdue <= 0:
		return SeverityNone
	case daysOverdue >= th.CriticalDays:
		return SeverityCritical
	case daysOverdue >= th.HighDays:
		return SeverityHigh
	case daysOverdue >= th.MediumDays:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// DueSoon reports whether the promised date falls within the due-soon window
// (today through th.DueSoonDays from now) without being overdue yet.
func DueSoon(promised string, now time.Time, th Thresholds) bool {
	p := timeutil.ParseInstant(promised)
	if p == nil {
		return false
	}
	d := timeutil.DaysBetween(now, *p)
	return d >= 0 && d <= th.DueSoonDays
}

// View is the annotated, render-ready form of a job. It is derived fresh on
// every read, never persisted or cached: "now" keeps moving.
type View struct {
	Job         domain.Job
	Display     DisplayStatus
	IsOverdue   bool
	DaysOverdue int
	Severity    Severity
	DueSoon     bool
}

// AnnotateOne computes the view for a single job.
func AnnotateOne(job domain.Job, now time.Time, th Thresholds) View {
	v := View{
		Job:     job,
		Display: Resolve(job, now, th),
	}

	if v.Display.Status.OverdueEligible() {
		v.IsOverdue = IsOverdue(job.PromisedDate, now)
		if v.IsOverdue {
			v.DaysOverdue = DaysOverdue(job.PromisedDate, now)
			v.Severity = SeverityFor(v.DaysOverdue, th)
		} else {
			v.Severity = SeverityNone
			v.DueSoon = DueSoon(job.PromisedDate, now, th)
		}
	} else {
		v.Severity = SeverityNone
	}

	return v
}

// Annotate computes views for a list of jobs. It never fails: a record with
// malformed timestamps comes back as "not overdue" rather than blanking out
// the whole list.
func Annotate(jobs []domain.Job, now time.Time, th Thresholds) []View {
	views := make([]View, len(jobs))
	for i, job := range jobs {
		views[i] = AnnotateOne(job, now, th)
	}
	return views
}
