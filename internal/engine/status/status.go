package status

// Status is the stored lifecycle state of a job. The set is closed: the
// console does not support user-defined workflows, and every switch over
// Status in this repo should handle exactly these values.
//
// Centralizing the values here keeps string literals like "pending" or
// "completed" out of the rest of the codebase.
type Status string

const (
	Pending      Status = "pending"
	Scheduled    Status = "scheduled"
	InProgress   Status = "in_progress"
	QualityCheck Status = "quality_check"
	Completed    Status = "completed"
	Cancelled    Status = "cancelled"
	Delivered    Status = "delivered"
)

// All lists every valid status, in lifecycle order.
var All = []Status{Pending, Scheduled, InProgress, QualityCheck, Completed, Cancelled, Delivered}

// Parse converts a raw stored string to a Status. ok is false for values
// outside the closed set.
func Parse(s string) (Status, bool) {
	switch Status(s) {
	case Pending, Scheduled, InProgress, QualityCheck, Completed, Cancelled, Delivered:
		return Status(s), true
	}
	return "", false
}

// Normalize maps a raw stored string to a Status, degrading unknown or
// missing values to Pending. A record with a status this build doesn't
// recognize still has to render as "needs work", never as an error.
func Normalize(s string) Status {
	if st, ok := Parse(s); ok {
		return st
	}
	return Pending
}

// Terminal reports whether s is a terminal state. Terminal states are never
// overridden by the effective-status resolver and are never overdue.
func (s Status) Terminal() bool {
	switch s {
	case Completed, Cancelled, Delivered:
		return true
	}
	return false
}

// OverdueEligible reports whether a job in this status may be flagged
// overdue at all.
func (s Status) OverdueEligible() bool {
	switch s {
	case Pending, Scheduled, InProgress, QualityCheck:
		return true
	}
	return false
}

// Meta is the display metadata for a status: pure lookup data consumed by
// the UI layer, no behavior.
type Meta struct {
	Label string
	Icon  string
	Badge string
}

var metaTable = map[Status]Meta{
	Pending:      {Label: "Pending", Icon: "clock", Badge: "badge-neutral"},
	Scheduled:    {Label: "Scheduled", Icon: "calendar", Badge: "badge-info"},
	InProgress:   {Label: "In Progress", Icon: "wrench", Badge: "badge-primary"},
	QualityCheck: {Label: "Quality Check", Icon: "clipboard-check", Badge: "badge-warning"},
	Completed:    {Label: "Completed", Icon: "check-circle", Badge: "badge-success"},
	Cancelled:    {Label: "Cancelled", Icon: "x-circle", Badge: "badge-muted"},
	Delivered:    {Label: "Delivered", Icon: "truck", Badge: "badge-success"},
}

// MetaFor returns display metadata for s, falling back to the Pending entry
// for anything outside the closed set.
func MetaFor(s Status) Meta {
	if m, ok := metaTable[s]; ok {
		return m
	}
	return metaTable[Pending]
}

// Priority is the job priority code.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// PriorityMeta carries the sort weight and display color for a priority.
// Higher weight sorts first.
type PriorityMeta struct {
	Weight int
	Color  string
}

var priorityTable = map[Priority]PriorityMeta{
	PriorityLow:    {Weight: 1, Color: "gray"},
	PriorityMedium: {Weight: 2, Color: "blue"},
	PriorityHigh:   {Weight: 3, Color: "orange"},
	PriorityUrgent: {Weight: 4, Color: "red"},
}

// PriorityFor returns the weight/color for a raw priority string, degrading
// unknown values to medium.
func PriorityFor(p string) PriorityMeta {
	if m, ok := priorityTable[Priority(p)]; ok {
		return m
	}
	return priorityTable[PriorityMedium]
}
