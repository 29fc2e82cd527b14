package domain

import "time"

// Job is a service appointment ("deal job") as stored in the backing store.
//
// The scheduling timestamps are kept as raw text: they are written by
// external booking flows that this engine does not control, so they may be
// empty ("time to be determined") or malformed. Use timeutil.ParseInstant
// before doing any math on them. CompletedAt is owned by this engine and is
// always a well-formed timestamp when set.
type Job struct {
	ID                 string     `db:"job_id"`
	DealID             string     `db:"deal_id"`
	Title              string     `db:"title"`
	Status             string     `db:"status"`
	Priority           string     `db:"priority"`
	ScheduledStartTime string     `db:"scheduled_start_time"`
	ScheduledEndTime   string     `db:"scheduled_end_time"`
	PromisedDate       string     `db:"promised_date"`
	CompletedAt        *time.Time `db:"completed_at"`
	AssignedTo         string     `db:"assigned_to"`
	NeedsLoaner        bool       `db:"needs_loaner"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}
