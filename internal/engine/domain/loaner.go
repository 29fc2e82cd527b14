package domain

import "time"

// LoanerAssignment tracks a loaner vehicle handed out against a job.
// ReturnedAt is terminal: once set it is never cleared by this engine.
// EtaReturnDate is raw text written by deal-editing flows, parse it with
// timeutil.ParseInstant.
type LoanerAssignment struct {
	ID            string     `db:"assignment_id"`
	LoanerNumber  string     `db:"loaner_number"`
	JobID         string     `db:"job_id"`
	EtaReturnDate string     `db:"eta_return_date"`
	ReturnedAt    *time.Time `db:"returned_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

// Out reports whether the loaner is currently out with a customer.
func (a LoanerAssignment) Out() bool {
	return a.ReturnedAt == nil
}
