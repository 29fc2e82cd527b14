package dto

import "time"

type ListJobsRequest struct {
	Status     string `form:"status"`
	AssignedTo string `form:"assigned_to"`
	PageSize   int    `form:"page_size"`
	Cursor     string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobView `json:"jobs"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// DisplayDTO is the presentation block the console renders verbatim: the
// effective status plus its label/icon/badge and the needs-attention flag.
type DisplayDTO struct {
	Status         string `json:"status"`
	Label          string `json:"label"`
	Icon           string `json:"icon"`
	Badge          string `json:"badge"`
	NeedsAttention bool   `json:"needs_attention"`
}

type JobDTO struct {
	JobID              string `json:"job_id"`
	DealID             string `json:"deal_id"`
	Title              string `json:"title"`
	Status             string `json:"status"`
	Priority           string `json:"priority"`
	ScheduledStartTime string `json:"scheduled_start_time,omitempty"`
	ScheduledEndTime   string `json:"scheduled_end_time,omitempty"`
	PromisedDate       string `json:"promised_date,omitempty"`
	CompletedAt        string `json:"completed_at,omitempty"`
	AssignedTo         string `json:"assigned_to,omitempty"`
	NeedsLoaner        bool   `json:"needs_loaner"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

// JobView is a job plus everything the overdue engine derived from it.
type JobView struct {
	JobDTO
	Display     DisplayDTO `json:"display"`
	IsOverdue   bool       `json:"is_overdue"`
	DaysOverdue int        `json:"days_overdue"`
	Severity    string     `json:"severity"`
	DueSoon     bool       `json:"due_soon"`
}

type TransitionRequest struct {
	TargetStatus string `json:"target_status" binding:"required"`
}

type TransitionResponse struct {
	Job JobView `json:"job"`
}

type CompleteResponse struct {
	Job           JobView   `json:"job"`
	UndoToken     string    `json:"undo_token"`
	UndoExpiresAt time.Time `json:"undo_expires_at"`
}

type BulkTransitionRequest struct {
	JobIDs       []string `json:"job_ids" binding:"required"`
	TargetStatus string   `json:"target_status" binding:"required"`
}

// BulkTransitionResponse reports per-item outcomes: one bad job never
// fails the batch.
type BulkTransitionResponse struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed"`
}

type UndoRequest struct {
	Token string `json:"token" binding:"required"`
}

type UndoResponse struct {
	Undone bool     `json:"undone"`
	Reason string   `json:"reason,omitempty"`
	Job    *JobView `json:"job,omitempty"`
}

type RescheduleRequest struct {
	ScheduledStartTime string `json:"scheduled_start_time"`
	ScheduledEndTime   string `json:"scheduled_end_time"`
}
