package dto

type LoanerDTO struct {
	AssignmentID  string `json:"assignment_id"`
	LoanerNumber  string `json:"loaner_number"`
	JobID         string `json:"job_id"`
	EtaReturnDate string `json:"eta_return_date,omitempty"`
	ReturnedAt    string `json:"returned_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type LoanerView struct {
	LoanerDTO
	State       string `json:"state"`
	IsOverdue   bool   `json:"is_overdue"`
	DaysOverdue int    `json:"days_overdue"`
}

type ListLoanersResponse struct {
	Loaners []LoanerView `json:"loaners"`
}

type ReturnLoanerResponse struct {
	Loaner          LoanerView `json:"loaner"`
	AlreadyReturned bool       `json:"already_returned"`
}

type JobsNeedingLoanerResponse struct {
	Jobs []JobView `json:"jobs"`
}
