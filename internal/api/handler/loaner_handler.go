package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dealerhq/dealer-be/internal/api/dto"
	"github.com/dealerhq/dealer-be/internal/engine/loaner"
	"github.com/dealerhq/dealer-be/internal/engine/schedule"
	"github.com/dealerhq/dealer-be/internal/store"
)

// ListLoaners handles GET /api/v1/loaners
func (h *LoanerHandler) ListLoaners(c *gin.Context) {
	assignments, err := h.store.ListLoanerAssignments(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	views := loaner.Annotate(assignments, h.now(), h.thresholds.DueSoonDays)
	out := make([]dto.LoanerView, len(views))
	for i, v := range views {
		out[i] = toLoanerView(v)
	}

	c.JSON(http.StatusOK, dto.ListLoanersResponse{Loaners: out})
}

// ReturnLoaner handles POST /api/v1/loaners/:assignment_id/return
// Idempotent: returning an already-returned loaner is a success that
// reports already_returned and leaves the original timestamp alone.
func (h *LoanerHandler) ReturnLoaner(c *gin.Context) {
	assignmentID := c.Param("assignment_id")
	now := h.now()

	a, err := h.tracker.MarkReturned(c.Request.Context(), assignmentID, now)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	alreadyReturned := a.ReturnedAt != nil && !a.ReturnedAt.Equal(now)

	c.JSON(http.StatusOK, dto.ReturnLoanerResponse{
		Loaner: toLoanerView(loaner.View{
			Assignment:  *a,
			State:       loaner.StateOf(*a, now, h.thresholds.DueSoonDays),
			DaysOverdue: loaner.DaysOverdue(*a, now),
		}),
		AlreadyReturned: alreadyReturned,
	})
}

// JobsNeedingLoaner handles GET /api/v1/loaners/needed
// Derives the jobs flagged for a loaner that no open assignment covers.
func (h *LoanerHandler) JobsNeedingLoaner(c *gin.Context) {
	jobs, err := h.store.ListActiveJobs(c.Request.Context(), store.JobFilter{PageSize: maxPageSize})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	assignments, err := h.store.ListLoanerAssignments(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	needing := loaner.JobsNeedingLoaner(jobs, assignments)
	views := schedule.Annotate(needing, h.now(), h.thresholds)

	out := make([]dto.JobView, len(views))
	for i, v := range views {
		out[i] = toJobView(v)
	}

	c.JSON(http.StatusOK, dto.JobsNeedingLoanerResponse{Jobs: out})
}
