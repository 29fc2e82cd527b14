package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dealerhq/dealer-be/internal/api/dto"
	"github.com/dealerhq/dealer-be/internal/engine/domain"
	"github.com/dealerhq/dealer-be/internal/engine/schedule"
	"github.com/dealerhq/dealer-be/internal/engine/status"
	"github.com/dealerhq/dealer-be/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListJobs handles GET /api/v1/jobs
// Returns annotated jobs: stored fields plus the derived display status,
// overdue flags, and severity, all computed against the current clock.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
		return
	}

	filter := store.JobFilter{
		Status:     req.Status,
		AssignedTo: req.AssignedTo,
		PageSize:   req.PageSize,
		Cursor:     cursor,
	}

	jobs, err := h.store.ListActiveJobs(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	views := schedule.Annotate(jobs, h.now(), h.thresholds)
	out := make([]dto.JobView, len(views))
	for i, v := range views {
		out[i] = toJobView(v)
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&store.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       out,
		NextCursor: nextCursor,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	view := schedule.AnnotateOne(*job, h.now(), h.thresholds)
	c.JSON(http.StatusOK, dto.TransitionResponse{Job: toJobView(view)})
}

// Transition handles POST /api/v1/jobs/:job_id/transition
func (h *JobHandler) Transition(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	target, ok := status.Parse(req.TargetStatus)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown target status"})
		return
	}

	// Completion goes through the dedicated endpoint so the undo token is
	// never skipped by accident.
	if target == status.Completed {
		h.Complete(c)
		return
	}

	job, err := h.executor.Transition(c.Request.Context(), jobID, target, nil)
	h.countTransition(string(target), err)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	view := schedule.AnnotateOne(*job, h.now(), h.thresholds)
	c.JSON(http.StatusOK, dto.TransitionResponse{Job: toJobView(view)})
}

// Complete handles POST /api/v1/jobs/:job_id/complete
// Marks the job completed and arms a short-lived undo token holding the
// exact status the job had before.
func (h *JobHandler) Complete(c *gin.Context) {
	jobID := c.Param("job_id")
	now := h.now()

	before, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	previous := status.Normalize(before.Status)

	job, err := h.executor.Complete(c.Request.Context(), jobID, now)
	h.countTransition(string(status.Completed), err)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	token := h.undo.Arm(jobID, previous, now)

	view := schedule.AnnotateOne(*job, now, h.thresholds)
	c.JSON(http.StatusOK, dto.CompleteResponse{
		Job:           toJobView(view),
		UndoToken:     token.ID,
		UndoExpiresAt: token.ExpiresAt,
	})
}

// Uncomplete handles POST /api/v1/jobs/:job_id/uncomplete
// Reverses a completion outside the undo window: the restored status is
// re-derived from the job's schedule, not remembered.
func (h *JobHandler) Uncomplete(c *gin.Context) {
	jobID := c.Param("job_id")
	now := h.now()

	job, err := h.executor.Uncomplete(c.Request.Context(), jobID, now)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.countTransition(job.Status, nil)

	view := schedule.AnnotateOne(*job, now, h.thresholds)
	c.JSON(http.StatusOK, dto.TransitionResponse{Job: toJobView(view)})
}

// Reschedule handles POST /api/v1/jobs/:job_id/reschedule
func (h *JobHandler) Reschedule(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	job, err := h.executor.Reschedule(c.Request.Context(), jobID, req.ScheduledStartTime, req.ScheduledEndTime)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	view := schedule.AnnotateOne(*job, h.now(), h.thresholds)
	c.JSON(http.StatusOK, dto.TransitionResponse{Job: toJobView(view)})
}

// BulkTransition handles POST /api/v1/jobs/bulk-transition
// Always answers 200 with a per-item summary: a forbidden row in the
// selection is an entry in "failed", not a failed batch.
func (h *JobHandler) BulkTransition(c *gin.Context) {
	var req dto.BulkTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	target, ok := status.Parse(req.TargetStatus)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown target status"})
		return
	}

	result := h.executor.BulkTransition(c.Request.Context(), req.JobIDs, target, h.now())

	if h.metrics != nil {
		h.metrics.BulkItemsTotal.WithLabelValues("success").Add(float64(len(result.Succeeded)))
		h.metrics.BulkItemsTotal.WithLabelValues("failed").Add(float64(len(result.Failed)))
	}

	failed := make(map[string]string, len(result.Failed))
	for id, err := range result.Failed {
		failed[id] = err.Error()
	}

	c.JSON(http.StatusOK, dto.BulkTransitionResponse{
		Succeeded: result.Succeeded,
		Failed:    failed,
	})
}

// Undo handles POST /api/v1/undo
// An expired or superseded token is a benign outcome, not an error: the
// client gets undone=false and moves on.
func (h *JobHandler) Undo(c *gin.Context) {
	var req dto.UndoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	now := h.now()
	job, err := h.undo.Fire(c.Request.Context(), req.Token, h.executor, now)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			c.JSON(http.StatusOK, dto.UndoResponse{
				Undone: false,
				Reason: "nothing to undo",
			})
			return
		}
		writeError(c, h.logger, err)
		return
	}

	if h.metrics != nil {
		h.metrics.UndoFiredTotal.Inc()
	}
	h.logger.Info("Completion undone", slog.String("job_id", job.ID))

	view := schedule.AnnotateOne(*job, now, h.thresholds)
	jv := toJobView(view)
	c.JSON(http.StatusOK, dto.UndoResponse{
		Undone: true,
		Job:    &jv,
	})
}

func (h *JobHandler) countTransition(target string, err error) {
	if h.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	h.metrics.TransitionsTotal.WithLabelValues(target, outcome).Inc()
}
