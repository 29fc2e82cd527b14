package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealerhq/dealer-be/internal/api/dto"
	"github.com/dealerhq/dealer-be/internal/engine/domain"
	"github.com/dealerhq/dealer-be/internal/engine/loaner"
	"github.com/dealerhq/dealer-be/internal/engine/schedule"
	"github.com/dealerhq/dealer-be/internal/engine/transition"
	"github.com/dealerhq/dealer-be/internal/metrics"
	"github.com/dealerhq/dealer-be/internal/store"
)

// JobStore is the read side of the backing store the handlers query.
// *store.Store satisfies it; tests use a fake.
type JobStore interface {
	ListActiveJobs(ctx context.Context, filter store.JobFilter) ([]domain.Job, error)
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListLoanerAssignments(ctx context.Context) ([]domain.LoanerAssignment, error)
}

// HealthChecker reports backing-store reachability for the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger     *slog.Logger
	Store      JobStore
	Executor   *transition.Executor
	Undo       *transition.Window
	Loaners    *loaner.Tracker
	Metrics    *metrics.Metrics
	Thresholds schedule.Thresholds
	Health     HealthChecker
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger     *slog.Logger
	store      JobStore
	executor   *transition.Executor
	undo       *transition.Window
	metrics    *metrics.Metrics
	thresholds schedule.Thresholds

	now func() time.Time
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:     deps.Logger,
		store:      deps.Store,
		executor:   deps.Executor,
		undo:       deps.Undo,
		metrics:    deps.Metrics,
		thresholds: deps.Thresholds,
		now:        time.Now,
	}
}

// LoanerHandler handles loaner-related HTTP requests
type LoanerHandler struct {
	logger     *slog.Logger
	store      JobStore
	tracker    *loaner.Tracker
	thresholds schedule.Thresholds

	now func() time.Time
}

// NewLoanerHandler creates a new LoanerHandler instance
func NewLoanerHandler(deps *Dependencies) *LoanerHandler {
	return &LoanerHandler{
		logger:     deps.Logger,
		store:      deps.Store,
		tracker:    deps.Loaners,
		thresholds: deps.Thresholds,
		now:        time.Now,
	}
}

// writeError maps the engine error taxonomy onto HTTP status codes.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	var code int
	var msg string

	switch {
	case errors.Is(err, domain.ErrNotFound):
		code, msg = http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrForbidden):
		code, msg = http.StatusForbidden, "not permitted"
	case errors.Is(err, domain.ErrConflict):
		code, msg = http.StatusConflict, "record changed underneath you, refresh and retry"
	case errors.Is(err, domain.ErrValidation):
		code, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrStoreUnavailable):
		code, msg = http.StatusServiceUnavailable, "store unavailable, try again"
	default:
		code, msg = http.StatusInternalServerError, "internal error"
	}

	if code >= http.StatusInternalServerError {
		logger.Error("Request failed", slog.String("error", err.Error()))
	}

	c.JSON(code, gin.H{"error": msg})
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toJobDTO(job domain.Job) dto.JobDTO {
	return dto.JobDTO{
		JobID:              job.ID,
		DealID:             job.DealID,
		Title:              job.Title,
		Status:             job.Status,
		Priority:           job.Priority,
		ScheduledStartTime: job.ScheduledStartTime,
		ScheduledEndTime:   job.ScheduledEndTime,
		PromisedDate:       job.PromisedDate,
		CompletedAt:        formatTime(job.CompletedAt),
		AssignedTo:         job.AssignedTo,
		NeedsLoaner:        job.NeedsLoaner,
		CreatedAt:          job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          job.UpdatedAt.Format(time.RFC3339),
	}
}

func toJobView(v schedule.View) dto.JobView {
	return dto.JobView{
		JobDTO: toJobDTO(v.Job),
		Display: dto.DisplayDTO{
			Status:         string(v.Display.Status),
			Label:          v.Display.Meta.Label,
			Icon:           v.Display.Meta.Icon,
			Badge:          v.Display.Meta.Badge,
			NeedsAttention: v.Display.NeedsAttention,
		},
		IsOverdue:   v.IsOverdue,
		DaysOverdue: v.DaysOverdue,
		Severity:    string(v.Severity),
		DueSoon:     v.DueSoon,
	}
}

func toLoanerView(v loaner.View) dto.LoanerView {
	return dto.LoanerView{
		LoanerDTO: dto.LoanerDTO{
			AssignmentID:  v.Assignment.ID,
			LoanerNumber:  v.Assignment.LoanerNumber,
			JobID:         v.Assignment.JobID,
			EtaReturnDate: v.Assignment.EtaReturnDate,
			ReturnedAt:    formatTime(v.Assignment.ReturnedAt),
			CreatedAt:     v.Assignment.CreatedAt.Format(time.RFC3339),
		},
		State:       string(v.State),
		IsOverdue:   v.State == loaner.StateOverdue,
		DaysOverdue: v.DaysOverdue,
	}
}
