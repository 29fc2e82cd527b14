package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerhq/dealer-be/internal/api/dto"
	"github.com/dealerhq/dealer-be/internal/api/handler"
	"github.com/dealerhq/dealer-be/internal/engine/domain"
	"github.com/dealerhq/dealer-be/internal/engine/loaner"
	"github.com/dealerhq/dealer-be/internal/engine/schedule"
	"github.com/dealerhq/dealer-be/internal/engine/status"
	"github.com/dealerhq/dealer-be/internal/engine/transition"
	"github.com/dealerhq/dealer-be/internal/metrics"
	"github.com/dealerhq/dealer-be/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore satisfies handler.JobStore, transition.Store, and loaner.Store
// so one fixture backs the whole route surface.
type fakeStore struct {
	mu          sync.Mutex
	jobs        map[string]*domain.Job
	assignments map[string]*domain.LoanerAssignment
	forbidden   map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:        map[string]*domain.Job{},
		assignments: map[string]*domain.LoanerAssignment{},
		forbidden:   map[string]bool{},
	}
}

func (s *fakeStore) ListActiveJobs(_ context.Context, _ store.JobFilter) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out, nil
}

func (s *fakeStore) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *j
	return &copied, nil
}

func (s *fakeStore) UpdateJobStatus(_ context.Context, jobID string, st status.Status, completedAt *time.Time, expectedUpdatedAt time.Time) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if s.forbidden[jobID] {
		return nil, domain.ErrForbidden
	}
	if !j.UpdatedAt.Equal(expectedUpdatedAt) {
		return nil, domain.ErrConflict
	}
	j.Status = string(st)
	j.CompletedAt = completedAt
	j.UpdatedAt = j.UpdatedAt.Add(time.Second)
	copied := *j
	return &copied, nil
}

func (s *fakeStore) UpdateJobSchedule(_ context.Context, jobID, start, end string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	j.ScheduledStartTime = start
	j.ScheduledEndTime = end
	j.UpdatedAt = j.UpdatedAt.Add(time.Second)
	copied := *j
	return &copied, nil
}

func (s *fakeStore) ListLoanerAssignments(_ context.Context) ([]domain.LoanerAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LoanerAssignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		out = append(out, *a)
	}
	return out, nil
}

func (s *fakeStore) GetLoanerAssignment(_ context.Context, assignmentID string) (*domain.LoanerAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[assignmentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *fakeStore) MarkLoanerReturned(_ context.Context, assignmentID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[assignmentID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if a.ReturnedAt != nil {
		return false, nil
	}
	a.ReturnedAt = &now
	return true, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, fs *fakeStore) *gin.Engine {
	t.Helper()
	logger := testLogger()
	executor := transition.NewExecutor(fs, nil, logger)
	deps := &handler.Dependencies{
		Logger:     logger,
		Store:      fs,
		Executor:   executor,
		Undo:       transition.NewWindow(0),
		Loaners:    loaner.NewTracker(fs, nil, logger),
		Metrics:    metrics.New(),
		Thresholds: schedule.DefaultThresholds(),
	}
	return SetupRouter(deps)
}

func seedJob(fs *fakeStore, id, st, promised string) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	fs.jobs[id] = &domain.Job{
		ID:           id,
		DealID:       "deal-" + id,
		Title:        "Job " + id,
		Status:       st,
		Priority:     "medium",
		PromisedDate: promised,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	r := newTestRouter(t, newFakeStore())

	rec := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListJobs_Annotated(t *testing.T) {
	fs := newFakeStore()
	promised := time.Now().AddDate(0, 0, -5).Format("2006-01-02")
	seedJob(fs, "j1", "in_progress", promised)
	r := newTestRouter(t, fs)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 1)

	job := resp.Jobs[0]
	assert.True(t, job.IsOverdue)
	assert.Equal(t, "high", job.Severity)
	assert.Equal(t, "in_progress", job.Display.Status)
	assert.Equal(t, "In Progress", job.Display.Label)
}

func TestTransition(t *testing.T) {
	fs := newFakeStore()
	seedJob(fs, "j1", "scheduled", "")
	r := newTestRouter(t, fs)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/jobs/j1/transition", dto.TransitionRequest{TargetStatus: "in_progress"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.TransitionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "in_progress", resp.Job.Status)
}

func TestTransition_Errors(t *testing.T) {
	fs := newFakeStore()
	seedJob(fs, "j1", "scheduled", "")
	seedJob(fs, "locked", "scheduled", "")
	fs.forbidden["locked"] = true
	r := newTestRouter(t, fs)

	tests := []struct {
		name     string
		path     string
		body     any
		wantCode int
	}{
		{
			name:     "unknown job",
			path:     "/api/v1/jobs/ghost/transition",
			body:     dto.TransitionRequest{TargetStatus: "in_progress"},
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unknown target status",
			path:     "/api/v1/jobs/j1/transition",
			body:     dto.TransitionRequest{TargetStatus: "vaporized"},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "forbidden row",
			path:     "/api/v1/jobs/locked/transition",
			body:     dto.TransitionRequest{TargetStatus: "in_progress"},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "missing body",
			path:     "/api/v1/jobs/j1/transition",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, r, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestCompleteAndUndo(t *testing.T) {
	fs := newFakeStore()
	seedJob(fs, "j1", "quality_check", "")
	r := newTestRouter(t, fs)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/jobs/j1/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var completed dto.CompleteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, "completed", completed.Job.Status)
	assert.NotEmpty(t, completed.Job.CompletedAt)
	require.NotEmpty(t, completed.UndoToken)

	// Undo restores the exact pre-completion status, not a derived one.
	rec = doJSON(t, r, http.MethodPost, "/api/v1/undo", dto.UndoRequest{Token: completed.UndoToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var undone dto.UndoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &undone))
	assert.True(t, undone.Undone)
	require.NotNil(t, undone.Job)
	assert.Equal(t, "quality_check", undone.Job.Status)
	assert.Empty(t, undone.Job.CompletedAt)

	// A second fire of the same token finds nothing to undo.
	rec = doJSON(t, r, http.MethodPost, "/api/v1/undo", dto.UndoRequest{Token: completed.UndoToken})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &undone))
	assert.False(t, undone.Undone)
	assert.Equal(t, "nothing to undo", undone.Reason)
}

func TestTransitionToCompletedArmsUndo(t *testing.T) {
	fs := newFakeStore()
	seedJob(fs, "j1", "in_progress", "")
	r := newTestRouter(t, fs)

	// The generic transition endpoint routes completion through the
	// complete flow so the caller still gets a token.
	rec := doJSON(t, r, http.MethodPost, "/api/v1/jobs/j1/transition", dto.TransitionRequest{TargetStatus: "completed"})
	require.Equal(t, http.StatusOK, rec.Code)

	var completed dto.CompleteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, "completed", completed.Job.Status)
	assert.NotEmpty(t, completed.UndoToken)
}

func TestUncomplete(t *testing.T) {
	fs := newFakeStore()
	seedJob(fs, "j1", "completed", "")
	now := time.Now()
	fs.jobs["j1"].CompletedAt = &now
	fs.jobs["j1"].ScheduledStartTime = now.Add(-2 * time.Hour).Format(time.RFC3339)
	r := newTestRouter(t, fs)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/jobs/j1/uncomplete", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.TransitionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "in_progress", resp.Job.Status)
	assert.Empty(t, resp.Job.CompletedAt)
}

func TestReschedule_Validation(t *testing.T) {
	fs := newFakeStore()
	seedJob(fs, "j1", "scheduled", "")
	r := newTestRouter(t, fs)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/jobs/j1/reschedule", dto.RescheduleRequest{
		ScheduledStartTime: "2025-06-12T10:00:00Z",
		ScheduledEndTime:   "2025-06-12T09:00:00Z",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/api/v1/jobs/j1/reschedule", dto.RescheduleRequest{
		ScheduledStartTime: "2025-06-12T10:00:00Z",
		ScheduledEndTime:   "2025-06-12T12:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.TransitionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2025-06-12T10:00:00Z", resp.Job.ScheduledStartTime)
}

func TestBulkTransition_PartialFailure(t *testing.T) {
	fs := newFakeStore()
	seedJob(fs, "a", "scheduled", "")
	seedJob(fs, "b", "scheduled", "")
	fs.forbidden["b"] = true
	r := newTestRouter(t, fs)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/jobs/bulk-transition", dto.BulkTransitionRequest{
		JobIDs:       []string{"a", "b", "ghost"},
		TargetStatus: "in_progress",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.BulkTransitionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"a"}, resp.Succeeded)
	assert.Len(t, resp.Failed, 2)
	assert.Contains(t, resp.Failed, "b")
	assert.Contains(t, resp.Failed, "ghost")
}

func TestReturnLoaner_Idempotent(t *testing.T) {
	fs := newFakeStore()
	fs.assignments["l1"] = &domain.LoanerAssignment{
		ID:           "l1",
		LoanerNumber: "L-42",
		JobID:        "j1",
		CreatedAt:    time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	r := newTestRouter(t, fs)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/loaners/l1/return", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var first dto.ReturnLoanerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.False(t, first.AlreadyReturned)
	assert.Equal(t, "returned", first.Loaner.State)
	require.NotEmpty(t, first.Loaner.ReturnedAt)

	rec = doJSON(t, r, http.MethodPost, "/api/v1/loaners/l1/return", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var second dto.ReturnLoanerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.True(t, second.AlreadyReturned)
	assert.Equal(t, first.Loaner.ReturnedAt, second.Loaner.ReturnedAt)
}

func TestJobsNeedingLoaner(t *testing.T) {
	fs := newFakeStore()
	seedJob(fs, "j1", "in_progress", "")
	fs.jobs["j1"].NeedsLoaner = true
	seedJob(fs, "j2", "in_progress", "")
	fs.jobs["j2"].NeedsLoaner = true
	fs.assignments["l1"] = &domain.LoanerAssignment{
		ID:        "l1",
		JobID:     "j2",
		CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	r := newTestRouter(t, fs)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/loaners/needed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.JobsNeedingLoanerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "j1", resp.Jobs[0].JobID)
}

func TestListJobs_BadCursor(t *testing.T) {
	r := newTestRouter(t, newFakeStore())

	rec := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/jobs?cursor=%s", "!!bogus!!"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
