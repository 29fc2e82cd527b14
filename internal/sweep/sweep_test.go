package sweep

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerhq/dealer-be/internal/engine/domain"
	"github.com/dealerhq/dealer-be/internal/engine/schedule"
	"github.com/dealerhq/dealer-be/internal/metrics"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, mustLoc())

func mustLoc() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}

func day(offset int) string {
	return testNow.AddDate(0, 0, offset).Format("2006-01-02")
}

type fakeSweepStore struct {
	jobs        []domain.Job
	assignments []domain.LoanerAssignment
	err         error
}

func (s *fakeSweepStore) ListAllJobs(context.Context) ([]domain.Job, error) {
	return s.jobs, s.err
}

func (s *fakeSweepStore) ListLoanerAssignments(context.Context) ([]domain.LoanerAssignment, error) {
	return s.assignments, s.err
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts map[string]string
}

func (a *fakeAlerter) OverdueAlert(_ context.Context, jobID, severity string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.alerts == nil {
		a.alerts = map[string]string{}
	}
	a.alerts[jobID] = severity
}

func TestScan(t *testing.T) {
	store := &fakeSweepStore{
		jobs: []domain.Job{
			{ID: "j1", Status: "scheduled", PromisedDate: day(-1)},               // overdue, medium
			{ID: "j2", Status: "in_progress", PromisedDate: day(-8)},             // overdue, critical
			{ID: "j3", Status: "completed", PromisedDate: day(-8)},               // terminal, never overdue
			{ID: "j4", Status: "pending", PromisedDate: day(1)},                  // due soon
			{ID: "j5", Status: "in_progress", NeedsLoaner: true},                 // needs a loaner
			{ID: "j6", Status: "in_progress", NeedsLoaner: true},                 // covered below
		},
		assignments: []domain.LoanerAssignment{
			{ID: "l1", JobID: "j6", EtaReturnDate: day(-2)}, // open and overdue
		},
	}
	alerter := &fakeAlerter{}
	m := metrics.New()

	s := New(Config{
		Store:      store,
		Alerter:    alerter,
		Metrics:    m,
		Thresholds: schedule.DefaultThresholds(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	s.nowFn = func() time.Time { return testNow }

	require.NoError(t, s.Scan(context.Background()))

	assert.Equal(t, map[string]string{
		"j1": "medium",
		"j2": "critical",
	}, alerter.alerts)
}

func TestScan_StoreErrorSurfaces(t *testing.T) {
	store := &fakeSweepStore{err: domain.ErrStoreUnavailable}

	s := New(Config{
		Store:      store,
		Thresholds: schedule.DefaultThresholds(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	assert.ErrorIs(t, s.Scan(context.Background()), domain.ErrStoreUnavailable)
}
