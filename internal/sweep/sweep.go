package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dealerhq/dealer-be/internal/engine/domain"
	"github.com/dealerhq/dealer-be/internal/engine/loaner"
	"github.com/dealerhq/dealer-be/internal/engine/schedule"
	"github.com/dealerhq/dealer-be/internal/metrics"
)

// Store is the read-only slice of the backing store the sweeper scans.
type Store interface {
	ListAllJobs(ctx context.Context) ([]domain.Job, error)
	ListLoanerAssignments(ctx context.Context) ([]domain.LoanerAssignment, error)
}

// Alerter receives per-job overdue findings.
type Alerter interface {
	OverdueAlert(ctx context.Context, jobID, severity string)
}

// Sweeper periodically re-annotates every job and loaner against the
// current clock, refreshes the metrics gauges, and publishes overdue
// alerts. It holds no state between runs: every scan is computed fresh,
// because stale overdue flags are worse than none.
type Sweeper struct {
	store      Store
	alerter    Alerter
	metrics    *metrics.Metrics
	thresholds schedule.Thresholds
	logger     *slog.Logger
	cron       *cron.Cron
	nowFn      func() time.Time
}

// Config wires a Sweeper.
type Config struct {
	Store      Store
	Alerter    Alerter
	Metrics    *metrics.Metrics
	Thresholds schedule.Thresholds
	Logger     *slog.Logger
}

// New creates a Sweeper.
func New(cfg Config) *Sweeper {
	return &Sweeper{
		store:      cfg.Store,
		alerter:    cfg.Alerter,
		metrics:    cfg.Metrics,
		thresholds: cfg.Thresholds,
		logger:     cfg.Logger,
		nowFn:      time.Now,
	}
}

// Start schedules recurring scans with the given cron spec (e.g.
// "@every 5m") and runs one scan immediately so gauges aren't empty until
// the first tick.
func (s *Sweeper) Start(ctx context.Context, spec string) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(spec, func() {
		if err := s.Scan(ctx); err != nil {
			s.logger.Error("Sweep scan failed",
				slog.String("error", err.Error()),
			)
		}
	})
	if err != nil {
		return err
	}

	if err := s.Scan(ctx); err != nil {
		s.logger.Error("Initial sweep scan failed",
			slog.String("error", err.Error()),
		)
	}

	s.cron.Start()
	s.logger.Info("Sweeper started",
		slog.String("schedule", spec),
	)
	return nil
}

// Stop halts the schedule and waits for a running scan to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.logger.Info("Sweeper stopped")
}

// Scan runs one full pass. Exported so the API service's health tooling and
// tests can trigger it directly.
func (s *Sweeper) Scan(ctx context.Context) error {
	now := s.nowFn()

	jobs, err := s.store.ListAllJobs(ctx)
	if err != nil {
		return err
	}

	assignments, err := s.store.ListLoanerAssignments(ctx)
	if err != nil {
		return err
	}

	views := schedule.Annotate(jobs, now, s.thresholds)

	overdueBySeverity := map[schedule.Severity]int{}
	dueSoon := 0
	for _, v := range views {
		if v.IsOverdue {
			overdueBySeverity[v.Severity]++
			if s.alerter != nil {
				s.alerter.OverdueAlert(ctx, v.Job.ID, string(v.Severity))
			}
		} else if v.DueSoon {
			dueSoon++
		}
	}

	loanersOverdue := 0
	for _, a := range assignments {
		if loaner.IsOverdue(a, now) {
			loanersOverdue++
		}
	}

	needingLoaner := len(loaner.JobsNeedingLoaner(jobs, assignments))

	if s.metrics != nil {
		for _, sev := range []schedule.Severity{
			schedule.SeverityLow,
			schedule.SeverityMedium,
			schedule.SeverityHigh,
			schedule.SeverityCritical,
		} {
			s.metrics.OverdueJobs.WithLabelValues(string(sev)).Set(float64(overdueBySeverity[sev]))
		}
		s.metrics.DueSoonJobs.Set(float64(dueSoon))
		s.metrics.LoanersOverdue.Set(float64(loanersOverdue))
		s.metrics.JobsNeedingLoaner.Set(float64(needingLoaner))
	}

	totalOverdue := 0
	for _, n := range overdueBySeverity {
		totalOverdue += n
	}

	s.logger.Info("Sweep scan complete",
		slog.Int("jobs", len(jobs)),
		slog.Int("overdue", totalOverdue),
		slog.Int("due_soon", dueSoon),
		slog.Int("loaners_overdue", loanersOverdue),
		slog.Int("needing_loaner", needingLoaner),
	)

	return nil
}
