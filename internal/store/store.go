package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dealerhq/dealer-be/internal/engine/domain"
	"github.com/dealerhq/dealer-be/internal/engine/status"
	"github.com/dealerhq/dealer-be/shared/postgresql"
)

const jobColumns = `
	job_id, deal_id, title, status, priority,
	COALESCE(scheduled_start_time, '') AS scheduled_start_time,
	COALESCE(scheduled_end_time, '') AS scheduled_end_time,
	COALESCE(promised_date, '') AS promised_date,
	completed_at,
	COALESCE(assigned_to, '') AS assigned_to,
	needs_loaner, created_at, updated_at
`

const loanerColumns = `
	assignment_id, loaner_number, job_id,
	COALESCE(eta_return_date, '') AS eta_return_date,
	returned_at, created_at
`

// Store is the sqlx-backed data access layer. It is the only code that
// talks SQL; everything above it sees domain records and the engine error
// taxonomy.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store on top of a PostgreSQL client.
func NewStore(pg *postgresql.Client, logger *slog.Logger) *Store {
	return &Store{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// JobFilter narrows ListActiveJobs.
type JobFilter struct {
	Status     string
	AssignedTo string
	PageSize   int
	Cursor     *JobCursor
}

// JobCursor is the keyset pagination cursor for the job list, ordered by
// (created_at, job_id) descending.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// buildListJobsQuery assembles the filtered list query. Split out so the
// argument numbering can be tested without a database.
func buildListJobsQuery(filter JobFilter) (string, []interface{}) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.AssignedTo != "" {
		query += fmt.Sprintf(" AND assigned_to = $%d", argIdx)
		args = append(args, filter.AssignedTo)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"

	// Fetch one extra row so the caller can tell whether more pages exist.
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	return query, args
}

// ListActiveJobs returns non-deleted jobs matching the filter. Jobs are
// never physically deleted by this engine, so "active" here just means
// "every row": cancellation is a status, not a removal.
func (s *Store) ListActiveJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query, args := buildListJobsQuery(filter)

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", classifyError(err))
	}

	return jobs, nil
}

// ListAllJobs returns every job without pagination. Used by the sweep
// service, which needs the full picture to compute gauges.
func (s *Store) ListAllJobs(ctx context.Context) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC`

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list all jobs: %w", classifyError(err))
	}

	return jobs, nil
}

// GetJob fetches one job by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", classifyError(err))
	}

	return &job, nil
}

// UpdateJobStatus writes status and completed_at as one logical write,
// conditional on updated_at still matching what the caller read. Zero rows
// means one of three things, so it re-checks:
//   - the row is gone entirely            -> NotFound
//   - the row moved under us              -> Conflict
//   - the row exists and didn't move      -> the update was silently denied
//     by row-level security               -> Forbidden
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, st status.Status, completedAt *time.Time, expectedUpdatedAt time.Time) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    completed_at = $2,
		    updated_at = NOW()
		WHERE job_id = $3
		  AND updated_at = $4
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, string(st), completedAt, jobID, expectedUpdatedAt)
	if err == nil {
		return &job, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update job status: %w", classifyError(err))
	}

	return nil, s.explainZeroRows(ctx, jobID, expectedUpdatedAt)
}

// UpdateJobSchedule rewrites the scheduled window. Empty strings store as
// NULL ("time to be determined").
func (s *Store) UpdateJobSchedule(ctx context.Context, jobID, start, end string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET scheduled_start_time = NULLIF($1, ''),
		    scheduled_end_time = NULLIF($2, ''),
		    updated_at = NOW()
		WHERE job_id = $3
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, start, end, jobID)
	if err == nil {
		return &job, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update job schedule: %w", classifyError(err))
	}

	// No version condition here, so zero rows is either gone or denied.
	if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: schedule update matched no rows for an existing job", domain.ErrForbidden)
}

// explainZeroRows disambiguates a conditional update that matched nothing.
func (s *Store) explainZeroRows(ctx context.Context, jobID string, expectedUpdatedAt time.Time) error {
	current, err := s.GetJob(ctx, jobID)
	if err != nil {
		// Covers NotFound and transient failures alike.
		return err
	}

	if !current.UpdatedAt.Equal(expectedUpdatedAt) {
		return domain.ErrConflict
	}

	s.logger.Warn("Update matched no rows for an existing, unchanged job",
		slog.String("job_id", jobID),
	)
	return fmt.Errorf("%w: update matched no rows for an existing job", domain.ErrForbidden)
}

// ListLoanerAssignments returns all loaner assignments, open first.
func (s *Store) ListLoanerAssignments(ctx context.Context) ([]domain.LoanerAssignment, error) {
	query := `
		SELECT ` + loanerColumns + `
		FROM loaner_assignments
		ORDER BY (returned_at IS NULL) DESC, created_at DESC
	`

	var assignments []domain.LoanerAssignment
	if err := s.db.SelectContext(ctx, &assignments, query); err != nil {
		return nil, fmt.Errorf("failed to list loaner assignments: %w", classifyError(err))
	}

	return assignments, nil
}

// GetLoanerAssignment fetches one assignment by id.
func (s *Store) GetLoanerAssignment(ctx context.Context, assignmentID string) (*domain.LoanerAssignment, error) {
	query := `SELECT ` + loanerColumns + ` FROM loaner_assignments WHERE assignment_id = $1`

	var a domain.LoanerAssignment
	if err := s.db.GetContext(ctx, &a, query, assignmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loaner assignment: %w", classifyError(err))
	}

	return &a, nil
}

// MarkLoanerReturned sets returned_at where it is still null. The guard in
// the WHERE clause is what makes the operation idempotent: a second call
// matches no rows and reports changed=false rather than overwriting the
// original return timestamp.
func (s *Store) MarkLoanerReturned(ctx context.Context, assignmentID string, now time.Time) (bool, error) {
	query := `
		UPDATE loaner_assignments
		SET returned_at = $1
		WHERE assignment_id = $2
		  AND returned_at IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, now, assignmentID)
	if err != nil {
		return false, fmt.Errorf("failed to mark loaner returned: %w", classifyError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		return true, nil
	}

	// Zero rows: already returned, or the id doesn't exist at all.
	if _, err := s.GetLoanerAssignment(ctx, assignmentID); err != nil {
		return false, err
	}
	return false, nil
}
