package transition

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dealerhq/dealer-be/internal/engine/domain"
	"github.com/dealerhq/dealer-be/internal/engine/status"
)

// UndoTTL is how long a completion can be reversed exactly. Fixed rather
// than per-call so the affordance behaves the same everywhere in the UI.
const UndoTTL = 10 * time.Second

// Token identifies one armed undo slot.
type Token struct {
	ID        string
	JobID     string
	ExpiresAt time.Time
}

// Window is the single-slot undo state for one client session. Arming a new
// token silently discards the previous one: last action wins, there is no
// undo stack. It lives in memory only and is never persisted.
type Window struct {
	mu      sync.Mutex
	ttl     time.Duration
	current *armedEntry
}

type armedEntry struct {
	token          Token
	previousStatus status.Status
}

// NewWindow creates an undo window with the given ttl; zero or negative
// falls back to UndoTTL.
func NewWindow(ttl time.Duration) *Window {
	if ttl <= 0 {
		ttl = UndoTTL
	}
	return &Window{ttl: ttl}
}

// Arm records the status a job had before a completion and returns the
// token that can reverse it. Any previously armed token is superseded.
func (w *Window) Arm(jobID string, previousStatus status.Status, now time.Time) Token {
	w.mu.Lock()
	defer w.mu.Unlock()

	token := Token{
		ID:        uuid.New().String(),
		JobID:     jobID,
		ExpiresAt: now.Add(w.ttl),
	}
	w.current = &armedEntry{token: token, previousStatus: previousStatus}
	return token
}

// Fire reverses the completion the token was armed for, restoring the exact
// previous stored status and clearing completed_at. An expired, superseded,
// or unknown token returns domain.ErrTokenExpired: "nothing to undo", not a
// failure.
func (w *Window) Fire(ctx context.Context, tokenID string, ex *Executor, now time.Time) (*domain.Job, error) {
	w.mu.Lock()
	entry := w.current
	if entry == nil || entry.token.ID != tokenID || now.After(entry.token.ExpiresAt) {
		w.mu.Unlock()
		return nil, domain.ErrTokenExpired
	}
	// Single-shot: consume before releasing the lock so a double click
	// cannot fire twice.
	w.current = nil
	w.mu.Unlock()

	ex.logger.Info("Undo fired",
		slog.String("job_id", entry.token.JobID),
		slog.String("restore_status", string(entry.previousStatus)),
	)

	return ex.Transition(ctx, entry.token.JobID, entry.previousStatus, nil)
}

// Expire drops the armed token if the ttl has elapsed. No-op otherwise and
// safe to call on an empty window.
func (w *Window) Expire(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current != nil && now.After(w.current.token.ExpiresAt) {
		w.current = nil
	}
}
