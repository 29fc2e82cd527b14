package transition

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dealerhq/dealer-be/internal/engine/status"
)

// DefaultBulkConcurrency bounds fan-out so a large selection doesn't slam
// the backing store with one write per row at once.
const DefaultBulkConcurrency = 8

// BulkResult reports a bulk transition per item. It is deliberately not
// all-or-nothing: the UI use case is "move everything I selected that I'm
// allowed to move, tell me what I couldn't".
type BulkResult struct {
	Succeeded []string
	Failed    map[string]error
}

// BulkTransition fans target out over jobIDs, each item independently.
// Duplicates collapse to one operation. An empty input yields an empty
// result, not an error. Per-item writes run concurrently up to the
// executor's concurrency bound; a failure on one item never rolls back
// another. Cancelling ctx stops dispatching new items, it does not undo
// writes already committed.
func (e *Executor) BulkTransition(ctx context.Context, jobIDs []string, target status.Status, now time.Time) BulkResult {
	result := BulkResult{
		Succeeded: []string{},
		Failed:    map[string]error{},
	}

	unique := dedupe(jobIDs)
	if len(unique) == 0 {
		return result
	}

	concurrency := e.bulkConcurrency
	if concurrency <= 0 {
		concurrency = DefaultBulkConcurrency
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(int64(concurrency))
	)

	var completedAt *time.Time
	if target == status.Completed {
		completedAt = &now
	}

	for _, jobID := range unique {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Caller stopped waiting. Items not yet dispatched fail with
			// the cancellation cause; dispatched ones finish on their own.
			mu.Lock()
			result.Failed[jobID] = err
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(jobID string) {
			defer wg.Done()
			defer sem.Release(1)

			_, err := e.Transition(ctx, jobID, target, completedAt)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[jobID] = err
			} else {
				result.Succeeded = append(result.Succeeded, jobID)
			}
		}(jobID)
	}

	wg.Wait()

	e.logger.Info("Bulk transition finished",
		slog.String("target_status", string(target)),
		slog.Int("requested", len(unique)),
		slog.Int("succeeded", len(result.Succeeded)),
		slog.Int("failed", len(result.Failed)),
	)

	return result
}

// SetBulkConcurrency overrides the fan-out bound. Zero or negative falls
// back to DefaultBulkConcurrency.
func (e *Executor) SetBulkConcurrency(n int) {
	e.bulkConcurrency = n
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
