package transition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dealerhq/dealer-be/internal/engine/domain"
	"github.com/dealerhq/dealer-be/internal/engine/status"
)

func TestBulkTransition(t *testing.T) {
	t.Run("empty input yields empty result", func(t *testing.T) {
		ex := NewExecutor(newFakeStore(), nil, testLogger())

		res := ex.BulkTransition(context.Background(), nil, status.InProgress, testNow)
		assert.Empty(t, res.Succeeded)
		assert.Empty(t, res.Failed)
	})

	t.Run("forbidden item does not abort or roll back the rest", func(t *testing.T) {
		store := newFakeStore(
			baseJob("a", status.Scheduled),
			baseJob("b", status.Scheduled),
			baseJob("c", status.Scheduled),
		)
		store.forbidden["b"] = true
		ex := NewExecutor(store, nil, testLogger())

		res := ex.BulkTransition(context.Background(), []string{"a", "b", "c"}, status.InProgress, testNow)

		assert.ElementsMatch(t, []string{"a", "c"}, res.Succeeded)
		assert.Len(t, res.Failed, 1)
		assert.ErrorIs(t, res.Failed["b"], domain.ErrForbidden)

		// a and c stayed transitioned.
		jobA, _ := store.GetJob(context.Background(), "a")
		jobC, _ := store.GetJob(context.Background(), "c")
		assert.Equal(t, string(status.InProgress), jobA.Status)
		assert.Equal(t, string(status.InProgress), jobC.Status)
	})

	t.Run("duplicate ids collapse to one operation", func(t *testing.T) {
		store := newFakeStore(baseJob("a", status.Scheduled))
		ex := NewExecutor(store, nil, testLogger())

		res := ex.BulkTransition(context.Background(), []string{"a", "a", "a"}, status.InProgress, testNow)

		assert.Equal(t, []string{"a"}, res.Succeeded)
		assert.Equal(t, 1, store.updates)
	})

	t.Run("unknown ids fail individually", func(t *testing.T) {
		store := newFakeStore(baseJob("a", status.Scheduled))
		ex := NewExecutor(store, nil, testLogger())

		res := ex.BulkTransition(context.Background(), []string{"a", "ghost"}, status.InProgress, testNow)

		assert.Equal(t, []string{"a"}, res.Succeeded)
		assert.ErrorIs(t, res.Failed["ghost"], domain.ErrNotFound)
	})

	t.Run("bulk complete stamps completed_at", func(t *testing.T) {
		store := newFakeStore(baseJob("a", status.QualityCheck), baseJob("b", status.QualityCheck))
		ex := NewExecutor(store, nil, testLogger())

		res := ex.BulkTransition(context.Background(), []string{"a", "b"}, status.Completed, testNow)
		assert.Len(t, res.Succeeded, 2)

		for _, id := range []string{"a", "b"} {
			job, _ := store.GetJob(context.Background(), id)
			assert.Equal(t, string(status.Completed), job.Status)
			assert.NotNil(t, job.CompletedAt)
		}
	})

	t.Run("large batch with bounded fan-out", func(t *testing.T) {
		jobs := make([]domain.Job, 0, 50)
		ids := make([]string, 0, 50)
		for i := 0; i < 50; i++ {
			id := string(rune('A'+i%26)) + string(rune('a'+i/26))
			jobs = append(jobs, baseJob(id, status.Pending))
			ids = append(ids, id)
		}
		store := newFakeStore(jobs...)
		ex := NewExecutor(store, nil, testLogger())
		ex.SetBulkConcurrency(4)

		res := ex.BulkTransition(context.Background(), ids, status.Scheduled, testNow)
		assert.Len(t, res.Succeeded, 50)
		assert.Empty(t, res.Failed)
	})
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "b", "a", "", "b"}))
	assert.Empty(t, dedupe(nil))
}
