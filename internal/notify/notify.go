package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dealerhq/dealer-be/internal/engine/domain"
	"github.com/dealerhq/dealer-be/shared/rabbitmq"
)

// EventKind enumerates store change notifications.
type EventKind string

const (
	KindJobUpdated     EventKind = "job_updated"
	KindLoanerReturned EventKind = "loaner_returned"
	KindOverdueAlert   EventKind = "overdue_alert"
)

// Event is the wire form of a change notification. Events are advisory:
// consumers re-fetch from the store rather than trusting the payload, so a
// lost event degrades to polling, never to wrong data.
type Event struct {
	Kind         EventKind `json:"kind"`
	JobID        string    `json:"job_id,omitempty"`
	AssignmentID string    `json:"assignment_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	Severity     string    `json:"severity,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher pushes change events to RabbitMQ. All publishes are best-effort:
// a broker outage is logged, not surfaced, because notifications are an
// optimization on top of polling.
type Publisher struct {
	rabbit *rabbitmq.Client
	logger *slog.Logger
}

// NewPublisher creates a publisher. rabbit may be nil, in which case every
// publish is a silent no-op (polling-only deployments).
func NewPublisher(rabbit *rabbitmq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{rabbit: rabbit, logger: logger}
}

func (p *Publisher) publish(ctx context.Context, ev Event) {
	if p.rabbit == nil || !p.rabbit.IsConnected() {
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("Failed to marshal change event",
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := p.rabbit.PublishWithRetry(ctx, body, "application/json"); err != nil {
		p.logger.Warn("Failed to publish change event",
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

// JobUpdated implements transition.Notifier.
func (p *Publisher) JobUpdated(ctx context.Context, job *domain.Job) {
	p.publish(ctx, Event{
		Kind:       KindJobUpdated,
		JobID:      job.ID,
		Status:     job.Status,
		OccurredAt: time.Now().UTC(),
	})
}

// LoanerReturned implements loaner.Notifier.
func (p *Publisher) LoanerReturned(ctx context.Context, assignmentID string) {
	p.publish(ctx, Event{
		Kind:         KindLoanerReturned,
		AssignmentID: assignmentID,
		OccurredAt:   time.Now().UTC(),
	})
}

// OverdueAlert publishes a sweep finding.
func (p *Publisher) OverdueAlert(ctx context.Context, jobID, severity string) {
	p.publish(ctx, Event{
		Kind:       KindOverdueAlert,
		JobID:      jobID,
		Severity:   severity,
		OccurredAt: time.Now().UTC(),
	})
}
