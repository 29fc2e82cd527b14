package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dealerhq/dealer-be/shared/rabbitmq"
)

// DefaultPollInterval is how often the watcher fires when the broker is
// unavailable and it has to fall back to polling.
const DefaultPollInterval = 30 * time.Second

// Watcher invokes onChange whenever the store may have changed. With a
// connected broker it reacts to published events; without one it ticks on a
// fixed interval. Either way the callback carries no payload: consumers are
// expected to re-fetch, so both paths look identical to them.
type Watcher struct {
	rabbit       *rabbitmq.Client
	logger       *slog.Logger
	pollInterval time.Duration
	onChange     func(ctx context.Context, ev *Event)
}

// NewWatcher creates a watcher. rabbit may be nil (polling only). The event
// pointer passed to onChange is nil for polling ticks.
func NewWatcher(rabbit *rabbitmq.Client, pollInterval time.Duration, onChange func(ctx context.Context, ev *Event), logger *slog.Logger) *Watcher {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Watcher{
		rabbit:       rabbit,
		logger:       logger,
		pollInterval: pollInterval,
		onChange:     onChange,
	}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, consumerTag string) {
	if w.rabbit != nil && w.rabbit.IsConnected() {
		deliveries, err := w.rabbit.Consume(consumerTag)
		if err == nil {
			w.logger.Info("Change watcher running on broker push",
				slog.String("consumer_tag", consumerTag),
			)
			w.runPush(ctx, deliveries)
			return
		}
		w.logger.Warn("Failed to start broker consumer, falling back to polling",
			slog.String("error", err.Error()),
		)
	}

	w.runPoll(ctx)
}

func (w *Watcher) runPush(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Change watcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("Broker delivery channel closed, falling back to polling")
				w.runPoll(ctx)
				return
			}

			var ev Event
			if err := json.Unmarshal(delivery.Body, &ev); err != nil {
				w.logger.Error("Failed to parse change event",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// Malformed events don't requeue.
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed event",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			w.onChange(ctx, &ev)

			if ackErr := delivery.Ack(false); ackErr != nil {
				w.logger.Error("Failed to ACK change event",
					slog.String("error", ackErr.Error()),
				)
			}
		}
	}
}

func (w *Watcher) runPoll(ctx context.Context) {
	w.logger.Info("Change watcher running on polling",
		slog.Duration("interval", w.pollInterval),
	)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Change watcher stopped - context canceled")
			return
		case <-ticker.C:
			w.onChange(ctx, nil)
		}
	}
}
