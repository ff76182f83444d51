package service

import (
	"context"
	"time"

	"nft-marketplace/internal/core/ports"

	"github.com/rs/zerolog"
)

const (
	defaultRelayInterval  = 500 * time.Millisecond
	defaultRelayBatchSize = 100
)

// EventRelay drains the event outbox into every configured publisher.
// An event is marked delivered only after all publishers accepted it, and
// a failure stops the batch so per-listing order is never broken.
// Delivery is at-least-once.
type EventRelay struct {
	outbox     ports.EventOutbox
	publishers []ports.EventPublisher
	interval   time.Duration
	batchSize  int
	metrics    *Metrics
	log        zerolog.Logger
	now        func() time.Time
	wake       chan struct{}
}

// NewEventRelay creates a relay. Zero interval or batchSize use defaults.
func NewEventRelay(
	outbox ports.EventOutbox,
	publishers []ports.EventPublisher,
	interval time.Duration,
	batchSize int,
	metrics *Metrics,
	log zerolog.Logger,
) *EventRelay {
	if interval <= 0 {
		interval = defaultRelayInterval
	}
	if batchSize <= 0 {
		batchSize = defaultRelayBatchSize
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &EventRelay{
		outbox:     outbox,
		publishers: publishers,
		interval:   interval,
		batchSize:  batchSize,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
		wake:       make(chan struct{}, 1),
	}
}

// Notify asks the relay to poll now instead of waiting for the next tick.
func (r *EventRelay) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. It always returns nil.
func (r *EventRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.interval).Int("publishers", len(r.publishers)).Msg("event relay started")
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn().Err(err).Msg("event relay: flush failed, will retry")
		}

		select {
		case <-ctx.Done():
			r.log.Info().Msg("event relay stopped")
			return nil
		case <-ticker.C:
		case <-r.wake:
		}
	}
}

// Flush publishes one batch of pending events and returns how many were
// delivered.
func (r *EventRelay) Flush(ctx context.Context) (int, error) {
	pending, err := r.outbox.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	r.metrics.OutboxBacklog.Set(float64(len(pending)))

	delivered := 0
	for i := range pending {
		payload := pending[i].Payload()
		for _, pub := range r.publishers {
			if err := pub.Publish(ctx, payload); err != nil {
				r.metrics.EventPublishFailures.With("publisher", pub.Name()).Add(1)
				r.log.Warn().Err(err).
					Str("publisher", pub.Name()).
					Uint64("seq", payload.Seq).
					Msg("event relay: publish failed")
				return delivered, err
			}
			r.metrics.EventsDelivered.With("publisher", pub.Name()).Add(1)
		}

		if err := r.outbox.MarkDelivered(ctx, []uint64{payload.Seq}, r.now().UTC()); err != nil {
			return delivered, err
		}
		delivered++
	}

	r.metrics.OutboxBacklog.Set(float64(len(pending) - delivered))
	return delivered, nil
}
