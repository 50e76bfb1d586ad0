package outbox

import (
	"context"
	"log"
	"time"

	"banhngot/backend/internal/domain"
	"banhngot/backend/internal/store"
)

// Publisher delivers one outbox event to the outside world. Delivery is
// at-least-once: a failed publish is retried on the next sweep.
type Publisher interface {
	Publish(ctx context.Context, event domain.OutboxEvent) error
}

// LogPublisher is the fallback when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event domain.OutboxEvent) error {
	log.Printf("[outbox] event seq=%d kind=%s key=%s payload=%s", event.Seq, event.Kind, event.Key, event.Payload)
	return nil
}

// Dispatcher polls unpublished outbox rows in sequence order and pushes them
// through the publisher.
type Dispatcher struct {
	repo      store.Repository
	publisher Publisher
	interval  time.Duration
	batchSize int
}

func NewDispatcher(repo store.Repository, publisher Publisher, interval time.Duration) *Dispatcher {
	if publisher == nil {
		publisher = LogPublisher{}
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		batchSize: 64,
	}
}

// Run sweeps until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Sweep(ctx)
		}
	}
}

// Sweep publishes one batch. A failure stops the batch so ordering per sweep
// is preserved, and the remaining rows are retried next time.
func (d *Dispatcher) Sweep(ctx context.Context) {
	events, err := d.repo.ListUnpublishedEvents(ctx, d.batchSize)
	if err != nil {
		log.Printf("[outbox] WARN: list events: %v", err)
		return
	}

	for _, event := range events {
		if err := d.publisher.Publish(ctx, event); err != nil {
			log.Printf("[outbox] WARN: publish seq=%d kind=%s: %v", event.Seq, event.Kind, err)
			return
		}
		if err := d.repo.MarkEventPublished(ctx, event.Seq, time.Now().UTC()); err != nil {
			log.Printf("[outbox] WARN: mark published seq=%d: %v", event.Seq, err)
			return
		}
	}
}
