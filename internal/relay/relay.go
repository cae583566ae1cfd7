// Package relay moves accepted intake events from the outbox table onto the bus.
package relay

import (
	"context"
	"time"

	"github.com/richardliu001/board-service/internal/event"
	"github.com/richardliu001/board-service/internal/model"
	"github.com/richardliu001/board-service/internal/repo"
	"go.uber.org/zap"
)

// Publisher is satisfied by *bus.Publisher.
type Publisher interface {
	Publish(ctx context.Context, env event.Envelope) error
}

type Relay struct {
	store     repo.RepositoryInterface
	pub       Publisher
	batchSize int
	log       *zap.SugaredLogger
}

func New(store repo.RepositoryInterface, pub Publisher, batchSize int, log *zap.SugaredLogger) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{store: store, pub: pub, batchSize: batchSize, log: log}
}

// Run drains the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Infow("outbox relay started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Errorw("relay batch", "err", err)
			}
		}
	}
}

// RunOnce publishes one batch and returns how many events were sent. A publish
// failure ends the batch so later events never overtake an earlier one.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.store.PollOutbox(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, evt := range events {
		if err := r.pub.Publish(ctx, envelope(evt)); err != nil {
			return sent, err
		}
		// a failed mark only means the event is published again later
		if err := r.store.MarkOutboxProcessed(ctx, evt.ID); err != nil {
			r.log.Errorw("mark processed", "outbox_id", evt.ID, "err", err)
		} else {
			r.log.Debugw("event relayed", "outbox_id", evt.ID, "kind", evt.Kind)
		}
		sent++
	}
	return sent, nil
}

func envelope(evt model.OutboxEvent) event.Envelope {
	return event.Envelope{
		Kind:      event.Kind(evt.Kind),
		Key:       evt.PartitionKey,
		CreatedAt: evt.CreatedAt,
		Payload:   []byte(evt.Payload),
	}
}
