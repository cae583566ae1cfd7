package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/richardliu001/board-service/internal/event"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler applies one delivered event. A retriable error makes the bus
// redeliver it; nil or a permanent error commits it.
type Handler func(ctx context.Context, env event.Envelope) error

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topic   string
	// Kind is assumed for messages without an event-type header.
	Kind event.Kind
	// EventTimeout bounds one handler invocation.
	EventTimeout time.Duration
	// Backoff is the pause before the group is rejoined after a retriable failure.
	Backoff time.Duration
}

// Consumer reads one topic in a consumer group. Offsets are committed only
// after the handler settles an event, so a retriable failure closes the reader
// and the rejoined group resumes from the last commit, redelivering the event.
type Consumer struct {
	cfg       ConsumerConfig
	log       *zap.SugaredLogger
	newReader func(ConsumerConfig) MessageReader
}

func NewConsumer(cfg ConsumerConfig, log *zap.SugaredLogger) *Consumer {
	return &Consumer{cfg: cfg, log: log, newReader: newKafkaReader}
}

func newKafkaReader(cfg ConsumerConfig) MessageReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	r := c.newReader(c.cfg)
	defer func() { _ = r.Close() }()

	c.log.Infow("consumer started", "topic", c.cfg.Topic, "group", c.cfg.GroupID)
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Errorw("fetch failed", "topic", c.cfg.Topic, "err", err)
			if r, err = c.reopen(ctx, r); err != nil {
				return nil
			}
			continue
		}

		env := EnvelopeFromMessage(msg, c.cfg.Kind)
		err = c.handle(ctx, h, env)
		switch {
		case event.IsRetriable(err):
			c.log.Errorw("event failed, awaiting redelivery",
				"kind", env.Kind, "partition", msg.Partition, "offset", msg.Offset, "err", err)
			if r, err = c.reopen(ctx, r); err != nil {
				return nil
			}
			continue
		case err != nil:
			c.log.Warnw("event dropped", "kind", env.Kind, "offset", msg.Offset, "err", err)
		}

		if err := r.CommitMessages(ctx, msg); err != nil {
			// the event stays uncommitted and will be seen again after a rebalance
			c.log.Errorw("commit failed", "topic", c.cfg.Topic, "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h Handler, env event.Envelope) (err error) {
	if c.cfg.EventTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.EventTimeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h(ctx, env)
}

func (c *Consumer) reopen(ctx context.Context, r MessageReader) (MessageReader, error) {
	_ = r.Close()
	t := time.NewTimer(c.cfg.Backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return r, ctx.Err()
	case <-t.C:
	}
	return c.newReader(c.cfg), nil
}
