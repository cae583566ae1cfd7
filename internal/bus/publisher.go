package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/richardliu001/board-service/internal/event"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	HeaderEventType = "event-type"
	HeaderCreatedAt = "created-at"
)

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Topics maps each event kind to its kafka topic.
type Topics struct {
	UserRegistration string
	MessagePosting   string
	BoardCreation    string
}

func (t Topics) For(kind event.Kind) (string, error) {
	switch kind {
	case event.KindUserRegistration:
		return t.UserRegistration, nil
	case event.KindMessagePosting:
		return t.MessagePosting, nil
	case event.KindBoardCreation:
		return t.BoardCreation, nil
	}
	return "", fmt.Errorf("no topic for event kind %q", kind)
}

// Publisher sends envelopes to kafka. The writer must not have a fixed Topic;
// each message names its own.
type Publisher struct {
	writer Writer
	topics Topics
	log    *zap.SugaredLogger
}

func NewPublisher(w Writer, topics Topics, log *zap.SugaredLogger) *Publisher {
	return &Publisher{writer: w, topics: topics, log: log}
}

// Publish writes one envelope. Delivery to consumers is at-least-once.
func (p *Publisher) Publish(ctx context.Context, env event.Envelope) error {
	msg, err := p.toMessage(env)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", env.Kind, msg.Topic, err)
	}
	p.log.Debugw("event published", "kind", env.Kind, "topic", msg.Topic, "key", env.Key)
	return nil
}

func (p *Publisher) toMessage(env event.Envelope) (kafka.Message, error) {
	topic, err := p.topics.For(env.Kind)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(env.Key),
		Value: env.Payload,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(env.Kind)},
			{Key: HeaderCreatedAt, Value: []byte(event.FormatTime(env.CreatedAt))},
		},
	}, nil
}

// EnvelopeFromMessage rebuilds the envelope; fallback is used when the
// message carries no event-type header.
func EnvelopeFromMessage(msg kafka.Message, fallback event.Kind) event.Envelope {
	env := event.Envelope{Kind: fallback, Key: string(msg.Key), CreatedAt: msg.Time, Payload: msg.Value}
	for _, h := range msg.Headers {
		switch h.Key {
		case HeaderEventType:
			env.Kind = event.Kind(h.Value)
		case HeaderCreatedAt:
			if t, err := event.ParseTime(string(h.Value)); err == nil {
				env.CreatedAt = t
			}
		}
	}
	return env
}
