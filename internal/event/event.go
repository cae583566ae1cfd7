// Package event defines the payloads exchanged over the bus, the envelope that
// carries them, and the retriable/permanent failure taxonomy consumers act on.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Kind selects the bus destination and the processor for an event.
type Kind string

const (
	KindUserRegistration Kind = "user.registration"
	KindBoardCreation    Kind = "board.creation"
	KindMessagePosting   Kind = "message.posting"
)

// TimeLayout is ISO-8601 with millisecond precision in UTC.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t the way every event and notification timestamp is written.
func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

// ParseTime accepts TimeLayout and any RFC 3339 timestamp.
func ParseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

type UserRegistration struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Timestamp string `json:"timestamp" validate:"required"`
}

type BoardCreation struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	CreatedBy   string `json:"createdBy" validate:"required"`
	Timestamp   string `json:"timestamp" validate:"required"`
}

type MessagePost struct {
	BoardID   string `json:"boardId" validate:"required"`
	Content   string `json:"content" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	UserName  string `json:"userName" validate:"required"`
	Timestamp string `json:"timestamp" validate:"required"`
}

// Envelope is one event as it travels on the bus. Key decides the partition so
// a single submitter's events stay ordered.
type Envelope struct {
	Kind      Kind
	Key       string
	CreatedAt time.Time
	Payload   []byte
}

// New marshals payload into an envelope.
func New(kind Kind, key string, payload any, now time.Time) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", kind, err)
	}
	return Envelope{Kind: kind, Key: key, CreatedAt: now.UTC(), Payload: data}, nil
}

var validate = validator.New()

// Decode unmarshals and validates the envelope payload. Malformed or
// incomplete payloads can never succeed, so they are reported as permanent.
func Decode[T any](env Envelope) (T, error) {
	var out T
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, Permanent(fmt.Errorf("decode %s: %w", env.Kind, err))
	}
	if err := validate.Struct(out); err != nil {
		return out, Permanent(fmt.Errorf("validate %s: %w", env.Kind, err))
	}
	return out, nil
}
