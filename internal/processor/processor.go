// Package processor applies bus events to the durable store.
//
// Every event may be delivered more than once, so each write is guarded:
// users by their unique email, boards and messages by an id derived from the
// event itself. A guard that trips is a successful no-op. A referenced entity
// that does not exist makes the event permanent (dropped), while any other
// store failure is returned as-is so the bus redelivers.
package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/board-service/internal/broadcast"
	"github.com/richardliu001/board-service/internal/event"
	"github.com/richardliu001/board-service/internal/push"
	"github.com/richardliu001/board-service/internal/repo"
	"go.uber.org/zap"
)

// Notifier is the fan-out side of the pipeline; *broadcast.Broadcaster implements it.
type Notifier interface {
	Broadcast(ctx context.Context, boardID string, n push.Notification) broadcast.Result
	Announce(ctx context.Context, n push.Notification) broadcast.Result
}

// Deps are the collaborators one processor invocation works with.
type Deps struct {
	Store    repo.RepositoryInterface
	Notifier Notifier
	Log      *zap.SugaredLogger
	Now      func() time.Time
}

type Processor struct {
	store    repo.RepositoryInterface
	notifier Notifier
	log      *zap.SugaredLogger
	now      func() time.Time
}

func New(d Deps) *Processor {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{store: d.Store, notifier: d.Notifier, log: d.Log, now: now}
}

// Handle decodes env and routes it to the processor for its kind. It has the
// bus.Handler signature.
func (p *Processor) Handle(ctx context.Context, env event.Envelope) error {
	switch env.Kind {
	case event.KindUserRegistration:
		evt, err := event.Decode[event.UserRegistration](env)
		if err != nil {
			return err
		}
		return p.RegisterUser(ctx, evt)
	case event.KindBoardCreation:
		evt, err := event.Decode[event.BoardCreation](env)
		if err != nil {
			return err
		}
		return p.CreateBoard(ctx, evt)
	case event.KindMessagePosting:
		evt, err := event.Decode[event.MessagePost](env)
		if err != nil {
			return err
		}
		return p.PostMessage(ctx, evt)
	}
	return event.Permanent(fmt.Errorf("unknown event kind %q", env.Kind))
}

var (
	boardNamespace   = uuid.NewSHA1(uuid.NameSpaceURL, []byte("board-service/boards"))
	messageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("board-service/messages"))
)

// derivedID is stable across redeliveries of the same event.
func derivedID(ns uuid.UUID, parts ...string) string {
	return uuid.NewSHA1(ns, []byte(strings.Join(parts, "\x00"))).String()
}
