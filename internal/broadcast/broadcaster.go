// Package broadcast fans notifications out to live push connections.
//
// Delivery is best-effort: every resolved connection is attempted
// concurrently with its own timeout, a stale connection is removed from the
// registry, and no failure is ever returned to the caller. The Result is an
// account for logging, not a success signal.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/richardliu001/board-service/internal/model"
	"github.com/richardliu001/board-service/internal/push"
	"github.com/richardliu001/board-service/internal/registry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result counts the outcome of one fan-out.
type Result struct {
	Attempted int
	Delivered int
	Stale     int
	Failed    int
}

type Config struct {
	// SendTimeout bounds a single connection's delivery.
	SendTimeout time.Duration
	// MaxInFlight caps concurrent deliveries within one fan-out; 0 means no cap.
	MaxInFlight int
}

type Broadcaster struct {
	registry  registry.Registry
	transport push.Transport
	cfg       Config
	log       *zap.SugaredLogger
}

func New(reg registry.Registry, transport push.Transport, cfg Config, log *zap.SugaredLogger) *Broadcaster {
	return &Broadcaster{registry: reg, transport: transport, cfg: cfg, log: log}
}

// Broadcast delivers n to every connection subscribed to boardID.
func (b *Broadcaster) Broadcast(ctx context.Context, boardID string, n push.Notification) Result {
	conns, err := b.registry.FindSubscribers(ctx, boardID)
	if err != nil {
		b.log.Errorw("resolve subscribers failed", "board_id", boardID, "err", err)
		return Result{}
	}
	res := b.fanout(ctx, conns, n)
	b.logResult("board broadcast finished", res, "board_id", boardID, "type", n.Type)
	return res
}

// Announce delivers n to every live connection. New boards have no
// subscribers yet, so their notifications go out this way.
func (b *Broadcaster) Announce(ctx context.Context, n push.Notification) Result {
	conns, err := b.registry.ListConnections(ctx)
	if err != nil {
		b.log.Errorw("resolve connections failed", "type", n.Type, "err", err)
		return Result{}
	}
	res := b.fanout(ctx, conns, n)
	b.logResult("announcement finished", res, "type", n.Type)
	return res
}

func (b *Broadcaster) fanout(ctx context.Context, conns []model.Connection, n push.Notification) Result {
	if len(conns) == 0 {
		return Result{}
	}
	payload, err := json.Marshal(n)
	if err != nil {
		b.log.Errorw("encode notification failed", "type", n.Type, "err", err)
		return Result{}
	}

	var delivered, stale, failed atomic.Int64
	var g errgroup.Group
	if b.cfg.MaxInFlight > 0 {
		g.SetLimit(b.cfg.MaxInFlight)
	}
	for _, c := range conns {
		c := c
		id := c.ConnectionID
		g.Go(func() error {
			switch err := b.deliver(ctx, c, payload); {
			case err == nil:
				delivered.Add(1)
			case errors.Is(err, push.ErrStaleConnection):
				stale.Add(1)
				if err := b.registry.Remove(ctx, id); err != nil {
					b.log.Warnw("remove stale connection failed", "connection_id", id, "err", err)
				}
			default:
				failed.Add(1)
				b.log.Warnw("push delivery failed", "connection_id", id, "type", n.Type, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return Result{
		Attempted: len(conns),
		Delivered: int(delivered.Load()),
		Stale:     int(stale.Load()),
		Failed:    int(failed.Load()),
	}
}

func (b *Broadcaster) deliver(ctx context.Context, target model.Connection, payload []byte) error {
	if b.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.SendTimeout)
		defer cancel()
	}
	return b.transport.Send(ctx, target, payload)
}

func (b *Broadcaster) logResult(msg string, res Result, kv ...interface{}) {
	kv = append(kv, "attempted", res.Attempted, "delivered", res.Delivered, "stale", res.Stale, "failed", res.Failed)
	if res.Stale+res.Failed > 0 {
		b.log.Warnw(msg, kv...)
		return
	}
	b.log.Infow(msg, kv...)
}
