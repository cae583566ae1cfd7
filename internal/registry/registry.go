//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=../mocks/mock_registry.go -package=mocks
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/board-service/internal/event"
	"github.com/richardliu001/board-service/internal/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var ErrConnectionNotFound = errors.New("connection not found")

// Registry tracks live push connections and the boards they follow.
type Registry interface {
	Save(ctx context.Context, c model.Connection) error
	Remove(ctx context.Context, connectionID string) error
	Get(ctx context.Context, connectionID string) (*model.Connection, error)
	Subscribe(ctx context.Context, connectionID, boardID string) error
	Touch(ctx context.Context, connectionID string) error
	FindSubscribers(ctx context.Context, boardID string) ([]model.Connection, error)
	ListConnections(ctx context.Context) ([]model.Connection, error)
}

const liveKey = "conns:live"

func connKey(id string) string           { return "conn:" + id }
func boardsKey(id string) string         { return "conn:" + id + ":boards" }
func subscribersKey(board string) string { return "board:" + board + ":conns" }

// RedisRegistry keeps each connection as a hash plus an ordered list of board
// ids, and a per-board set of connection ids as the reverse index. Entries
// carry a TTL that the owning server refreshes with Touch while the socket is
// open, so only abandoned connections run out. Membership in conns:live is
// what makes a connection live; a removed connection stays readable for the
// grace period but can no longer subscribe or be refreshed.
type RedisRegistry struct {
	rdb   *redis.Client
	ttl   time.Duration
	grace time.Duration
	log   *zap.SugaredLogger
}

// NewRedisRegistry: ttl bounds how long a connection survives without a
// refresh, grace is how long a removed connection stays readable.
func NewRedisRegistry(rdb *redis.Client, ttl, grace time.Duration, log *zap.SugaredLogger) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, ttl: ttl, grace: grace, log: log}
}

func (r *RedisRegistry) Save(ctx context.Context, c model.Connection) error {
	id := c.ConnectionID
	if err := r.rdb.HSet(ctx, connKey(id),
		"connectionId", id,
		"userId", c.UserID,
		"gateway", c.Gateway,
		"connectedAt", event.FormatTime(c.ConnectedAt),
	).Err(); err != nil {
		return fmt.Errorf("save connection %s: %w", id, err)
	}
	if err := r.rdb.Expire(ctx, connKey(id), r.ttl).Err(); err != nil {
		return err
	}
	if err := r.rdb.SAdd(ctx, liveKey, id).Err(); err != nil {
		return err
	}
	for _, board := range c.SubscribedBoards {
		if err := r.Subscribe(ctx, id, board); err != nil {
			return err
		}
	}
	return nil
}

// Remove unlinks the connection from every index immediately but lets its
// record expire after the grace period, so a broadcast already holding it
// fails softly. Removing an absent connection is a no-op.
func (r *RedisRegistry) Remove(ctx context.Context, connectionID string) error {
	boards, err := r.rdb.LRange(ctx, boardsKey(connectionID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("remove connection %s: %w", connectionID, err)
	}
	for _, board := range lo.Uniq(boards) {
		if err := r.rdb.SRem(ctx, subscribersKey(board), connectionID).Err(); err != nil {
			return err
		}
	}
	if err := r.rdb.SRem(ctx, liveKey, connectionID).Err(); err != nil {
		return err
	}
	if err := r.rdb.Expire(ctx, connKey(connectionID), r.grace).Err(); err != nil {
		return err
	}
	return r.rdb.Expire(ctx, boardsKey(connectionID), r.grace).Err()
}

func (r *RedisRegistry) Get(ctx context.Context, connectionID string) (*model.Connection, error) {
	fields, err := r.rdb.HGetAll(ctx, connKey(connectionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get connection %s: %w", connectionID, err)
	}
	if len(fields) == 0 {
		return nil, ErrConnectionNotFound
	}
	boards, err := r.rdb.LRange(ctx, boardsKey(connectionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get connection %s boards: %w", connectionID, err)
	}
	c := &model.Connection{
		ConnectionID:     fields["connectionId"],
		UserID:           fields["userId"],
		Gateway:          fields["gateway"],
		SubscribedBoards: boards,
	}
	if at, err := event.ParseTime(fields["connectedAt"]); err == nil {
		c.ConnectedAt = at
	}
	return c, nil
}

// Subscribe appends boardID to the connection's list. Repeated subscriptions
// are kept in the list; the reverse index holds the connection once.
func (r *RedisRegistry) Subscribe(ctx context.Context, connectionID, boardID string) error {
	if err := r.ensureLive(ctx, connectionID); err != nil {
		return err
	}
	if err := r.rdb.RPush(ctx, boardsKey(connectionID), boardID).Err(); err != nil {
		return fmt.Errorf("subscribe %s to %s: %w", connectionID, boardID, err)
	}
	if err := r.refresh(ctx, connectionID); err != nil {
		return err
	}
	return r.rdb.SAdd(ctx, subscribersKey(boardID), connectionID).Err()
}

// Touch extends a live connection's TTL. The server holding the socket calls
// it periodically.
func (r *RedisRegistry) Touch(ctx context.Context, connectionID string) error {
	if err := r.ensureLive(ctx, connectionID); err != nil {
		return err
	}
	return r.refresh(ctx, connectionID)
}

func (r *RedisRegistry) ensureLive(ctx context.Context, connectionID string) error {
	live, err := r.rdb.SIsMember(ctx, liveKey, connectionID).Result()
	if err != nil {
		return fmt.Errorf("check connection %s: %w", connectionID, err)
	}
	if !live {
		return ErrConnectionNotFound
	}
	return nil
}

func (r *RedisRegistry) refresh(ctx context.Context, connectionID string) error {
	if err := r.rdb.Expire(ctx, connKey(connectionID), r.ttl).Err(); err != nil {
		return fmt.Errorf("refresh connection %s: %w", connectionID, err)
	}
	return r.rdb.Expire(ctx, boardsKey(connectionID), r.ttl).Err()
}

// FindSubscribers returns every live connection following boardID. Index
// entries whose connection has expired are pruned on the way.
func (r *RedisRegistry) FindSubscribers(ctx context.Context, boardID string) ([]model.Connection, error) {
	conns, err := r.resolve(ctx, subscribersKey(boardID))
	if err != nil {
		return nil, err
	}
	return lo.Filter(conns, func(c model.Connection, _ int) bool { return c.IsSubscribed(boardID) }), nil
}

// ListConnections returns every live connection.
func (r *RedisRegistry) ListConnections(ctx context.Context) ([]model.Connection, error) {
	return r.resolve(ctx, liveKey)
}

func (r *RedisRegistry) resolve(ctx context.Context, indexKey string) ([]model.Connection, error) {
	ids, err := r.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", indexKey, err)
	}
	sort.Strings(ids)

	out := make([]model.Connection, 0, len(ids))
	for _, id := range ids {
		c, err := r.Get(ctx, id)
		if errors.Is(err, ErrConnectionNotFound) {
			if err := r.rdb.SRem(ctx, indexKey, id).Err(); err != nil {
				r.log.Warnw("prune expired connection failed", "index", indexKey, "connection_id", id, "err", err)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}
