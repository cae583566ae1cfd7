package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/board-service/internal/logger"
	"github.com/richardliu001/board-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	log, err := logger.NewLogger("error")
	require.NoError(t, err)
	return NewRedisRegistry(rdb, testTTL, testGrace, log), mr
}

func TestExpiry_RefreshedConnectionOutlivesTTL(t *testing.T) {
	reg, mr := newMiniRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Save(ctx, model.Connection{ConnectionID: "c1", ConnectedAt: time.Now()}))
	mr.FastForward(90 * time.Minute)
	require.NoError(t, reg.Subscribe(ctx, "c1", "b1"))
	mr.FastForward(31 * time.Minute)

	// still open two hours in: subscribe refreshed it
	conns, err := reg.FindSubscribers(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, conns, 1)
	require.NoError(t, reg.Subscribe(ctx, "c1", "b2"))

	for i := 0; i < 4; i++ {
		mr.FastForward(time.Hour)
		require.NoError(t, reg.Touch(ctx, "c1"))
	}
	conns, err = reg.FindSubscribers(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, []string{"b1", "b2"}, conns[0].SubscribedBoards)
}

func TestExpiry_AbandonedConnectionDisappears(t *testing.T) {
	reg, mr := newMiniRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Save(ctx, model.Connection{ConnectionID: "c1", SubscribedBoards: []string{"b1"}}))
	mr.FastForward(testTTL + time.Minute)

	conns, err := reg.FindSubscribers(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, conns)
	all, err := reg.ListConnections(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestExpiry_RemovedConnectionCannotBeRevived(t *testing.T) {
	reg, mr := newMiniRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Save(ctx, model.Connection{ConnectionID: "c1", SubscribedBoards: []string{"b1"}}))
	require.NoError(t, reg.Remove(ctx, "c1"))

	assert.ErrorIs(t, reg.Subscribe(ctx, "c1", "b2"), ErrConnectionNotFound)
	assert.ErrorIs(t, reg.Touch(ctx, "c1"), ErrConnectionNotFound)
	assert.LessOrEqual(t, mr.TTL("conn:c1:boards"), testGrace)
	assert.LessOrEqual(t, mr.TTL("conn:c1"), testGrace)
	assert.False(t, mr.Exists("board:b2:conns"))

	// readable during the grace period, gone after it
	_, err := reg.Get(ctx, "c1")
	require.NoError(t, err)
	mr.FastForward(testGrace + time.Second)
	_, err = reg.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}
