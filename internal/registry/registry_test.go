package registry

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/richardliu001/board-service/internal/event"
	"github.com/richardliu001/board-service/internal/logger"
	"github.com/richardliu001/board-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTTL   = 2 * time.Hour
	testGrace = 10 * time.Second
)

func newTestRegistry(t *testing.T) (*RedisRegistry, redismock.ClientMock) {
	rdb, mock := redismock.NewClientMock()
	log, err := logger.NewLogger("error")
	require.NoError(t, err)
	return NewRedisRegistry(rdb, testTTL, testGrace, log), mock
}

func TestSave_WithInitialBoards(t *testing.T) {
	reg, mock := newTestRegistry(t)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectHSet("conn:c1",
		"connectionId", "c1", "userId", "u1", "gateway", "http://node-a/internal", "connectedAt", event.FormatTime(at),
	).SetVal(4)
	mock.ExpectExpire("conn:c1", testTTL).SetVal(true)
	mock.ExpectSAdd("conns:live", "c1").SetVal(1)
	mock.ExpectSIsMember("conns:live", "c1").SetVal(true)
	mock.ExpectRPush("conn:c1:boards", "b1").SetVal(1)
	mock.ExpectExpire("conn:c1", testTTL).SetVal(true)
	mock.ExpectExpire("conn:c1:boards", testTTL).SetVal(true)
	mock.ExpectSAdd("board:b1:conns", "c1").SetVal(1)

	err := reg.Save(context.Background(), model.Connection{
		ConnectionID: "c1", UserID: "u1", Gateway: "http://node-a/internal",
		SubscribedBoards: []string{"b1"}, ConnectedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscribe_AppendsAndIndexes(t *testing.T) {
	reg, mock := newTestRegistry(t)

	mock.ExpectSIsMember("conns:live", "c1").SetVal(true)
	mock.ExpectRPush("conn:c1:boards", "b1").SetVal(2)
	mock.ExpectExpire("conn:c1", testTTL).SetVal(true)
	mock.ExpectExpire("conn:c1:boards", testTTL).SetVal(true)
	mock.ExpectSAdd("board:b1:conns", "c1").SetVal(0)

	require.NoError(t, reg.Subscribe(context.Background(), "c1", "b1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscribe_UnknownConnection(t *testing.T) {
	reg, mock := newTestRegistry(t)
	mock.ExpectSIsMember("conns:live", "ghost").SetVal(false)

	err := reg.Subscribe(context.Background(), "ghost", "b1")
	assert.ErrorIs(t, err, ErrConnectionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTouch_RefreshesBothKeys(t *testing.T) {
	reg, mock := newTestRegistry(t)

	mock.ExpectSIsMember("conns:live", "c1").SetVal(true)
	mock.ExpectExpire("conn:c1", testTTL).SetVal(true)
	mock.ExpectExpire("conn:c1:boards", testTTL).SetVal(false)
	require.NoError(t, reg.Touch(context.Background(), "c1"))

	mock.ExpectSIsMember("conns:live", "gone").SetVal(false)
	assert.ErrorIs(t, reg.Touch(context.Background(), "gone"), ErrConnectionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindSubscribers_PrunesExpiredEntries(t *testing.T) {
	reg, mock := newTestRegistry(t)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectSMembers("board:b1:conns").SetVal([]string{"c2", "c1"})
	mock.ExpectHGetAll("conn:c1").SetVal(map[string]string{
		"connectionId": "c1", "userId": "u1", "gateway": "http://node-a/internal", "connectedAt": event.FormatTime(at),
	})
	mock.ExpectLRange("conn:c1:boards", 0, -1).SetVal([]string{"b1", "b1"})
	mock.ExpectHGetAll("conn:c2").SetVal(map[string]string{})
	mock.ExpectSRem("board:b1:conns", "c2").SetVal(1)

	conns, err := reg.FindSubscribers(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "c1", conns[0].ConnectionID)
	assert.Equal(t, []string{"b1", "b1"}, conns[0].SubscribedBoards, "duplicate subscriptions are tolerated")
	assert.True(t, at.Equal(conns[0].ConnectedAt))
	assert.Equal(t, "http://node-a/internal", conns[0].Gateway)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindSubscribers_NoSubscribers(t *testing.T) {
	reg, mock := newTestRegistry(t)
	mock.ExpectSMembers("board:empty:conns").SetVal([]string{})

	conns, err := reg.FindSubscribers(context.Background(), "empty")
	require.NoError(t, err)
	assert.Empty(t, conns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemove_UnlinksThenExpiresAndIsIdempotent(t *testing.T) {
	reg, mock := newTestRegistry(t)
	ctx := context.Background()

	mock.ExpectLRange("conn:c1:boards", 0, -1).SetVal([]string{"b1", "b2", "b1"})
	mock.ExpectSRem("board:b1:conns", "c1").SetVal(1)
	mock.ExpectSRem("board:b2:conns", "c1").SetVal(1)
	mock.ExpectSRem("conns:live", "c1").SetVal(1)
	mock.ExpectExpire("conn:c1", testGrace).SetVal(true)
	mock.ExpectExpire("conn:c1:boards", testGrace).SetVal(true)
	require.NoError(t, reg.Remove(ctx, "c1"))

	// already gone
	mock.ExpectLRange("conn:c1:boards", 0, -1).SetVal([]string{})
	mock.ExpectSRem("conns:live", "c1").SetVal(0)
	mock.ExpectExpire("conn:c1", testGrace).SetVal(false)
	mock.ExpectExpire("conn:c1:boards", testGrace).SetVal(false)
	require.NoError(t, reg.Remove(ctx, "c1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	reg, mock := newTestRegistry(t)
	mock.ExpectHGetAll("conn:nope").SetVal(map[string]string{})

	_, err := reg.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestListConnections(t *testing.T) {
	reg, mock := newTestRegistry(t)

	mock.ExpectSMembers("conns:live").SetVal([]string{"c1"})
	mock.ExpectHGetAll("conn:c1").SetVal(map[string]string{"connectionId": "c1"})
	mock.ExpectLRange("conn:c1:boards", 0, -1).SetVal(nil)

	conns, err := reg.ListConnections(context.Background())
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Empty(t, conns[0].SubscribedBoards)
}
