package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richardliu001/board-service/internal/config"
	"github.com/richardliu001/board-service/internal/logger"
	"github.com/richardliu001/board-service/internal/mocks"
	"github.com/richardliu001/board-service/internal/model"
	"github.com/richardliu001/board-service/internal/push"
	"github.com/richardliu001/board-service/internal/registry"
	"github.com/richardliu001/board-service/internal/repo"
	"github.com/richardliu001/board-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func newTestRouter(t *testing.T, reg registry.Registry, opts Options) (*gin.Engine, *repo.Repository) {
	r, store, _ := newTestRouterWithHub(t, reg, opts)
	return r, store
}

func newTestRouterWithHub(t *testing.T, reg registry.Registry, opts Options) (*gin.Engine, *repo.Repository, *push.Hub) {
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repo.Migrate(db))

	log, err := logger.NewLogger("error")
	require.NoError(t, err)
	store := repo.NewRepository(db, log)
	hub := push.NewHub(4, log)
	return NewRouter(service.NewBoardService(store, log), reg, hub, opts, log), store, hub
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

var generous = Options{RateLimit: config.RateLimitConfig{RPS: 1000, Burst: 1000}}

func TestRegisterUser(t *testing.T) {
	r, store := newTestRouter(t, mocks.NewMockRegistry(gomock.NewController(t)), generous)

	w, env := do(r, http.MethodPost, "/v1/users", `{"name":"Alice","email":"Alice@Example.com"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"message":"User registration request submitted successfully","email":"alice@example.com","status":"processing"}`, string(env.Data))

	w, env = do(r, http.MethodPost, "/v1/users", `{"name":"Alice"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_JSON", env.Error)

	w, env = do(r, http.MethodPost, "/v1/users", `{"name":"  ","email":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FIELDS", env.Error)
	assert.Equal(t, "Missing required fields: name, email", env.Message)

	w, env = do(r, http.MethodPost, "/v1/users", `{"name":"Bob","email":"bob-at-example"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_EMAIL", env.Error)

	require.NoError(t, store.CreateUser(context.Background(), &model.User{Email: "carol@example.com", UserID: uuid.NewString(), Name: "Carol"}))
	w, env = do(r, http.MethodPost, "/v1/users", `{"name":"Carol","email":"carol@example.com"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "USER_EXISTS", env.Error)
	assert.False(t, env.Success)
}

func TestGetUser(t *testing.T) {
	r, store := newTestRouter(t, mocks.NewMockRegistry(gomock.NewController(t)), generous)
	id := uuid.NewString()
	require.NoError(t, store.CreateUser(context.Background(), &model.User{Email: "a@x.com", UserID: id, Name: "A"}))

	w, env := do(r, http.MethodGet, "/v1/users/a@x.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	var u model.User
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, id, u.UserID)

	w, env = do(r, http.MethodGet, "/v1/users/b@x.com", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "USER_NOT_FOUND", env.Error)
}

func TestBoardsAndMessages(t *testing.T) {
	r, store := newTestRouter(t, mocks.NewMockRegistry(gomock.NewController(t)), generous)
	ctx := context.Background()
	userID := uuid.NewString()
	require.NoError(t, store.CreateUser(ctx, &model.User{Email: "a@x.com", UserID: userID, Name: "A"}))

	w, env := do(r, http.MethodPost, "/v1/boards", `{"name":"general","description":"talk","createdBy":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "USER_NOT_FOUND", env.Error)

	w, _ = do(r, http.MethodPost, "/v1/boards", `{"name":"general","description":"talk","createdBy":"`+userID+`"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	require.NoError(t, store.CreateBoard(ctx, &model.Board{BoardID: "b1", Name: "general", CreatedBy: userID}))
	w, env = do(r, http.MethodGet, "/v1/boards", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"count":1`)

	w, env = do(r, http.MethodPost, "/v1/boards/b2/messages", `{"content":"hi","userId":"`+userID+`","userName":"A"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "BOARD_NOT_FOUND", env.Error)

	w, _ = do(r, http.MethodPost, "/v1/boards/b1/messages", `{"content":"hi","userId":"`+userID+`","userName":"A"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	pending, err := store.PollOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	for i := int64(0); i < 3; i++ {
		require.NoError(t, store.CreateMessage(ctx, &model.Message{
			MessageID: uuid.NewString(), BoardID: "b1", UserID: userID, UserName: "A", Content: "m", Timestamp: 100 + i,
		}))
	}
	w, env = do(r, http.MethodGet, "/v1/boards/b1/messages?limit=500", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		BoardName string          `json:"boardName"`
		Messages  []model.Message `json:"messages"`
		Count     int             `json:"count"`
		Limit     int             `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, "general", page.BoardName)
	assert.Equal(t, 3, page.Count)
	assert.Equal(t, 100, page.Limit)
	assert.Equal(t, int64(102), page.Messages[0].Timestamp)

	w, env = do(r, http.MethodGet, "/v1/boards/b1/messages?limit=0", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Limit)
	assert.Len(t, page.Messages, 1)
}

func TestRateLimit(t *testing.T) {
	r, _ := newTestRouter(t, mocks.NewMockRegistry(gomock.NewController(t)), Options{RateLimit: config.RateLimitConfig{RPS: 1, Burst: 1}})

	w, _ := do(r, http.MethodGet, "/v1/boards", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, env := do(r, http.MethodGet, "/v1/boards", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", env.Error)
}

func TestGateway_UnknownConnection(t *testing.T) {
	r, _ := newTestRouter(t, mocks.NewMockRegistry(gomock.NewController(t)), generous)

	w, _ := do(r, http.MethodPost, "/internal/connections/ghost", `{"type":"NEW_BOARD"}`)
	assert.Equal(t, http.StatusGone, w.Code)

	w, env := do(r, http.MethodPost, "/internal/connections/ghost", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PAYLOAD", env.Error)
}
