package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/richardliu001/board-service/internal/model"
	"github.com/richardliu001/board-service/internal/push"
	"github.com/richardliu001/board-service/internal/registry"
	"github.com/richardliu001/board-service/internal/service"
	"go.uber.org/zap"
)

const (
	maxFrameSize = 4 << 10
	replyTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// PushDeps is what the websocket endpoint and the push gateway share.
// Gateway is this server's own gateway URL as processors reach it; it is
// recorded on every connection accepted here. Refresh is how often an open
// connection's registry entry is renewed.
type PushDeps struct {
	Service  *service.BoardService
	Registry registry.Registry
	Hub      *push.Hub
	Log      *zap.SugaredLogger
	Now      func() time.Time
	Gateway  string
	Refresh  time.Duration
}

// RegisterPushHandlers mounts the websocket endpoint and the gateway that
// processors post notifications to.
func RegisterPushHandlers(r *gin.Engine, d PushDeps) {
	if d.Now == nil {
		d.Now = time.Now
	}
	r.GET("/ws", wsHandler(d))
	r.POST("/internal/connections/:id", gatewayHandler(d.Hub, d.Log))
}

type subscribeFrame struct {
	Action  string `json:"action"`
	BoardID string `json:"boardId"`
	UserID  string `json:"userId"`
}

func wsHandler(d PushDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			d.Log.Warnw("websocket upgrade", "err", err)
			return
		}
		// the request context ends with the handler, registry cleanup must outlive it
		ctx := context.WithoutCancel(c.Request.Context())
		id := uuid.NewString()

		// held before it is published, so a push can never find it missing
		detach := d.Hub.Attach(id, ws)
		conn := model.Connection{
			ConnectionID: id,
			UserID:       c.Query("userId"),
			Gateway:      d.Gateway,
			ConnectedAt:  d.Now().UTC(),
		}
		if err := d.Registry.Save(ctx, conn); err != nil {
			d.Log.Errorw("save connection", "connection_id", id, "err", err)
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "Failed to establish connection"),
				time.Now().Add(time.Second))
			detach()
			return
		}
		d.Log.Infow("websocket connected", "connection_id", id)

		stop, stopped := make(chan struct{}), make(chan struct{})
		go func() {
			defer close(stopped)
			keepAlive(ctx, d, id, stop)
		}()

		defer func() {
			close(stop)
			<-stopped
			detach()
			if err := d.Registry.Remove(ctx, id); err != nil {
				d.Log.Warnw("remove connection", "connection_id", id, "err", err)
			}
			d.Log.Infow("websocket disconnected", "connection_id", id)
		}()

		ws.SetReadLimit(maxFrameSize)
		_ = ws.SetReadDeadline(time.Now().Add(push.PongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(push.PongWait))
		})
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(push.PongWait))
			reply(ctx, d, id, subscribe(ctx, d, id, data))
		}
	}
}

// keepAlive renews the registry entry while the socket stays open.
func keepAlive(ctx context.Context, d PushDeps, id string, stop <-chan struct{}) {
	if d.Refresh <= 0 {
		return
	}
	t := time.NewTicker(d.Refresh)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := d.Registry.Touch(ctx, id); err != nil {
				d.Log.Warnw("refresh connection", "connection_id", id, "err", err)
			}
		}
	}
}

func subscribe(ctx context.Context, d PushDeps, id string, data []byte) push.Notification {
	var f subscribeFrame
	if err := json.Unmarshal(data, &f); err != nil || f.Action != "subscribe" {
		return push.Error("Invalid subscribe request format", d.Now())
	}
	if f.BoardID == "" || f.UserID == "" {
		return push.Error("Missing boardId or userId", d.Now())
	}

	b, err := d.Service.CheckSubscription(ctx, f.BoardID, f.UserID)
	switch {
	case errors.Is(err, service.ErrBoardNotFound):
		return push.Error("Board not found", d.Now())
	case errors.Is(err, service.ErrUserNotFound):
		return push.Error("User not found", d.Now())
	case err != nil:
		d.Log.Errorw("check subscription", "connection_id", id, "board_id", f.BoardID, "err", err)
		return push.Error("Internal server error", d.Now())
	}

	if err := d.Registry.Subscribe(ctx, id, f.BoardID); err != nil {
		d.Log.Errorw("subscribe", "connection_id", id, "board_id", f.BoardID, "err", err)
		return push.Error("Internal server error", d.Now())
	}
	d.Log.Infow("connection subscribed", "connection_id", id, "board_id", f.BoardID)
	return push.Subscribed(b.BoardID, b.Name, d.Now())
}

func reply(ctx context.Context, d PushDeps, id string, n push.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		d.Log.Errorw("encode notification", "connection_id", id, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	if err := d.Hub.Send(ctx, id, payload); err != nil {
		d.Log.Warnw("reply", "connection_id", id, "err", err)
	}
}

// gatewayHandler hands a notification to a connection held by this process.
// 410 tells the caller the connection is gone for good.
func gatewayHandler(hub *push.Hub, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		payload, err := c.GetRawData()
		if err != nil || len(payload) == 0 {
			fail(c, http.StatusBadRequest, "INVALID_PAYLOAD", "Notification body is required")
			return
		}
		err = hub.Send(c.Request.Context(), id, payload)
		switch {
		case errors.Is(err, push.ErrStaleConnection):
			fail(c, http.StatusGone, "GONE", "Connection is not held by this server")
		case err != nil:
			log.Warnw("gateway send", "connection_id", id, "err", err)
			fail(c, http.StatusServiceUnavailable, "SEND_FAILED", err.Error())
		default:
			c.Status(http.StatusNoContent)
		}
	}
}
