package push

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait = 10 * time.Second
	// PongWait is how long a reader may wait for the peer's next pong.
	PongWait   = 60 * time.Second
	pingPeriod = PongWait * 9 / 10
)

// Hub owns the websocket connections accepted by this server process. Each
// connection has a dedicated writer goroutine fed by a bounded queue.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*client
	bufSize int
	log     *zap.SugaredLogger
}

type client struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewHub(bufSize int, log *zap.SugaredLogger) *Hub {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Hub{conns: make(map[string]*client), bufSize: bufSize, log: log}
}

// Attach registers ws under id and starts its writer. The returned func
// detaches and closes the connection; it is safe to call more than once.
func (h *Hub) Attach(id string, ws *websocket.Conn) func() {
	c := &client{ws: ws, send: make(chan []byte, h.bufSize), done: make(chan struct{})}

	h.mu.Lock()
	if old, ok := h.conns[id]; ok {
		old.close()
	}
	h.conns[id] = c
	h.mu.Unlock()

	go h.writeLoop(id, c)

	return func() {
		h.mu.Lock()
		if h.conns[id] == c {
			delete(h.conns, id)
		}
		h.mu.Unlock()
		c.close()
	}
}

// Send queues payload for connection id. Unknown ids are stale; a full queue
// is a transient failure.
func (h *Hub) Send(ctx context.Context, id string, payload []byte) error {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return ErrStaleConnection
	}
	select {
	case <-c.done:
		return ErrStaleConnection
	case c.send <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len reports the number of attached connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) writeLoop(id string, c *client) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Warnw("websocket ping failed", "connection_id", id, "err", err)
				c.close()
				return
			}
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.log.Warnw("websocket write failed", "connection_id", id, "err", err)
				c.close()
				return
			}
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
