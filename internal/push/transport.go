//go:generate go run go.uber.org/mock/mockgen -source=transport.go -destination=../mocks/mock_transport.go -package=mocks
package push

import (
	"context"
	"errors"

	"github.com/richardliu001/board-service/internal/model"
)

// ErrStaleConnection means the peer is gone and the connection will never
// accept another frame.
var ErrStaleConnection = errors.New("stale connection")

// Transport delivers one payload to one connection. A nil error means
// delivered, ErrStaleConnection means the peer is gone, anything else is a
// transient delivery failure. Implementations must only report stale when the
// process that owns target says so.
type Transport interface {
	Send(ctx context.Context, target model.Connection, payload []byte) error
}
