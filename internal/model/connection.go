package model

import (
	"time"

	"github.com/samber/lo"
)

// Connection is a live push session and the boards it follows. SubscribedBoards
// keeps insertion order and may hold duplicates. Gateway is the push endpoint
// of the server process holding the socket.
type Connection struct {
	ConnectionID     string    `json:"connectionId"`
	UserID           string    `json:"userId,omitempty"`
	Gateway          string    `json:"gateway,omitempty"`
	SubscribedBoards []string  `json:"subscribedBoards"`
	ConnectedAt      time.Time `json:"connectedAt"`
}

func (c Connection) IsSubscribed(boardID string) bool {
	return lo.Contains(c.SubscribedBoards, boardID)
}
