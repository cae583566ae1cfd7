package push

import (
	"time"

	"github.com/richardliu001/board-service/internal/event"
)

type NotificationType string

const (
	TypeNewMessage NotificationType = "NEW_MESSAGE"
	TypeNewBoard   NotificationType = "NEW_BOARD"
	TypeSubscribed NotificationType = "SUBSCRIBED"
	TypeError      NotificationType = "ERROR"
)

// Notification is the JSON frame written to a push connection.
type Notification struct {
	Type      NotificationType `json:"type"`
	BoardID   string           `json:"boardId,omitempty"`
	BoardName string           `json:"boardName,omitempty"`
	Data      any              `json:"data,omitempty"`
	Message   string           `json:"message,omitempty"`
	Timestamp string           `json:"timestamp"`
}

func NewMessage(boardID string, data any, now time.Time) Notification {
	return Notification{Type: TypeNewMessage, BoardID: boardID, Data: data, Timestamp: event.FormatTime(now)}
}

func NewBoard(data any, now time.Time) Notification {
	return Notification{Type: TypeNewBoard, Data: data, Timestamp: event.FormatTime(now)}
}

func Subscribed(boardID, boardName string, now time.Time) Notification {
	return Notification{
		Type:      TypeSubscribed,
		BoardID:   boardID,
		BoardName: boardName,
		Message:   "Successfully subscribed to board: " + boardName,
		Timestamp: event.FormatTime(now),
	}
}

func Error(message string, now time.Time) Notification {
	return Notification{Type: TypeError, Message: message, Timestamp: event.FormatTime(now)}
}
