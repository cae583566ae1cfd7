package model

import "time"

// Message is append-only. Timestamp is epoch milliseconds captured when the
// message was applied; CreatedAt is the same instant as a time value.
type Message struct {
	MessageID string    `gorm:"primaryKey;size:36" json:"messageId"`
	BoardID   string    `gorm:"size:36;not null;index:idx_board_ts,priority:1" json:"boardId"`
	UserID    string    `gorm:"size:36;not null" json:"userId"`
	UserName  string    `gorm:"size:255;not null" json:"userName"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp int64     `gorm:"not null;index:idx_board_ts,priority:2" json:"timestamp"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (Message) TableName() string { return "messages" }
