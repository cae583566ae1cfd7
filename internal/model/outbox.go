package model

import "time"

// OutboxEvent is an accepted intake event waiting to be relayed to the bus.
type OutboxEvent struct {
	ID           uint64    `gorm:"primaryKey"`
	Kind         string    `gorm:"size:64;not null"`
	PartitionKey string    `gorm:"size:320;not null"`
	Payload      string    `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index"`
	Processed    bool      `gorm:"not null;default:false;index"`
	ProcessedAt  *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }
