package model

import "time"

type Board struct {
	BoardID     string    `gorm:"primaryKey;size:36" json:"boardId"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text;not null" json:"description"`
	CreatedBy   string    `gorm:"size:36;not null;index" json:"createdBy"`
	CreatedAt   time.Time `gorm:"not null;index" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null" json:"updatedAt"`
}

func (Board) TableName() string { return "boards" }
