package model

import "time"

// User is keyed by its lower-cased email; the generated UserID is a secondary unique key.
type User struct {
	Email     string    `gorm:"primaryKey;size:320" json:"email"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex" json:"userId"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string { return "users" }
