package gormstore

import "time"

// UserBalance mirrors the user_balances table: one durable integer balance
// per user identity.
type UserBalance struct {
	UserID    string    `gorm:"primaryKey"`
	Balance   int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (UserBalance) TableName() string { return "user_balances" }
