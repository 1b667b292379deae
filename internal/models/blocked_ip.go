package models

import (
	"time"
)

// BlockedIP is a persisted block list rule. Enabled rows are merged with the
// configured block list when the server starts.
type BlockedIP struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	CIDR      string    `json:"cidr" gorm:"uniqueIndex"` // IP literal or CIDR range
	Reason    string    `json:"reason"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
