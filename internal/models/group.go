package models

import (
	"time"

	"github.com/google/uuid"
)

// Group is a Telegram chat known to the system. ChatID is kept as text so large
// negative supergroup ids round-trip unchanged.
type Group struct {
	ID        uuid.UUID `json:"id"`
	ChatID    string    `json:"chat_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountGroup binds an account to a group it administers for quiz delivery.
type AccountGroup struct {
	AccountID uuid.UUID `json:"account_id"`
	GroupID   uuid.UUID `json:"group_id"`
	BoundAt   time.Time `json:"bound_at"`
}
