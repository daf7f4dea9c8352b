package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is an application user (typically a professor) that may be linked to a Telegram identity.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  *string   `json:"display_name,omitempty"`
	TelegramID   *int64    `json:"telegram_id,omitempty"` // nil until linked
	Register     *int      `json:"register,omitempty"`
	IsProfessor  bool      `json:"is_professor"`
	IsActive     bool      `json:"is_active"`
	IsStaff      bool      `json:"is_staff"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccountPublic is Account without sensitive fields for API responses.
type AccountPublic struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"display_name,omitempty"`
	TelegramID  *int64    `json:"telegram_id,omitempty"`
	IsProfessor bool      `json:"is_professor"`
	IsStaff     bool      `json:"is_staff"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToPublic converts Account to AccountPublic.
func (a *Account) ToPublic() AccountPublic {
	return AccountPublic{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		TelegramID:  a.TelegramID,
		IsProfessor: a.IsProfessor,
		IsStaff:     a.IsStaff,
		CreatedAt:   a.CreatedAt,
	}
}

// LinkToken is a single-use, time-bounded secret that binds a future /start to an account.
type LinkToken struct {
	ID        uuid.UUID  `json:"id"`
	AccountID uuid.UUID  `json:"account_id"`
	Token     string     `json:"token"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// Valid reports whether the token is unused and not past its expiry at now.
func (t *LinkToken) Valid(now time.Time) bool {
	return t.UsedAt == nil && !now.After(t.ExpiresAt)
}
