package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poll-miniapp/backend/internal/models"
	"github.com/poll-miniapp/backend/pkg/database"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrEmailTaken is returned by Create when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// AccountColumns is the column list ScanAccount expects, in order.
const AccountColumns = `id, email, password_hash, display_name, telegram_id, register,
	is_professor, is_active, is_staff, created_at`

// ScanAccount scans one row selected with AccountColumns.
func ScanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.TelegramID, &a.Register,
		&a.IsProfessor, &a.IsActive, &a.IsStaff, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Repository handles account persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns an account by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return ScanAccount(r.pool.QueryRow(ctx, `SELECT `+AccountColumns+` FROM accounts WHERE id = $1`, id))
}

// GetByEmail returns an account by email (case-insensitive).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return ScanAccount(r.pool.QueryRow(ctx, `SELECT `+AccountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email))
}

// GetByTelegramID returns the account linked to a Telegram user.
func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error) {
	return ScanAccount(r.pool.QueryRow(ctx, `SELECT `+AccountColumns+` FROM accounts WHERE telegram_id = $1`, telegramID))
}

// CreateAccountParams holds registration fields.
type CreateAccountParams struct {
	Email        string
	PasswordHash string
	DisplayName  string
	Register     *int
	IsProfessor  bool
}

// Create inserts a new account.
func (r *Repository) Create(ctx context.Context, p CreateAccountParams) (*models.Account, error) {
	const q = `INSERT INTO accounts (email, password_hash, display_name, register, is_professor)
		VALUES ($1, $2, NULLIF($3,''), $4, $5)
		RETURNING ` + AccountColumns
	a, err := ScanAccount(r.pool.QueryRow(ctx, q, p.Email, p.PasswordHash, p.DisplayName, p.Register, p.IsProfessor))
	if database.IsUniqueViolation(err, "accounts_email_key") {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}
