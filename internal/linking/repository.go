package linking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poll-miniapp/backend/internal/auth"
	"github.com/poll-miniapp/backend/internal/models"
	"github.com/poll-miniapp/backend/pkg/database"
	"github.com/poll-miniapp/backend/pkg/utils"
)

const telegramIDConstraint = "accounts_telegram_id_key"

// tokenBytes is the entropy of a link token before base64url encoding.
const tokenBytes = 24

// Repository handles link tokens and the accounts.telegram_id column.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a linking repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateToken issues a new token for the account. Earlier tokens stay valid.
func (r *Repository) CreateToken(ctx context.Context, accountID uuid.UUID, ttl time.Duration) (*models.LinkToken, error) {
	raw, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return nil, err
	}
	t := models.LinkToken{AccountID: accountID, Token: raw, ExpiresAt: time.Now().Add(ttl)}
	const q = `INSERT INTO link_tokens (account_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err = r.pool.QueryRow(ctx, q, accountID, raw, t.ExpiresAt).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert link token: %w", err)
	}
	return &t, nil
}

// Consume runs the /start <token> flow in one transaction. The token row is locked so
// concurrent replays serialize; the loser sees used_at set and gets OutcomeExpiredToken.
func (r *Repository) Consume(ctx context.Context, token string, telegramID int64, now time.Time) (Outcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var t models.LinkToken
	err = tx.QueryRow(ctx, `SELECT id, account_id, token, created_at, expires_at, used_at
		FROM link_tokens WHERE token = $1 FOR UPDATE`, token).
		Scan(&t.ID, &t.AccountID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OutcomeInvalidToken, nil
	}
	if err != nil {
		return "", fmt.Errorf("load link token: %w", err)
	}

	owner, err := auth.ScanAccount(tx.QueryRow(ctx, `SELECT `+auth.AccountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, t.AccountID))
	if err != nil {
		return "", fmt.Errorf("load token owner: %w", err)
	}
	holder, err := holderOf(ctx, tx, telegramID)
	if err != nil {
		return "", err
	}

	outcome := Decide(Attempt{Token: &t, Owner: owner, Holder: holder, Candidate: telegramID, Now: now})
	if outcome != OutcomeLinked {
		return outcome, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET telegram_id = $1 WHERE id = $2`, telegramID, owner.ID); err != nil {
		if database.IsUniqueViolation(err, telegramIDConstraint) {
			return OutcomeTelegramIDInUse, nil
		}
		return "", fmt.Errorf("set telegram id: %w", err)
	}
	tag, err := tx.Exec(ctx, `UPDATE link_tokens SET used_at = $1 WHERE id = $2 AND used_at IS NULL`, now, t.ID)
	if err != nil {
		return "", fmt.Errorf("mark token used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return OutcomeExpiredToken, nil
	}
	if err := tx.Commit(ctx); err != nil {
		if database.IsUniqueViolation(err, telegramIDConstraint) {
			return OutcomeTelegramIDInUse, nil
		}
		return "", err
	}
	return OutcomeLinked, nil
}

// AssignTelegramID is the direct admin path. It refuses to overwrite a different ID;
// callers clear it first with ClearTelegramID.
func (r *Repository) AssignTelegramID(ctx context.Context, accountID uuid.UUID, telegramID int64) (Outcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	owner, err := auth.ScanAccount(tx.QueryRow(ctx, `SELECT `+auth.AccountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID))
	if err != nil {
		return "", err
	}
	holder, err := holderOf(ctx, tx, telegramID)
	if err != nil {
		return "", err
	}
	if outcome := CheckAssignment(owner, telegramID, holder); outcome != OutcomeLinked {
		return outcome, nil
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET telegram_id = $1 WHERE id = $2`, telegramID, accountID); err != nil {
		if database.IsUniqueViolation(err, telegramIDConstraint) {
			return OutcomeTelegramIDInUse, nil
		}
		return "", fmt.Errorf("set telegram id: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return OutcomeLinked, nil
}

// ClearTelegramID unlinks the account. Returns auth.ErrNotFound for unknown accounts.
func (r *Repository) ClearTelegramID(ctx context.Context, accountID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET telegram_id = NULL WHERE id = $1`, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func holderOf(ctx context.Context, tx pgx.Tx, telegramID int64) (*models.Account, error) {
	holder, err := auth.ScanAccount(tx.QueryRow(ctx, `SELECT `+auth.AccountColumns+` FROM accounts WHERE telegram_id = $1`, telegramID))
	if errors.Is(err, auth.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load telegram id holder: %w", err)
	}
	return holder, nil
}
