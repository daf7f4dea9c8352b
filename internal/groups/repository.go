package groups

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poll-miniapp/backend/internal/models"
)

// Repository handles chat groups and account bindings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a groups repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// upsertGroup refreshes the title only when a non-empty one is observed.
const upsertGroup = `INSERT INTO chat_groups (chat_id, title) VALUES ($1, $2)
	ON CONFLICT (chat_id) DO UPDATE SET title = CASE WHEN EXCLUDED.title <> '' THEN EXCLUDED.title ELSE chat_groups.title END
	RETURNING id, chat_id, title, created_at`

// Upsert gets or creates the group for chatID.
func (r *Repository) Upsert(ctx context.Context, chatID, title string) (*models.Group, error) {
	return scanGroup(r.pool.QueryRow(ctx, upsertGroup, chatID, title))
}

// Bind gets or creates the group and the account binding. Concurrent duplicate binds
// converge to one group row and one binding row.
func (r *Repository) Bind(ctx context.Context, accountID uuid.UUID, chatID, title string) (*models.Group, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	g, err := scanGroup(tx.QueryRow(ctx, upsertGroup, chatID, title))
	if err != nil {
		return nil, fmt.Errorf("upsert group: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO account_groups (account_id, group_id) VALUES ($1, $2)
		ON CONFLICT (account_id, group_id) DO NOTHING`, accountID, g.ID); err != nil {
		return nil, fmt.Errorf("bind account group: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// ListByAccount returns the groups bound to an account, most recently bound first.
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT g.id, g.chat_id, g.title, g.created_at
		FROM chat_groups g JOIN account_groups ag ON ag.group_id = g.id
		WHERE ag.account_id = $1 ORDER BY ag.bound_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Group{}
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.ChatID, &g.Title, &g.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

func scanGroup(row pgx.Row) (*models.Group, error) {
	var g models.Group
	if err := row.Scan(&g.ID, &g.ChatID, &g.Title, &g.CreatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}
