package quizzes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poll-miniapp/backend/internal/models"
)

// ErrNotFound is returned when a quiz or question does not exist (or is not the caller's).
var ErrNotFound = errors.New("not found")

// Repository handles quizzes, delivered questions and answers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a quizzes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateQuiz inserts a quiz and fills ID and CreatedAt.
func (r *Repository) CreateQuiz(ctx context.Context, q *models.Quiz) error {
	const sql = `INSERT INTO quizzes (owner_id, title, chat_id) VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, sql, q.OwnerID, q.Title, q.ChatID).Scan(&q.ID, &q.CreatedAt)
}

// SaveQuestion inserts a delivered question, its options in order and, if msg is non-nil,
// the delivery record, in one transaction.
func (r *Repository) SaveQuestion(ctx context.Context, q *models.QuizQuestion, msg *models.QuizMessage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `INSERT INTO quiz_questions (quiz_id, position, text, correct_option_index, telegram_poll_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		q.QuizID, q.Position, q.Text, q.CorrectOptionIndex, q.TelegramPollID).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range q.Options {
		q.Options[i].QuestionID = q.ID
		batch.Queue(`INSERT INTO quiz_options (question_id, position, text) VALUES ($1, $2, $3)`,
			q.ID, q.Options[i].Position, q.Options[i].Text)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert options: %w", err)
	}

	if msg != nil {
		msg.QuestionID = q.ID
		err = tx.QueryRow(ctx, `INSERT INTO quiz_messages (question_id, chat_id, telegram_message_id)
			VALUES ($1, $2, $3) RETURNING id, sent_at`, q.ID, msg.ChatID, msg.TelegramMessageID).Scan(&msg.ID, &msg.SentAt)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// DeleteQuiz removes a quiz; questions, options, messages and answers cascade.
func (r *Repository) DeleteQuiz(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	return err
}

// DeleteOwned removes a quiz owned by ownerID.
func (r *Repository) DeleteOwned(ctx context.Context, id, ownerID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// QuestionByPollID resolves the question an inbound poll answer refers to.
func (r *Repository) QuestionByPollID(ctx context.Context, pollID string) (*models.QuizQuestion, error) {
	var q models.QuizQuestion
	err := r.pool.QueryRow(ctx, `SELECT id, quiz_id, position, text, correct_option_index, telegram_poll_id, created_at
		FROM quiz_questions WHERE telegram_poll_id = $1`, pollID).
		Scan(&q.ID, &q.QuizID, &q.Position, &q.Text, &q.CorrectOptionIndex, &q.TelegramPollID, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// UpsertAnswer stores the latest answer of a Telegram user to a question.
// A repeated answer overwrites choice, correctness and time.
func (r *Repository) UpsertAnswer(ctx context.Context, a *models.QuizAnswer) error {
	const sql = `INSERT INTO quiz_answers (question_id, telegram_user_id, chosen_option_index, is_correct, answered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (question_id, telegram_user_id) DO UPDATE SET
			chosen_option_index = EXCLUDED.chosen_option_index,
			is_correct = EXCLUDED.is_correct,
			answered_at = EXCLUDED.answered_at
		RETURNING id`
	return r.pool.QueryRow(ctx, sql, a.QuestionID, a.TelegramUserID, a.ChosenOptionIndex, a.IsCorrect, a.AnsweredAt).Scan(&a.ID)
}

// ListByOwner returns the owner's quizzes, newest first, without questions.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Quiz, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, owner_id, title, chat_id, created_at FROM quizzes
		WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Quiz{}
	for rows.Next() {
		var q models.Quiz
		if err := rows.Scan(&q.ID, &q.OwnerID, &q.Title, &q.ChatID, &q.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// GetOwned returns a quiz of ownerID with its questions and options.
func (r *Repository) GetOwned(ctx context.Context, id, ownerID uuid.UUID) (*models.Quiz, error) {
	var q models.Quiz
	err := r.pool.QueryRow(ctx, `SELECT id, owner_id, title, chat_id, created_at FROM quizzes
		WHERE id = $1 AND owner_id = $2`, id, ownerID).Scan(&q.ID, &q.OwnerID, &q.Title, &q.ChatID, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT qq.id, qq.quiz_id, qq.position, qq.text, qq.correct_option_index,
			qq.telegram_poll_id, qq.created_at, o.position, o.text
		FROM quiz_questions qq LEFT JOIN quiz_options o ON o.question_id = qq.id
		WHERE qq.quiz_id = $1 ORDER BY qq.position, o.position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var qq models.QuizQuestion
		var pos *int
		var text *string
		if err := rows.Scan(&qq.ID, &qq.QuizID, &qq.Position, &qq.Text, &qq.CorrectOptionIndex,
			&qq.TelegramPollID, &qq.CreatedAt, &pos, &text); err != nil {
			return nil, err
		}
		if n := len(q.Questions); n == 0 || q.Questions[n-1].ID != qq.ID {
			q.Questions = append(q.Questions, qq)
		}
		if pos != nil && text != nil {
			last := &q.Questions[len(q.Questions)-1]
			last.Options = append(last.Options, models.QuizOption{QuestionID: qq.ID, Position: *pos, Text: *text})
		}
	}
	return &q, rows.Err()
}
