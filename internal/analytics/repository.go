package analytics

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poll-miniapp/backend/internal/models"
)

// Repository reads recorded answers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AnswersByQuiz returns every answer to the quiz's questions, in question order then answer time.
func (r *Repository) AnswersByQuiz(ctx context.Context, quizID uuid.UUID) ([]models.QuizAnswer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.question_id, a.telegram_user_id, a.chosen_option_index, a.is_correct, a.answered_at
		FROM quiz_answers a
		JOIN quiz_questions q ON q.id = a.question_id
		WHERE q.quiz_id = $1
		ORDER BY q.position, a.answered_at`, quizID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()
	var out []models.QuizAnswer
	for rows.Next() {
		var a models.QuizAnswer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.TelegramUserID, &a.ChosenOptionIndex, &a.IsCorrect, &a.AnsweredAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
