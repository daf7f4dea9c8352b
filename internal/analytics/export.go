package analytics

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/poll-miniapp/backend/internal/models"
)

var csvHeader = []string{
	"question_position", "question", "telegram_user_id",
	"chosen_option_index", "chosen_option", "is_correct", "answered_at",
}

// WriteCSV writes one row per answer, ordered as given. Answers to unknown questions are skipped.
func WriteCSV(w io.Writer, quiz *models.Quiz, answers []models.QuizAnswer) (int, error) {
	questions := make(map[uuid.UUID]*models.QuizQuestion, len(quiz.Questions))
	for i := range quiz.Questions {
		questions[quiz.Questions[i].ID] = &quiz.Questions[i]
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}
	rows := 0
	for _, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			continue
		}
		option := ""
		if a.ChosenOptionIndex >= 0 && a.ChosenOptionIndex < len(q.Options) {
			option = q.Options[a.ChosenOptionIndex].Text
		}
		if err := cw.Write([]string{
			strconv.Itoa(q.Position),
			q.Text,
			strconv.FormatInt(a.TelegramUserID, 10),
			strconv.Itoa(a.ChosenOptionIndex),
			option,
			strconv.FormatBool(a.IsCorrect),
			a.AnsweredAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return rows, err
		}
		rows++
	}
	cw.Flush()
	return rows, cw.Error()
}
