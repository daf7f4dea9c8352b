// Package analytics aggregates recorded poll answers into per-question accuracy
// and participation, and exports them as CSV.
package analytics

import (
	"time"

	"github.com/google/uuid"

	"github.com/poll-miniapp/backend/internal/models"
)

// QuestionStats summarises the answers to one question.
type QuestionStats struct {
	QuestionID         uuid.UUID `json:"question_id"`
	Position           int       `json:"position"`
	Text               string    `json:"text"`
	CorrectOptionIndex int       `json:"correct_option_index"`
	Answers            int       `json:"answers"`
	Correct            int       `json:"correct"`
	Accuracy           float64   `json:"accuracy_percent"`
	Participation      float64   `json:"participation_percent"`
	OptionCounts       []int     `json:"option_counts"`
}

// Report is the analytics view of a quiz.
type Report struct {
	QuizID       uuid.UUID       `json:"quiz_id"`
	Title        string          `json:"title"`
	ChatID       string          `json:"chat_id"`
	Participants int             `json:"participants"`
	Answers      int             `json:"answers"`
	Accuracy     float64         `json:"accuracy_percent"`
	LastAnswerAt *time.Time      `json:"last_answer_at,omitempty"`
	Questions    []QuestionStats `json:"questions"`
}

// Summarize builds the report of quiz from its answers.
// Participation of a question is relative to the distinct users who answered any question.
func Summarize(quiz *models.Quiz, answers []models.QuizAnswer) Report {
	rep := Report{QuizID: quiz.ID, Title: quiz.Title, ChatID: quiz.ChatID, Questions: make([]QuestionStats, 0, len(quiz.Questions))}
	idx := make(map[uuid.UUID]int, len(quiz.Questions))
	for i, q := range quiz.Questions {
		idx[q.ID] = i
		rep.Questions = append(rep.Questions, QuestionStats{
			QuestionID:         q.ID,
			Position:           q.Position,
			Text:               q.Text,
			CorrectOptionIndex: q.CorrectOptionIndex,
			OptionCounts:       make([]int, len(q.Options)),
		})
	}

	users := make(map[int64]struct{})
	correct := 0
	for _, a := range answers {
		i, ok := idx[a.QuestionID]
		if !ok {
			continue
		}
		st := &rep.Questions[i]
		st.Answers++
		if a.IsCorrect {
			st.Correct++
			correct++
		}
		if a.ChosenOptionIndex >= 0 && a.ChosenOptionIndex < len(st.OptionCounts) {
			st.OptionCounts[a.ChosenOptionIndex]++
		}
		users[a.TelegramUserID] = struct{}{}
		rep.Answers++
		if rep.LastAnswerAt == nil || a.AnsweredAt.After(*rep.LastAnswerAt) {
			at := a.AnsweredAt
			rep.LastAnswerAt = &at
		}
	}

	rep.Participants = len(users)
	rep.Accuracy = percent(correct, rep.Answers)
	for i := range rep.Questions {
		st := &rep.Questions[i]
		st.Accuracy = percent(st.Correct, st.Answers)
		st.Participation = percent(st.Answers, rep.Participants)
	}
	return rep
}

// percent returns part/total*100 rounded to two decimals, 0 when total is 0.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part*10000/total) / 100
}
