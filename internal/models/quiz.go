package models

import (
	"time"

	"github.com/google/uuid"
)

// Quiz is one dispatch batch of questions owned by a creator account.
type Quiz struct {
	ID        uuid.UUID      `json:"id"`
	OwnerID   uuid.UUID      `json:"owner_id"`
	Title     string         `json:"title"`
	ChatID    string         `json:"chat_id"`
	CreatedAt time.Time      `json:"created_at"`
	Questions []QuizQuestion `json:"questions,omitempty"`
}

// QuizQuestion is a question of a quiz. CorrectOptionIndex is the 0-based answer key.
// TelegramPollID correlates inbound poll answers and may be nil right after dispatch.
type QuizQuestion struct {
	ID                 uuid.UUID    `json:"id"`
	QuizID             uuid.UUID    `json:"quiz_id"`
	Position           int          `json:"position"`
	Text               string       `json:"text"`
	CorrectOptionIndex int          `json:"correct_option_index"`
	TelegramPollID     *string      `json:"telegram_poll_id,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	Options            []QuizOption `json:"options,omitempty"`
}

// QuizOption is an answer option at a fixed position within its question.
type QuizOption struct {
	QuestionID uuid.UUID `json:"question_id"`
	Position   int       `json:"position"`
	Text       string    `json:"text"`
}

// QuizMessage records the Telegram message a question was delivered as.
type QuizMessage struct {
	ID                uuid.UUID `json:"id"`
	QuestionID        uuid.UUID `json:"question_id"`
	ChatID            string    `json:"chat_id"`
	TelegramMessageID int64     `json:"telegram_message_id"`
	SentAt            time.Time `json:"sent_at"`
}

// QuizAnswer is the latest answer of one Telegram user to one question.
type QuizAnswer struct {
	ID                uuid.UUID `json:"id"`
	QuestionID        uuid.UUID `json:"question_id"`
	TelegramUserID    int64     `json:"telegram_user_id"`
	ChosenOptionIndex int       `json:"chosen_option_index"`
	IsCorrect         bool      `json:"is_correct"`
	AnsweredAt        time.Time `json:"answered_at"`
}
