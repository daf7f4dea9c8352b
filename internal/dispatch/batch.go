// Package dispatch posts quiz batches to Telegram and records what was delivered.
package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Option count bounds accepted by sendPoll.
const (
	MinOptions = 2
	MaxOptions = 10
)

// ErrEmptyBatch is returned when a batch has no questions.
var ErrEmptyBatch = errors.New("batch has no questions")

// QuestionSpec is one authored question as submitted by the creator.
type QuestionSpec struct {
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	CorrectOptionID int      `json:"correct_option_id"`
}

// Validate checks the question text, option count and answer key.
func (q QuestionSpec) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return errors.New("question text is required")
	}
	if n := len(q.Options); n < MinOptions || n > MaxOptions {
		return fmt.Errorf("options must have between %d and %d entries, got %d", MinOptions, MaxOptions, n)
	}
	for i, o := range q.Options {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("option %d is empty", i)
		}
	}
	if q.CorrectOptionID < 0 || q.CorrectOptionID >= len(q.Options) {
		return fmt.Errorf("correct_option_id %d out of range", q.CorrectOptionID)
	}
	return nil
}

// Batch is one dispatch request: an ordered list of questions for one chat.
type Batch struct {
	OwnerID   uuid.UUID      `json:"owner_id"`
	ChatID    string         `json:"chat_id"`
	Title     string         `json:"title,omitempty"`
	Questions []QuestionSpec `json:"questions"`
}

// Validate checks the batch and every question in it.
func (b Batch) Validate() error {
	if b.ChatID == "" {
		return errors.New("chat_id is required")
	}
	if len(b.Questions) == 0 {
		return ErrEmptyBatch
	}
	for i, q := range b.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// Created describes a question that was delivered and persisted.
type Created struct {
	Index      int       `json:"index"`
	QuestionID uuid.UUID `json:"question_id"`
	PollID     string    `json:"poll_id,omitempty"`
	MessageID  int64     `json:"message_id,omitempty"`
}

// Failure describes a question that could not be delivered or recorded.
type Failure struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
	Error    string `json:"error"`
}

// Manifest is the outcome of one batch run.
type Manifest struct {
	QuizID   uuid.UUID `json:"quiz_id"`
	Created  []Created `json:"created"`
	Failures []Failure `json:"failures"`
}

// AllFailed reports whether no question of the batch made it.
func (m *Manifest) AllFailed() bool {
	return len(m.Created) == 0
}
