package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poll-miniapp/backend/internal/models"
)

// EventAnswerRecorded is sent to viewers whenever a poll answer is stored.
const EventAnswerRecorded = "answer_recorded"

// AnswerEvent is the payload of EventAnswerRecorded.
type AnswerEvent struct {
	QuizID            uuid.UUID `json:"quiz_id"`
	QuestionID        uuid.UUID `json:"question_id"`
	TelegramUserID    int64     `json:"telegram_user_id"`
	ChosenOptionIndex int       `json:"chosen_option_index"`
	IsCorrect         bool      `json:"is_correct"`
	AnsweredAt        time.Time `json:"answered_at"`
}

// AnswerFeed publishes recorded answers to live viewers through a Hub.
type AnswerFeed struct {
	hub    *Hub
	logger *zap.Logger
}

// NewAnswerFeed creates a feed on hub.
func NewAnswerFeed(hub *Hub, logger *zap.Logger) *AnswerFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnswerFeed{hub: hub, logger: logger}
}

// PublishAnswer never fails; a lost event only affects live viewers.
func (f *AnswerFeed) PublishAnswer(_ context.Context, quizID uuid.UUID, a *models.QuizAnswer) {
	ev := AnswerEvent{
		QuizID:            quizID,
		QuestionID:        a.QuestionID,
		TelegramUserID:    a.TelegramUserID,
		ChosenOptionIndex: a.ChosenOptionIndex,
		IsCorrect:         a.IsCorrect,
		AnsweredAt:        a.AnsweredAt,
	}
	if err := f.hub.Publish(quizID, EventAnswerRecorded, ev); err != nil {
		f.logger.Warn("publish answer event", zap.String("quiz_id", quizID.String()), zap.Error(err))
	}
}
