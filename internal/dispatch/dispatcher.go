package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poll-miniapp/backend/internal/models"
	"github.com/poll-miniapp/backend/internal/telegram"
)

// PollSender delivers one quiz poll.
type PollSender interface {
	SendQuizPoll(ctx context.Context, chatID, question string, options []string, correctOption int) (*telegram.SentPoll, error)
}

// Store persists quizzes and delivered questions.
type Store interface {
	CreateQuiz(ctx context.Context, q *models.Quiz) error
	// SaveQuestion inserts the question with its options and, when msg is non-nil, its delivery record.
	SaveQuestion(ctx context.Context, q *models.QuizQuestion, msg *models.QuizMessage) error
	DeleteQuiz(ctx context.Context, id uuid.UUID) error
}

// Dispatcher runs batches. Immediate and scheduled sends share Run.
type Dispatcher struct {
	sender  PollSender
	store   Store
	timeout time.Duration
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger
}

// NewDispatcher creates a Dispatcher. timeout bounds each sendPoll call; loc is used
// for generated titles.
func NewDispatcher(sender PollSender, store Store, timeout time.Duration, loc *time.Location, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sender: sender, store: store, timeout: timeout, loc: loc, now: time.Now, logger: logger}
}

// Run creates the quiz and sends its questions in order. A failed question is recorded
// and the batch continues. An error is returned only when nothing was sent, so callers
// may retry it safely. When every question failed the quiz row is removed again.
func (d *Dispatcher) Run(ctx context.Context, b Batch) (*Manifest, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	quiz := &models.Quiz{OwnerID: b.OwnerID, ChatID: b.ChatID, Title: b.Title}
	if quiz.Title == "" {
		quiz.Title = "Quiz " + d.now().In(d.loc).Format("2006-01-02 15:04")
	}
	if err := d.store.CreateQuiz(ctx, quiz); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}

	m := &Manifest{QuizID: quiz.ID, Created: []Created{}, Failures: []Failure{}}
	for i, spec := range b.Questions {
		created, err := d.deliver(ctx, quiz, i, spec)
		if err != nil {
			d.logger.Warn("quiz question not delivered",
				zap.String("quiz_id", quiz.ID.String()), zap.String("chat_id", b.ChatID),
				zap.Int("index", i), zap.Error(err))
			m.Failures = append(m.Failures, Failure{Index: i, Question: spec.Question, Error: err.Error()})
			continue
		}
		m.Created = append(m.Created, created)
	}

	if m.AllFailed() {
		if err := d.store.DeleteQuiz(ctx, quiz.ID); err != nil {
			d.logger.Error("delete failed quiz", zap.String("quiz_id", quiz.ID.String()), zap.Error(err))
		}
		m.QuizID = uuid.Nil
	}
	d.logger.Info("quiz batch dispatched",
		zap.String("quiz_id", quiz.ID.String()), zap.String("chat_id", b.ChatID),
		zap.Int("created", len(m.Created)), zap.Int("failed", len(m.Failures)))
	return m, nil
}

func (d *Dispatcher) deliver(ctx context.Context, quiz *models.Quiz, index int, spec QuestionSpec) (Created, error) {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	sent, err := d.sender.SendQuizPoll(sendCtx, quiz.ChatID, spec.Question, spec.Options, spec.CorrectOptionID)
	cancel()
	if err != nil {
		return Created{}, err
	}
	if sent == nil {
		sent = &telegram.SentPoll{}
	}

	q := &models.QuizQuestion{
		QuizID:             quiz.ID,
		Position:           index,
		Text:               spec.Question,
		CorrectOptionIndex: spec.CorrectOptionID,
	}
	if sent.PollID != "" {
		pollID := sent.PollID
		q.TelegramPollID = &pollID
	}
	for pos, text := range spec.Options {
		q.Options = append(q.Options, models.QuizOption{Position: pos, Text: text})
	}
	var msg *models.QuizMessage
	if sent.MessageID != 0 {
		msg = &models.QuizMessage{ChatID: quiz.ChatID, TelegramMessageID: sent.MessageID}
	}
	// The poll is already live in the chat; a failed insert is reported like a failed send.
	if err := d.store.SaveQuestion(ctx, q, msg); err != nil {
		return Created{}, fmt.Errorf("record delivered question: %w", err)
	}
	return Created{Index: index, QuestionID: q.ID, PollID: sent.PollID, MessageID: sent.MessageID}, nil
}
