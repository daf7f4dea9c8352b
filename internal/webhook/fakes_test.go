package webhook

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poll-miniapp/backend/internal/auth"
	"github.com/poll-miniapp/backend/internal/linking"
	"github.com/poll-miniapp/backend/internal/models"
	"github.com/poll-miniapp/backend/internal/quizzes"
	"github.com/poll-miniapp/backend/internal/telegram"
)

// world is an in-memory stand-in for every store the router talks to. It enforces the
// same unique keys as the schema: one group per chat id, one binding per pair, one answer
// per (question, telegram user).
type world struct {
	mu        sync.Mutex
	accounts  map[uuid.UUID]*models.Account
	tokens    map[string]*models.LinkToken
	groups    map[string]*models.Group
	bindings  map[[2]uuid.UUID]bool
	questions map[string]*models.QuizQuestion
	answers   map[answerKey]*models.QuizAnswer
	answerErr error
}

type answerKey struct {
	question uuid.UUID
	user     int64
}

func newWorld() *world {
	return &world{
		accounts:  map[uuid.UUID]*models.Account{},
		tokens:    map[string]*models.LinkToken{},
		groups:    map[string]*models.Group{},
		bindings:  map[[2]uuid.UUID]bool{},
		questions: map[string]*models.QuizQuestion{},
		answers:   map[answerKey]*models.QuizAnswer{},
	}
}

func (w *world) addAccount(email string, telegramID *int64) *models.Account {
	w.mu.Lock()
	defer w.mu.Unlock()
	a := &models.Account{ID: uuid.New(), Email: email, TelegramID: telegramID, IsActive: true}
	w.accounts[a.ID] = a
	return a
}

func (w *world) addToken(owner *models.Account, token string, expiresAt time.Time) *models.LinkToken {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := &models.LinkToken{ID: uuid.New(), AccountID: owner.ID, Token: token, ExpiresAt: expiresAt}
	w.tokens[token] = t
	return t
}

func (w *world) addQuestion(pollID string, correct int) *models.QuizQuestion {
	w.mu.Lock()
	defer w.mu.Unlock()
	q := &models.QuizQuestion{ID: uuid.New(), QuizID: uuid.New(), TelegramPollID: &pollID, CorrectOptionIndex: correct}
	w.questions[pollID] = q
	return q
}

func (w *world) telegramID(a *models.Account) *int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.accounts[a.ID].TelegramID
}

func (w *world) holder(telegramID int64) *models.Account {
	for _, a := range w.accounts {
		if a.TelegramID != nil && *a.TelegramID == telegramID {
			return a
		}
	}
	return nil
}

func (w *world) Consume(_ context.Context, token string, telegramID int64, now time.Time) (linking.Outcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := w.tokens[token]
	var owner *models.Account
	if t != nil {
		owner = w.accounts[t.AccountID]
	}
	outcome := linking.Decide(linking.Attempt{Token: t, Owner: owner, Holder: w.holder(telegramID), Candidate: telegramID, Now: now})
	if outcome == linking.OutcomeLinked {
		id := telegramID
		owner.TelegramID = &id
		used := now
		t.UsedAt = &used
	}
	return outcome, nil
}

func (w *world) GetByTelegramID(_ context.Context, telegramID int64) (*models.Account, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if a := w.holder(telegramID); a != nil {
		return a, nil
	}
	return nil, auth.ErrNotFound
}

func (w *world) Bind(_ context.Context, accountID uuid.UUID, chatID, title string) (*models.Group, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	g, ok := w.groups[chatID]
	if !ok {
		g = &models.Group{ID: uuid.New(), ChatID: chatID, CreatedAt: time.Now()}
		w.groups[chatID] = g
	}
	if title != "" {
		g.Title = title
	}
	w.bindings[[2]uuid.UUID{accountID, g.ID}] = true
	return g, nil
}

func (w *world) QuestionByPollID(_ context.Context, pollID string) (*models.QuizQuestion, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if q, ok := w.questions[pollID]; ok {
		return q, nil
	}
	return nil, quizzes.ErrNotFound
}

func (w *world) UpsertAnswer(_ context.Context, a *models.QuizAnswer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.answerErr != nil {
		return w.answerErr
	}
	k := answerKey{a.QuestionID, a.TelegramUserID}
	if prev, ok := w.answers[k]; ok {
		a.ID = prev.ID
	} else {
		a.ID = uuid.New()
	}
	cp := *a
	w.answers[k] = &cp
	return nil
}

func (w *world) counts() (groups, bindings, answers int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.groups), len(w.bindings), len(w.answers)
}

type sentNote struct {
	ChatID int64
	Text   string
	Button *telegram.WebAppButton
}

// recordingNotifier is the Notifier stub; it never fails, like the real one.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNote
}

func (n *recordingNotifier) Notify(_ context.Context, chatID int64, text string, button *telegram.WebAppButton) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNote{chatID, text, button})
}

func (n *recordingNotifier) last() sentNote {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentNote{}
	}
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingPublisher struct {
	mu     sync.Mutex
	quizID []uuid.UUID
}

func (p *recordingPublisher) PublishAnswer(_ context.Context, quizID uuid.UUID, _ *models.QuizAnswer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quizID = append(p.quizID, quizID)
}

var errDatabaseDown = errors.New("connection refused")
