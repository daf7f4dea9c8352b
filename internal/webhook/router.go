package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poll-miniapp/backend/config"
	"github.com/poll-miniapp/backend/internal/auth"
	"github.com/poll-miniapp/backend/internal/linking"
	"github.com/poll-miniapp/backend/internal/models"
	"github.com/poll-miniapp/backend/internal/quizzes"
	"github.com/poll-miniapp/backend/internal/telegram"
)

// Status is the literal token reported back for every update.
type Status string

const (
	StatusOK                  Status = "ok"
	StatusStart               Status = "start"
	StatusStartInGroupBlocked Status = "start_in_group_blocked"
	StatusInvalidToken        Status = Status(linking.OutcomeInvalidToken)
	StatusExpiredToken        Status = Status(linking.OutcomeExpiredToken)
	StatusUserAlreadyLinked   Status = Status(linking.OutcomeUserAlreadyLinked)
	StatusTelegramIDInUse     Status = Status(linking.OutcomeTelegramIDInUse)
	StatusLinked              Status = Status(linking.OutcomeLinked)
	StatusBadRequest          Status = "bad_request"
	StatusUserNotLinked       Status = "user_not_linked"
	StatusBound               Status = "bound"
	StatusIgnored             Status = "ignored"
	StatusInviterNotLinked    Status = "inviter_not_linked"
	StatusAutoBound           Status = "auto_bound"
	StatusBotRemoved          Status = "bot_removed"
	StatusSkip                Status = "skip"
	StatusQuestionNotFound    Status = "question_not_found"
	StatusAnswerRecorded      Status = "answer_recorded"
	StatusException           Status = "exception"
)

// Result is the body placed under "data" in the webhook response.
type Result struct {
	Status  Status `json:"status"`
	Correct *bool  `json:"correct,omitempty"`
	Message string `json:"message,omitempty"`
}

func result(s Status) Result { return Result{Status: s} }

// LinkConsumer runs the /start <token> check-and-set.
type LinkConsumer interface {
	Consume(ctx context.Context, token string, telegramID int64, now time.Time) (linking.Outcome, error)
}

// AccountFinder resolves the account linked to a Telegram user; auth.ErrNotFound when none.
type AccountFinder interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error)
}

// GroupBinder gets or creates a group and its binding to an account.
type GroupBinder interface {
	Bind(ctx context.Context, accountID uuid.UUID, chatID, title string) (*models.Group, error)
}

// AnswerStore resolves questions by poll id and upserts answers.
type AnswerStore interface {
	QuestionByPollID(ctx context.Context, pollID string) (*models.QuizQuestion, error)
	UpsertAnswer(ctx context.Context, a *models.QuizAnswer) error
}

// Notifier sends a chat message and never fails.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string, button *telegram.WebAppButton)
}

// AnswerPublisher fans recorded answers out to live viewers. Best effort.
type AnswerPublisher interface {
	PublishAnswer(ctx context.Context, quizID uuid.UUID, a *models.QuizAnswer)
}

// Deps are the collaborators of a Router. Publisher may be nil.
type Deps struct {
	Links     LinkConsumer
	Accounts  AccountFinder
	Groups    GroupBinder
	Answers   AnswerStore
	Notifier  Notifier
	Publisher AnswerPublisher
}

// Router handles one classified update at a time. It is safe for concurrent use.
type Router struct {
	Deps
	cfg    config.TelegramConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewRouter creates a Router.
func NewRouter(deps Deps, cfg config.TelegramConfig, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{Deps: deps, cfg: cfg, now: time.Now, logger: logger}
}

// Handle processes an update and returns its status. It never returns an error:
// every failure maps to a status, so the webhook can always answer 200.
func (r *Router) Handle(ctx context.Context, u telegram.Update) Result {
	c := Classify(u)
	var res Result
	switch c.Kind {
	case KindCommand:
		res = r.handleCommand(ctx, c.Command)
	case KindMembership:
		res = r.handleMembership(ctx, c.Membership)
	case KindPollAnswer:
		res = r.handlePollAnswer(ctx, c.PollAnswer)
	default:
		res = result(StatusOK)
	}
	r.logger.Debug("telegram update handled",
		zap.Int64("update_id", u.UpdateID), zap.String("kind", c.Kind.String()), zap.String("status", string(res.Status)))
	return res
}

func (r *Router) handleCommand(ctx context.Context, cmd *Command) Result {
	switch cmd.Name {
	case "start":
		if cmd.Arg == "" {
			return r.start(ctx, cmd)
		}
		return r.startWithToken(ctx, cmd)
	case "bind":
		return r.bind(ctx, cmd)
	}
	return result(StatusOK)
}

func (r *Router) start(ctx context.Context, cmd *Command) Result {
	if cmd.Chat.Type != telegram.ChatTypePrivate {
		r.Notifier.Notify(ctx, cmd.Chat.ID, msgStartInGroup, nil)
		return result(StatusStartInGroupBlocked)
	}
	var button *telegram.WebAppButton
	if r.cfg.MiniAppURL != "" {
		button = &telegram.WebAppButton{Text: msgWelcomeButton, URL: r.cfg.MiniAppURL}
	}
	r.Notifier.Notify(ctx, cmd.Chat.ID, msgWelcome, button)
	return result(StatusStart)
}

func (r *Router) startWithToken(ctx context.Context, cmd *Command) Result {
	if cmd.From == nil || cmd.From.ID == 0 {
		return result(StatusBadRequest)
	}
	outcome, err := r.Links.Consume(ctx, cmd.Arg, cmd.From.ID, r.now())
	if err != nil {
		r.logger.Error("consume link token", zap.Int64("telegram_id", cmd.From.ID), zap.Error(err))
		return Result{Status: StatusException, Message: "failed to link account"}
	}
	text := map[linking.Outcome]string{
		linking.OutcomeInvalidToken:      msgInvalidToken,
		linking.OutcomeExpiredToken:      msgExpiredToken,
		linking.OutcomeUserAlreadyLinked: msgUserLinked,
		linking.OutcomeTelegramIDInUse:   msgTelegramInUse,
		linking.OutcomeLinked:            msgLinked,
	}[outcome]
	if text != "" {
		r.Notifier.Notify(ctx, cmd.Chat.ID, text, nil)
	}
	if outcome == linking.OutcomeLinked {
		r.logger.Info("telegram account linked", zap.Int64("telegram_id", cmd.From.ID))
	}
	return result(Status(outcome))
}

func (r *Router) bind(ctx context.Context, cmd *Command) Result {
	if !cmd.Chat.IsGroup() || cmd.From == nil {
		return result(StatusBadRequest)
	}
	acc, err := r.Accounts.GetByTelegramID(ctx, cmd.From.ID)
	if errors.Is(err, auth.ErrNotFound) {
		r.Notifier.Notify(ctx, cmd.Chat.ID, msgUserNotLinked, nil)
		return result(StatusUserNotLinked)
	}
	if err != nil {
		r.logger.Error("resolve account", zap.Int64("telegram_id", cmd.From.ID), zap.Error(err))
		return Result{Status: StatusException, Message: "failed to resolve account"}
	}
	if _, err := r.Groups.Bind(ctx, acc.ID, cmd.Chat.IDString(), cmd.Chat.DisplayTitle()); err != nil {
		r.logger.Error("bind group", zap.Int64("chat_id", cmd.Chat.ID), zap.Error(err))
		return Result{Status: StatusException, Message: "failed to bind group"}
	}
	r.Notifier.Notify(ctx, cmd.Chat.ID, msgBound, nil)
	return result(StatusBound)
}

// isSelf reports whether u is this bot: by numeric id when configured, else by username.
func (r *Router) isSelf(u telegram.User) bool {
	if r.cfg.BotID != 0 {
		return u.ID == r.cfg.BotID
	}
	name := telegram.NormalizeUsername(r.cfg.BotUsername)
	return name != "" && telegram.NormalizeUsername(u.Username) == name
}

func (r *Router) handleMembership(ctx context.Context, m *telegram.ChatMemberUpdated) Result {
	if !r.isSelf(m.NewChatMember.User) {
		return result(StatusIgnored)
	}
	switch m.NewChatMember.Status {
	case telegram.MemberStatusMember, telegram.MemberStatusAdministrator:
	case telegram.MemberStatusKicked, telegram.MemberStatusLeft:
		// Bindings are kept when the bot leaves.
		r.logger.Info("bot removed from chat", zap.Int64("chat_id", m.Chat.ID))
		return result(StatusBotRemoved)
	default:
		return result(StatusIgnored)
	}

	if m.From.ID == 0 {
		r.Notifier.Notify(ctx, m.Chat.ID, msgInviterNotLinked, nil)
		return result(StatusInviterNotLinked)
	}
	acc, err := r.Accounts.GetByTelegramID(ctx, m.From.ID)
	if errors.Is(err, auth.ErrNotFound) {
		r.Notifier.Notify(ctx, m.Chat.ID, msgInviterNotLinked, nil)
		return result(StatusInviterNotLinked)
	}
	if err != nil {
		r.logger.Error("resolve inviter", zap.Int64("telegram_id", m.From.ID), zap.Error(err))
		return Result{Status: StatusException, Message: "failed to resolve account"}
	}
	if _, err := r.Groups.Bind(ctx, acc.ID, m.Chat.IDString(), m.Chat.DisplayTitle()); err != nil {
		r.logger.Error("auto bind group", zap.Int64("chat_id", m.Chat.ID), zap.Error(err))
		return Result{Status: StatusException, Message: "failed to bind group"}
	}
	r.Notifier.Notify(ctx, m.Chat.ID, msgAutoBound, nil)
	return result(StatusAutoBound)
}

func (r *Router) handlePollAnswer(ctx context.Context, pa *telegram.PollAnswer) Result {
	if pa.PollID == "" || len(pa.OptionIDs) == 0 || pa.User == nil || pa.User.ID == 0 {
		return result(StatusSkip)
	}
	q, err := r.Answers.QuestionByPollID(ctx, pa.PollID)
	if errors.Is(err, quizzes.ErrNotFound) {
		return result(StatusQuestionNotFound)
	}
	if err != nil {
		r.logger.Error("resolve poll", zap.String("poll_id", pa.PollID), zap.Error(err))
		return Result{Status: StatusException, Message: err.Error()}
	}

	chosen := pa.OptionIDs[0]
	correct := chosen == q.CorrectOptionIndex
	a := &models.QuizAnswer{
		QuestionID:        q.ID,
		TelegramUserID:    pa.User.ID,
		ChosenOptionIndex: chosen,
		IsCorrect:         correct,
		AnsweredAt:        r.now(),
	}
	if err := r.Answers.UpsertAnswer(ctx, a); err != nil {
		r.logger.Error("record answer", zap.String("poll_id", pa.PollID), zap.Int64("telegram_id", pa.User.ID), zap.Error(err))
		return Result{Status: StatusException, Message: err.Error()}
	}
	if r.Publisher != nil {
		r.Publisher.PublishAnswer(ctx, q.QuizID, a)
	}
	return Result{Status: StatusAnswerRecorded, Correct: &correct}
}
