package quizzes

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poll-miniapp/backend/internal/dispatch"
	"github.com/poll-miniapp/backend/internal/middleware"
	"github.com/poll-miniapp/backend/internal/models"
	"github.com/poll-miniapp/backend/internal/telegram"
	"github.com/poll-miniapp/backend/pkg/response"
)

// Runner executes a dispatch batch now.
type Runner interface {
	Run(ctx context.Context, b dispatch.Batch) (*dispatch.Manifest, error)
}

// Scheduler defers a dispatch batch until at.
type Scheduler interface {
	ScheduleDispatch(ctx context.Context, b dispatch.Batch, at time.Time) (string, error)
}

// PollSender posts regular (non-quiz) polls.
type PollSender interface {
	SendRegularPoll(ctx context.Context, chatID, question string, options []string, multipleAnswers bool) (*telegram.SentPoll, error)
}

// Store is the quiz persistence used by the CRUD endpoints.
type Store interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Quiz, error)
	GetOwned(ctx context.Context, id, ownerID uuid.UUID) (*models.Quiz, error)
	DeleteOwned(ctx context.Context, id, ownerID uuid.UUID) error
}

// SendQuizRequest is the body for POST /send-quiz.
type SendQuizRequest struct {
	ChatID       telegram.ChatID         `json:"chat_id" binding:"required"`
	Title        string                  `json:"title"`
	Questions    []dispatch.QuestionSpec `json:"questions" binding:"required,min=1"`
	ScheduleDate string                  `json:"schedule_date"`
	ScheduleTime string                  `json:"schedule_time"`
}

// ScheduledResponse confirms a deferred dispatch.
type ScheduledResponse struct {
	Scheduled    bool      `json:"scheduled"`
	JobID        string    `json:"job_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// SendPollRequest is the body for POST /send-poll.
type SendPollRequest struct {
	ChatID                telegram.ChatID `json:"chat_id" binding:"required"`
	Question              string          `json:"question" binding:"required"`
	Options               []string        `json:"options" binding:"required"`
	AllowsMultipleAnswers bool            `json:"allows_multiple_answers"`
}

// Handler serves quiz authoring and dispatch endpoints.
type Handler struct {
	store       Store
	runner      Runner
	scheduler   Scheduler // nil disables deferred sends
	polls       PollSender
	loc         *time.Location
	sendTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewHandler creates a quizzes handler. scheduler may be nil.
func NewHandler(store Store, runner Runner, scheduler Scheduler, polls PollSender, loc *time.Location, sendTimeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		store: store, runner: runner, scheduler: scheduler, polls: polls,
		loc: loc, sendTimeout: sendTimeout, now: time.Now, logger: logger,
	}
}

// SendQuiz handles POST /send-quiz: dispatches now, or schedules for later.
func (h *Handler) SendQuiz(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req SendQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	batch := dispatch.Batch{OwnerID: userID, ChatID: string(req.ChatID), Title: req.Title, Questions: req.Questions}
	if err := batch.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	at, deferred, err := ParseSchedule(req.ScheduleDate, req.ScheduleTime, h.loc, h.now())
	if err != nil {
		response.BadRequest(c, "invalid schedule: "+err.Error())
		return
	}

	if deferred {
		if h.scheduler == nil {
			response.ServiceUnavailable(c, "scheduling is not available")
			return
		}
		jobID, err := h.scheduler.ScheduleDispatch(c.Request.Context(), batch, at)
		if err != nil {
			h.logger.Error("schedule quiz", zap.String("chat_id", batch.ChatID), zap.Error(err))
			response.Internal(c, "failed to schedule quiz")
			return
		}
		response.Accepted(c, ScheduledResponse{Scheduled: true, JobID: jobID, ScheduledFor: at})
		return
	}

	// The batch keeps going if the client hangs up; polls already sent must be recorded.
	m, err := h.runner.Run(context.WithoutCancel(c.Request.Context()), batch)
	if err != nil {
		h.logger.Error("dispatch quiz", zap.String("chat_id", batch.ChatID), zap.Error(err))
		response.Internal(c, "failed to dispatch quiz")
		return
	}
	if m.AllFailed() {
		response.BadGateway(c, "all questions failed to send", m)
		return
	}
	response.Created(c, m)
}

// SendPoll handles POST /send-poll. Regular polls are not persisted.
func (h *Handler) SendPoll(c *gin.Context) {
	var req SendPollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	spec := dispatch.QuestionSpec{Question: req.Question, Options: req.Options}
	if err := spec.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.sendTimeout)
	defer cancel()
	sent, err := h.polls.SendRegularPoll(ctx, string(req.ChatID), req.Question, req.Options, req.AllowsMultipleAnswers)
	if err != nil {
		h.logger.Warn("send poll", zap.String("chat_id", string(req.ChatID)), zap.Error(err))
		response.BadGateway(c, "telegram rejected the poll: "+err.Error(), nil)
		return
	}
	response.OK(c, gin.H{"message_id": sent.MessageID, "poll_id": sent.PollID})
}

// List handles GET /quizzes.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.store.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list quizzes")
		return
	}
	response.OK(c, list)
}

// Get handles GET /quizzes/:id.
func (h *Handler) Get(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	q, err := h.store.GetOwned(c.Request.Context(), id, userID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "quiz not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load quiz")
		return
	}
	response.OK(c, q)
}

// Delete handles DELETE /quizzes/:id.
func (h *Handler) Delete(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	if err := h.store.DeleteOwned(c.Request.Context(), id, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "quiz not found")
			return
		}
		response.Internal(c, "failed to delete quiz")
		return
	}
	response.NoContent(c)
}
