package analytics

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poll-miniapp/backend/internal/middleware"
	"github.com/poll-miniapp/backend/internal/models"
	"github.com/poll-miniapp/backend/internal/quizzes"
	"github.com/poll-miniapp/backend/pkg/response"
	"github.com/poll-miniapp/backend/pkg/storage"
)

// QuizLoader loads a quiz with questions and options when owned by the caller.
type QuizLoader interface {
	GetOwned(ctx context.Context, id, ownerID uuid.UUID) (*models.Quiz, error)
}

// AnswerReader lists the answers of a quiz.
type AnswerReader interface {
	AnswersByQuiz(ctx context.Context, quizID uuid.UUID) ([]models.QuizAnswer, error)
}

// ObjectStore is the part of storage.S3 used for exports.
type ObjectStore interface {
	ExportsBucket() string
	PresignExpire() time.Duration
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64) error
	GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

// ExportResponse points at an uploaded CSV export.
type ExportResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Handler serves quiz analytics.
type Handler struct {
	quizzes QuizLoader
	answers AnswerReader
	objects ObjectStore // nil disables export
	now     func() time.Time
	logger  *zap.Logger
}

// NewHandler creates an analytics handler. objects may be nil.
func NewHandler(quizzes QuizLoader, answers AnswerReader, objects ObjectStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{quizzes: quizzes, answers: answers, objects: objects, now: time.Now, logger: logger}
}

// load resolves the quiz and its answers, writing the error response itself.
func (h *Handler) load(c *gin.Context) (*models.Quiz, []models.QuizAnswer, bool) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid quiz id")
		return nil, nil, false
	}
	ctx := c.Request.Context()
	quiz, err := h.quizzes.GetOwned(ctx, id, userID)
	if errors.Is(err, quizzes.ErrNotFound) {
		response.NotFound(c, "quiz not found")
		return nil, nil, false
	}
	if err != nil {
		h.logger.Error("load quiz", zap.String("quiz_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to load quiz")
		return nil, nil, false
	}
	answers, err := h.answers.AnswersByQuiz(ctx, id)
	if err != nil {
		h.logger.Error("load answers", zap.String("quiz_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to load answers")
		return nil, nil, false
	}
	return quiz, answers, true
}

// Get handles GET /quizzes/:id/analytics.
func (h *Handler) Get(c *gin.Context) {
	quiz, answers, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, Summarize(quiz, answers))
}

// Export handles POST /quizzes/:id/export.
func (h *Handler) Export(c *gin.Context) {
	if h.objects == nil {
		response.ServiceUnavailable(c, "exports not configured")
		return
	}
	quiz, answers, ok := h.load(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	rows, err := WriteCSV(&buf, quiz, answers)
	if err != nil {
		response.Internal(c, "failed to build export")
		return
	}

	ctx := c.Request.Context()
	bucket := h.objects.ExportsBucket()
	now := h.now()
	key := storage.ExportKey(quiz.ID.String(), now)
	if err := h.objects.Upload(ctx, bucket, key, "text/csv", &buf, int64(buf.Len())); err != nil {
		h.logger.Error("upload export", zap.String("quiz_id", quiz.ID.String()), zap.Error(err))
		response.BadGateway(c, "failed to upload export", nil)
		return
	}
	expires := h.objects.PresignExpire()
	url, err := h.objects.GeneratePresignedDownloadURL(ctx, bucket, key, expires)
	if err != nil {
		h.logger.Error("presign export", zap.String("key", key), zap.Error(err))
		if delErr := h.objects.DeleteObject(ctx, bucket, key); delErr != nil {
			h.logger.Warn("delete orphaned export", zap.String("key", key), zap.Error(delErr))
		}
		response.Internal(c, "failed to sign export url")
		return
	}
	response.Created(c, ExportResponse{URL: url, Key: key, Rows: rows, ExpiresAt: now.Add(expires)})
}
