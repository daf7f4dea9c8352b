package generator

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/poll-miniapp/backend/pkg/response"
)

const (
	defaultQuestions = 5
	maxQuestions     = 20
)

// Generator drafts quizzes.
type Generator interface {
	GenerateQuiz(ctx context.Context, topic string, n int) (*Draft, error)
}

// GenerateRequest is the body for POST /quizzes/generate.
type GenerateRequest struct {
	Prompt       string `json:"prompt" binding:"required"`
	NumQuestions int    `json:"num_questions"`
}

// Handler serves quiz generation.
type Handler struct {
	gen    Generator
	logger *zap.Logger
}

// NewHandler creates a generator handler.
func NewHandler(gen Generator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{gen: gen, logger: logger}
}

// Generate handles POST /quizzes/generate.
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	n := req.NumQuestions
	if n == 0 {
		n = defaultQuestions
	}
	if n < 1 || n > maxQuestions {
		response.BadRequest(c, "num_questions must be between 1 and 20")
		return
	}
	draft, err := h.gen.GenerateQuiz(c.Request.Context(), req.Prompt, n)
	switch {
	case errors.Is(err, ErrNotConfigured):
		response.ServiceUnavailable(c, err.Error())
	case err != nil:
		h.logger.Warn("quiz generation failed", zap.Error(err))
		response.BadGateway(c, "quiz generation failed", nil)
	default:
		response.OK(c, draft)
	}
}
