package linking

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poll-miniapp/backend/config"
	"github.com/poll-miniapp/backend/internal/auth"
	"github.com/poll-miniapp/backend/internal/middleware"
	"github.com/poll-miniapp/backend/internal/models"
	"github.com/poll-miniapp/backend/pkg/response"
)

// Store is the persistence used by the HTTP endpoints.
type Store interface {
	CreateToken(ctx context.Context, accountID uuid.UUID, ttl time.Duration) (*models.LinkToken, error)
	AssignTelegramID(ctx context.Context, accountID uuid.UUID, telegramID int64) (Outcome, error)
	ClearTelegramID(ctx context.Context, accountID uuid.UUID) error
}

// LinkResponse is returned by POST /telegram/link.
type LinkResponse struct {
	DeepLink  string    `json:"deep_link"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AssignRequest is the body for PUT /admin/accounts/:id/telegram.
type AssignRequest struct {
	TelegramID int64 `json:"telegram_id" binding:"required"`
}

// Handler serves link-token issuance and the staff linking endpoints.
type Handler struct {
	store  Store
	cfg    config.TelegramConfig
	logger *zap.Logger
}

// NewHandler creates a linking handler.
func NewHandler(store Store, cfg config.TelegramConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, cfg: cfg, logger: logger}
}

// CreateLink handles POST /telegram/link.
func (h *Handler) CreateLink(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	t, err := h.store.CreateToken(c.Request.Context(), userID, h.cfg.DeepLinkTTL)
	if err != nil {
		h.logger.Error("create link token", zap.String("account_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to create link token")
		return
	}
	response.Created(c, LinkResponse{
		DeepLink:  h.cfg.DeepLink(t.Token),
		Token:     t.Token,
		ExpiresAt: t.ExpiresAt,
	})
}

// AssignTelegram handles PUT /admin/accounts/:id/telegram.
func (h *Handler) AssignTelegram(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid account id")
		return
	}
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	outcome, err := h.store.AssignTelegramID(c.Request.Context(), accountID, req.TelegramID)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		response.NotFound(c, "account not found")
		return
	case err != nil:
		h.logger.Error("assign telegram id", zap.String("account_id", accountID.String()), zap.Error(err))
		response.Internal(c, "failed to assign telegram id")
		return
	}
	if outcome != OutcomeLinked {
		response.Conflict(c, string(outcome))
		return
	}
	response.OK(c, gin.H{"account_id": accountID, "telegram_id": req.TelegramID, "status": outcome})
}

// ClearTelegram handles DELETE /admin/accounts/:id/telegram.
func (h *Handler) ClearTelegram(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid account id")
		return
	}
	if err := h.store.ClearTelegramID(c.Request.Context(), accountID); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			response.NotFound(c, "account not found")
			return
		}
		response.Internal(c, "failed to clear telegram id")
		return
	}
	response.NoContent(c)
}
