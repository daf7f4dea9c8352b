package groups

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poll-miniapp/backend/internal/auth"
	"github.com/poll-miniapp/backend/internal/middleware"
	"github.com/poll-miniapp/backend/internal/models"
	"github.com/poll-miniapp/backend/internal/telegram"
	"github.com/poll-miniapp/backend/pkg/response"
)

// Store is the group persistence the handler needs.
type Store interface {
	Bind(ctx context.Context, accountID uuid.UUID, chatID, title string) (*models.Group, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Group, error)
}

// AccountFinder resolves linked accounts.
type AccountFinder interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error)
}

// BindRequest is the body for POST /bind-group.
type BindRequest struct {
	TelegramID int64           `json:"telegram_id" binding:"required"`
	ChatID     telegram.ChatID `json:"chat_id" binding:"required"`
	ChatTitle  string          `json:"chat_title"`
}

// Handler serves the group binding endpoints.
type Handler struct {
	store    Store
	accounts AccountFinder
	logger   *zap.Logger
}

// NewHandler creates a groups handler.
func NewHandler(store Store, accounts AccountFinder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, accounts: accounts, logger: logger}
}

// Bind handles POST /bind-group. The Telegram identity must be linked to the caller.
func (h *Handler) Bind(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req BindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	acc, err := h.accounts.GetByTelegramID(c.Request.Context(), req.TelegramID)
	if errors.Is(err, auth.ErrNotFound) {
		response.NotFound(c, "user_not_linked")
		return
	}
	if err != nil {
		response.Internal(c, "failed to resolve account")
		return
	}
	if acc.ID != userID {
		response.Forbidden(c, "telegram account is linked to another user")
		return
	}
	g, err := h.store.Bind(c.Request.Context(), acc.ID, string(req.ChatID), strings.TrimSpace(req.ChatTitle))
	if err != nil {
		h.logger.Error("bind group", zap.String("chat_id", string(req.ChatID)), zap.Error(err))
		response.Internal(c, "failed to bind group")
		return
	}
	response.OK(c, g)
}

// List handles GET /user-groups.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.store.ListByAccount(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list groups")
		return
	}
	response.OK(c, list)
}
