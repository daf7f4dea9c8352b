package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poll-miniapp/backend/config"
	"github.com/poll-miniapp/backend/internal/models"
	"github.com/poll-miniapp/backend/pkg/response"
	"github.com/poll-miniapp/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"display_name"`
	Register    *int   `json:"register"`
	IsProfessor bool   `json:"is_professor"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response. The refresh token travels only in the cookie.
type TokenResponse struct {
	Access    string               `json:"access"`
	ExpiresAt time.Time            `json:"expires_at"`
	User      models.AccountPublic `json:"user"`
}

// Accounts is the account storage the handler needs.
type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, p CreateAccountParams) (*models.Account, error)
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   Accounts
	jwt    *JWTService
	cookie config.CookieConfig
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo Accounts, jwt *JWTService, cookie config.CookieConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, cookie: cookie, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	acc, err := h.repo.Create(c.Request.Context(), CreateAccountParams{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Register:     req.Register,
		IsProfessor:  req.IsProfessor,
	})
	if errors.Is(err, ErrEmailTaken) {
		response.Conflict(c, "email already registered")
		return
	}
	if err != nil {
		h.logger.Error("create account", zap.Error(err))
		response.Internal(c, "failed to create account")
		return
	}

	h.issue(c, http.StatusCreated, acc)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	acc, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil || !acc.IsActive || !utils.CheckPassword(req.Password, acc.PasswordHash) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	h.issue(c, http.StatusOK, acc)
}

// Refresh handles POST /auth/token/refresh. It reads the refresh cookie and rotates the pair.
func (h *Handler) Refresh(c *gin.Context) {
	raw, err := c.Cookie(h.cookie.Name)
	if err != nil || raw == "" {
		response.Unauthorized(c, "missing refresh token")
		return
	}
	claims, err := h.jwt.Validate(raw, TokenRefresh)
	if err != nil {
		h.clearCookie(c)
		response.Unauthorized(c, "invalid or expired refresh token")
		return
	}
	acc, err := h.repo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil || !acc.IsActive {
		h.clearCookie(c)
		response.Unauthorized(c, "account not available")
		return
	}
	h.issue(c, http.StatusOK, acc)
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	h.clearCookie(c)
	response.NoContent(c)
}

func (h *Handler) issue(c *gin.Context, status int, acc *models.Account) {
	pair, err := h.jwt.IssuePair(acc)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	h.setCookie(c, pair.Refresh, int(h.jwt.RefreshTTL().Seconds()))
	c.JSON(status, response.Body{Success: true, Data: TokenResponse{
		Access:    pair.Access,
		ExpiresAt: pair.AccessExpiresAt,
		User:      acc.ToPublic(),
	}})
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(sameSite(h.cookie.SameSite))
	c.SetCookie(h.cookie.Name, value, maxAge, h.cookie.Path, "", h.cookie.Secure, true)
}

func (h *Handler) clearCookie(c *gin.Context) {
	h.setCookie(c, "", -1)
}

func sameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
