package webhook

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/poll-miniapp/backend/internal/telegram"
)

// SecretHeader carries the secret_token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Handler is the gin endpoint Telegram posts updates to.
type Handler struct {
	router *Router
	secret string
	logger *zap.Logger
}

// NewHandler creates the webhook endpoint. An empty secret disables the header check.
func NewHandler(router *Router, secret string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{router: router, secret: secret, logger: logger}
}

// Receive handles POST /telegram/webhook. It always answers 200: Telegram redelivers
// on anything else.
func (h *Handler) Receive(c *gin.Context) {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(SecretHeader)), []byte(h.secret)) != 1 {
		h.logger.Warn("webhook secret mismatch", zap.String("client_ip", c.ClientIP()))
		reply(c, result(StatusOK))
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		reply(c, result(StatusOK))
		return
	}
	u, err := telegram.ParseUpdate(body)
	if err != nil {
		h.logger.Debug("unparseable update", zap.Error(err))
		reply(c, result(StatusOK))
		return
	}
	reply(c, h.router.Handle(c.Request.Context(), u))
}

func reply(c *gin.Context, r Result) {
	c.JSON(http.StatusOK, gin.H{"data": r})
}
