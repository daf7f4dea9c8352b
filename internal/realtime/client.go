package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/poll-miniapp/backend/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // token in the query authenticates the viewer
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrNotOwner is returned by an OwnerCheck when the quiz belongs to someone else or does not exist.
var ErrNotOwner = errors.New("not quiz owner")

// TokenValidator resolves an access token to an account id.
type TokenValidator func(token string) (uuid.UUID, error)

// OwnerCheck reports nil when accountID owns quizID.
type OwnerCheck func(ctx context.Context, quizID, accountID uuid.UUID) error

// Client is a single viewer connection watching one quiz.
type Client struct {
	ID        string
	QuizID    uuid.UUID
	AccountID uuid.UUID
	hub       *Hub
	conn      *websocket.Conn
	send      chan WSMessage
	done      chan struct{}
}

// ServeWs upgrades GET /ws?quiz_id=&token= and streams the quiz's events to the owner.
func ServeWs(hub *Hub, validate TokenValidator, owns OwnerCheck, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		quizIDStr := c.Query("quiz_id")
		token := c.Query("token")
		if quizIDStr == "" || token == "" {
			response.BadRequest(c, "quiz_id and token required")
			return
		}
		quizID, err := uuid.Parse(quizIDStr)
		if err != nil {
			response.BadRequest(c, "invalid quiz_id")
			return
		}
		accountID, err := validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		if err := owns(c.Request.Context(), quizID, accountID); err != nil {
			if errors.Is(err, ErrNotOwner) {
				response.NotFound(c, "quiz not found")
				return
			}
			logger.Error("ws owner check", zap.Error(err))
			response.Internal(c, "failed to load quiz")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := &Client{
			ID:        uuid.NewString(),
			QuizID:    quizID,
			AccountID: accountID,
			hub:       hub,
			conn:      conn,
			send:      make(chan WSMessage, 64),
			done:      make(chan struct{}),
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// readPump only keeps the heartbeat alive; viewers do not send events.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		close(c.done)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
