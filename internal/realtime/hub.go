package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Publisher publishes quiz events to other instances.
type Publisher interface {
	PublishQuizEvent(quizID uuid.UUID, event string, payload []byte) error
}

// Subscriber subscribes to a quiz channel and invokes handler for incoming events.
type Subscriber interface {
	SubscribeQuiz(quizID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains quiz_id -> set of viewer connections and broadcasts events to them.
// With Redis configured, events go through pub/sub so every instance delivers them once.
type Hub struct {
	quizzes map[uuid.UUID]map[string]*Client
	subs    map[uuid.UUID]func()
	mu      sync.RWMutex
	logger  *zap.Logger
	pub     Publisher
	sub     Subscriber
}

// NewHub creates a hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		quizzes: make(map[uuid.UUID]map[string]*Client),
		subs:    make(map[uuid.UUID]func()),
		logger:  logger,
		pub:     pub,
		sub:     sub,
	}
}

// Register adds a viewer to a quiz room, subscribing to the quiz channel for the first one.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.quizzes[c.QuizID] == nil {
		h.quizzes[c.QuizID] = make(map[string]*Client)
		if h.sub != nil {
			quizID := c.QuizID
			cancel, err := h.sub.SubscribeQuiz(quizID, func(event string, payload []byte) {
				h.Broadcast(quizID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("subscribe quiz channel", zap.String("quiz_id", quizID.String()), zap.Error(err))
			} else {
				h.subs[quizID] = cancel
			}
		}
	}
	h.quizzes[c.QuizID][c.ID] = c
	h.logger.Debug("viewer joined", zap.String("client_id", c.ID), zap.String("quiz_id", c.QuizID.String()))
}

// Unregister removes a viewer. The channel subscription ends with the last one.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.quizzes[c.QuizID]
	if !ok {
		return
	}
	delete(m, c.ID)
	if len(m) == 0 {
		delete(h.quizzes, c.QuizID)
		if cancel, ok := h.subs[c.QuizID]; ok {
			cancel()
			delete(h.subs, c.QuizID)
		}
	}
	h.logger.Debug("viewer left", zap.String("client_id", c.ID), zap.String("quiz_id", c.QuizID.String()))
}

// Broadcast sends an event to the viewers of a quiz on this instance.
func (h *Hub) Broadcast(quizID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.quizzes[quizID] {
		select {
		case c.send <- msg:
		default:
			// slow viewer, drop
		}
	}
}

// Publish delivers an event to viewers on every instance. Without a Publisher it is a local Broadcast.
func (h *Hub) Publish(quizID uuid.UUID, event string, payload interface{}) error {
	if h.pub == nil {
		h.Broadcast(quizID, event, payload)
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return h.pub.PublishQuizEvent(quizID, event, data)
}

// Viewers returns the number of connected viewers of a quiz on this instance.
func (h *Hub) Viewers(quizID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.quizzes[quizID])
}
