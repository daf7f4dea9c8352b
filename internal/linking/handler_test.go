package linking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poll-miniapp/backend/config"
	"github.com/poll-miniapp/backend/internal/auth"
	"github.com/poll-miniapp/backend/internal/middleware"
	"github.com/poll-miniapp/backend/internal/models"
)

// memStore keeps accounts and tokens in memory and applies the same checks as Repository.
type memStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
	tokens   []*models.LinkToken
}

func newMemStore(accounts ...*models.Account) *memStore {
	m := &memStore{accounts: make(map[uuid.UUID]*models.Account)}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *memStore) CreateToken(_ context.Context, accountID uuid.UUID, ttl time.Duration) (*models.LinkToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &models.LinkToken{ID: uuid.New(), AccountID: accountID, Token: "tok-" + uuid.NewString(),
		CreatedAt: time.Now(), ExpiresAt: time.Now().Add(ttl)}
	m.tokens = append(m.tokens, t)
	return t, nil
}

func (m *memStore) AssignTelegramID(_ context.Context, accountID uuid.UUID, telegramID int64) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.accounts[accountID]
	if !ok {
		return "", auth.ErrNotFound
	}
	var holder *models.Account
	for _, a := range m.accounts {
		if a.TelegramID != nil && *a.TelegramID == telegramID {
			holder = a
		}
	}
	if o := CheckAssignment(owner, telegramID, holder); o != OutcomeLinked {
		return o, nil
	}
	owner.TelegramID = &telegramID
	return OutcomeLinked, nil
}

func (m *memStore) ClearTelegramID(_ context.Context, accountID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return auth.ErrNotFound
	}
	a.TelegramID = nil
	return nil
}

func newRouter(store Store, caller uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, config.TelegramConfig{BotUsername: "PollsICompBot", DeepLinkTTL: 15 * time.Minute}, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextUserID, caller) })
	r.POST("/telegram/link", h.CreateLink)
	r.PUT("/admin/accounts/:id/telegram", h.AssignTelegram)
	r.DELETE("/admin/accounts/:id/telegram", h.ClearTelegram)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateLink(t *testing.T) {
	caller := uuid.New()
	store := newMemStore(&models.Account{ID: caller})
	w := do(newRouter(store, caller), http.MethodPost, "/telegram/link", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Data LinkResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, store.tokens, 1)
	tok := store.tokens[0]
	assert.Equal(t, caller, tok.AccountID)
	assert.Equal(t, tok.Token, body.Data.Token)
	assert.Equal(t, "https://t.me/PollsICompBot?start="+tok.Token, body.Data.DeepLink)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), body.Data.ExpiresAt, 5*time.Second)

	// a second link does not revoke the first
	require.Equal(t, http.StatusCreated, do(newRouter(store, caller), http.MethodPost, "/telegram/link", "").Code)
	assert.Len(t, store.tokens, 2)
	assert.Nil(t, store.tokens[0].UsedAt)
}

func TestAssignTelegram(t *testing.T) {
	a := &models.Account{ID: uuid.New()}
	b := &models.Account{ID: uuid.New(), TelegramID: int64p(555)}
	store := newMemStore(a, b)
	r := newRouter(store, uuid.New())

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"id held by other account", "/admin/accounts/" + a.ID.String() + "/telegram", `{"telegram_id":555}`, http.StatusConflict},
		{"assign free id", "/admin/accounts/" + a.ID.String() + "/telegram", `{"telegram_id":42}`, http.StatusOK},
		{"reassign is refused", "/admin/accounts/" + a.ID.String() + "/telegram", `{"telegram_id":43}`, http.StatusConflict},
		{"unknown account", "/admin/accounts/" + uuid.NewString() + "/telegram", `{"telegram_id":1}`, http.StatusNotFound},
		{"bad id", "/admin/accounts/nope/telegram", `{"telegram_id":1}`, http.StatusBadRequest},
		{"missing body", "/admin/accounts/" + a.ID.String() + "/telegram", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(r, http.MethodPut, tt.path, tt.body).Code)
		})
	}
	require.NotNil(t, a.TelegramID)
	assert.Equal(t, int64(42), *a.TelegramID)
	assert.Equal(t, int64(555), *b.TelegramID)

	w := do(r, http.MethodPut, "/admin/accounts/"+a.ID.String()+"/telegram", `{"telegram_id":43}`)
	assert.Contains(t, w.Body.String(), string(OutcomeUserAlreadyLinked))

	require.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/admin/accounts/"+a.ID.String()+"/telegram", "").Code)
	assert.Nil(t, a.TelegramID)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPut, "/admin/accounts/"+a.ID.String()+"/telegram", `{"telegram_id":43}`).Code)
}
