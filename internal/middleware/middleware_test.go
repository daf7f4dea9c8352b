package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poll-miniapp/backend/internal/auth"
	"github.com/poll-miniapp/backend/internal/models"
)

func protected(svc *auth.JWTService, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(svc)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, c.MustGet(ContextUserID).(uuid.UUID).String())
	})
	r.GET("/p", handlers...)
	return r
}

func get(r http.Handler, path, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	svc := auth.NewJWTService("secret", time.Hour, time.Hour)
	acc := &models.Account{ID: uuid.New(), Email: "a@example.com"}
	pair, err := svc.IssuePair(acc)
	require.NoError(t, err)
	r := protected(svc)

	tests := []struct {
		name  string
		path  string
		authz string
		want  int
	}{
		{"bearer", "/p", "Bearer " + pair.Access, http.StatusOK},
		{"query token", "/p?token=" + pair.Access, "", http.StatusOK},
		{"missing", "/p", "", http.StatusUnauthorized},
		{"wrong scheme", "/p", "Basic " + pair.Access, http.StatusUnauthorized},
		{"refresh token", "/p", "Bearer " + pair.Refresh, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.path, tt.authz)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, acc.ID.String(), w.Body.String())
			}
		})
	}
}

func TestRequireStaffAndEmail(t *testing.T) {
	svc := auth.NewJWTService("secret", time.Hour, time.Hour)
	staff, err := svc.IssuePair(&models.Account{ID: uuid.New(), Email: "Boss@example.com", IsStaff: true})
	require.NoError(t, err)
	plain, err := svc.IssuePair(&models.Account{ID: uuid.New(), Email: "user@example.com"})
	require.NoError(t, err)

	staffOnly := protected(svc, RequireStaff())
	assert.Equal(t, http.StatusOK, get(staffOnly, "/p", "Bearer "+staff.Access).Code)
	assert.Equal(t, http.StatusForbidden, get(staffOnly, "/p", "Bearer "+plain.Access).Code)

	listed := protected(svc, RequireEmail([]string{"boss@example.com"}))
	assert.Equal(t, http.StatusOK, get(listed, "/p", "Bearer "+staff.Access).Code)
	assert.Equal(t, http.StatusForbidden, get(listed, "/p", "Bearer "+plain.Access).Code)

	nobody := protected(svc, RequireEmail(nil))
	assert.Equal(t, http.StatusForbidden, get(nobody, "/p", "Bearer "+staff.Access).Code)
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://localhost:3000"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
