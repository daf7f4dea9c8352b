package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookServer(f *fixture, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/telegram/webhook", NewHandler(f.router, secret, nil).Receive)
	return r
}

func postUpdate(r http.Handler, body, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) Result {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data
}

func TestReceiveLinksAccount(t *testing.T) {
	f := newFixture(defaultConfig())
	prof := f.world.addAccount("prof@example.com", nil)
	f.world.addToken(prof, "abc123", testNow.Add(15*time.Minute))

	w := postUpdate(newWebhookServer(f, ""),
		`{"message":{"text":"/start abc123","chat":{"id":555,"type":"private"},"from":{"id":555}}}`, "")
	assert.JSONEq(t, `{"data":{"status":"linked"}}`, w.Body.String())
	assert.Equal(t, int64(555), *f.world.telegramID(prof))
}

func TestReceiveAnswerReportsCorrectness(t *testing.T) {
	f := newFixture(defaultConfig())
	f.world.addQuestion("poll-9", 2)

	w := postUpdate(newWebhookServer(f, ""), `{"poll_answer":{"poll_id":"poll-9","user":{"id":42},"option_ids":[2]}}`, "")
	assert.JSONEq(t, `{"data":{"status":"answer_recorded","correct":true}}`, w.Body.String())

	w = postUpdate(newWebhookServer(f, ""), `{"poll_answer":{"poll_id":"poll-9","user":{"id":42},"option_ids":[0]}}`, "")
	assert.JSONEq(t, `{"data":{"status":"answer_recorded","correct":false}}`, w.Body.String())
}

func TestReceiveAlwaysAcknowledges(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"message":`},
		{"not an object", `[1,2,3]`},
		{"empty body", ``},
		{"unrelated update", `{"update_id":7,"channel_post":{"text":"hi"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(defaultConfig())
			res := decodeResult(t, postUpdate(newWebhookServer(f, ""), tt.body, ""))
			assert.Equal(t, StatusOK, res.Status)
		})
	}
}

func TestReceiveChecksSecret(t *testing.T) {
	f := newFixture(defaultConfig())
	f.world.addQuestion("poll-1", 0)
	srv := newWebhookServer(f, "s3cret")
	body := `{"poll_answer":{"poll_id":"poll-1","user":{"id":42},"option_ids":[0]}}`

	res := decodeResult(t, postUpdate(srv, body, "wrong"))
	assert.Equal(t, StatusOK, res.Status)
	res = decodeResult(t, postUpdate(srv, body, ""))
	assert.Equal(t, StatusOK, res.Status)
	_, _, answers := f.world.counts()
	assert.Zero(t, answers)

	res = decodeResult(t, postUpdate(srv, body, "s3cret"))
	assert.Equal(t, StatusAnswerRecorded, res.Status)
}

func TestReceiveExceptionIsStill200(t *testing.T) {
	f := newFixture(defaultConfig())
	f.world.addQuestion("poll-1", 0)
	f.world.answerErr = errDatabaseDown

	res := decodeResult(t, postUpdate(newWebhookServer(f, ""), `{"poll_answer":{"poll_id":"poll-1","user":{"id":42},"option_ids":[0]}}`, ""))
	assert.Equal(t, StatusException, res.Status)
	assert.NotEmpty(t, res.Message)
}
