package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poll-miniapp/backend/config"
)

func completionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Contains(t, req.Messages[1].Content, "3 questions")
		}

		w.WriteHeader(status)
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newService(url string) *Service {
	return NewService(config.GroqConfig{APIKey: "key", APIURL: url + "/", Model: "test-model"})
}

func TestGenerateQuiz(t *testing.T) {
	content := "```json\n" + `{"title":"Go","questions":[
		{"question_text":"Zero value of int?","options":["0","1","nil","-1"],"correct_option_index":0},
		{"question_text":"Broken","options":["only one"],"correct_option_index":0},
		{"question_text":"Out of range","options":["a","b"],"correct_option_index":5}
	]}` + "\n```"
	srv := completionServer(t, http.StatusOK, content)

	d, err := newService(srv.URL).GenerateQuiz(context.Background(), "Go basics", 3)
	require.NoError(t, err)
	assert.Equal(t, "Go", d.Title)
	require.Len(t, d.Questions, 1)
	assert.Equal(t, "Zero value of int?", d.Questions[0].Question)
	assert.Equal(t, 2, d.Dropped)
}

func TestGenerateQuizErrors(t *testing.T) {
	_, err := NewService(config.GroqConfig{}).GenerateQuiz(context.Background(), "x", 3)
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := completionServer(t, http.StatusTooManyRequests, "")
	_, err = newService(srv.URL).GenerateQuiz(context.Background(), "x", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	srv = completionServer(t, http.StatusOK, "not json")
	_, err = newService(srv.URL).GenerateQuiz(context.Background(), "x", 3)
	assert.ErrorContains(t, err, "invalid JSON")

	srv = completionServer(t, http.StatusOK, `{"title":"t","questions":[]}`)
	_, err = newService(srv.URL).GenerateQuiz(context.Background(), "x", 3)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

type fakeGenerator struct {
	n   int
	err error
}

func (f *fakeGenerator) GenerateQuiz(_ context.Context, _ string, n int) (*Draft, error) {
	f.n = n
	if f.err != nil {
		return nil, f.err
	}
	return &Draft{Title: "t"}, nil
}

func TestGenerateHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name  string
		body  string
		err   error
		code  int
		wantN int
	}{
		{"default count", `{"prompt":"go"}`, nil, http.StatusOK, defaultQuestions},
		{"explicit count", `{"prompt":"go","num_questions":3}`, nil, http.StatusOK, 3},
		{"too many", `{"prompt":"go","num_questions":50}`, nil, http.StatusBadRequest, 0},
		{"missing prompt", `{}`, nil, http.StatusBadRequest, 0},
		{"not configured", `{"prompt":"go"}`, ErrNotConfigured, http.StatusServiceUnavailable, defaultQuestions},
		{"upstream failure", `{"prompt":"go"}`, errors.New("boom"), http.StatusBadGateway, defaultQuestions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{err: tt.err}
			r := gin.New()
			r.POST("/generate", NewHandler(gen, nil).Generate)
			req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Equal(t, tt.wantN, gen.n)
		})
	}
}
