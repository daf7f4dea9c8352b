package quizzes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poll-miniapp/backend/internal/dispatch"
	"github.com/poll-miniapp/backend/internal/middleware"
	"github.com/poll-miniapp/backend/internal/models"
	"github.com/poll-miniapp/backend/internal/telegram"
)

type fakeRunner struct {
	batches  []dispatch.Batch
	manifest *dispatch.Manifest
	err      error
}

func (f *fakeRunner) Run(_ context.Context, b dispatch.Batch) (*dispatch.Manifest, error) {
	f.batches = append(f.batches, b)
	return f.manifest, f.err
}

type fakeScheduler struct {
	batch dispatch.Batch
	at    time.Time
}

func (f *fakeScheduler) ScheduleDispatch(_ context.Context, b dispatch.Batch, at time.Time) (string, error) {
	f.batch, f.at = b, at
	return "job-1", nil
}

type fakePolls struct{ err error }

func (f fakePolls) SendRegularPoll(context.Context, string, string, []string, bool) (*telegram.SentPoll, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &telegram.SentPoll{MessageID: 9, PollID: "p9"}, nil
}

type fakeStore struct{ quizzes map[uuid.UUID]*models.Quiz }

func (f fakeStore) ListByOwner(_ context.Context, owner uuid.UUID) ([]models.Quiz, error) {
	list := []models.Quiz{}
	for _, q := range f.quizzes {
		if q.OwnerID == owner {
			list = append(list, *q)
		}
	}
	return list, nil
}

func (f fakeStore) GetOwned(_ context.Context, id, owner uuid.UUID) (*models.Quiz, error) {
	if q, ok := f.quizzes[id]; ok && q.OwnerID == owner {
		return q, nil
	}
	return nil, ErrNotFound
}

func (f fakeStore) DeleteOwned(_ context.Context, id, owner uuid.UUID) error {
	if q, ok := f.quizzes[id]; ok && q.OwnerID == owner {
		delete(f.quizzes, id)
		return nil
	}
	return ErrNotFound
}

var caller = uuid.New()

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextUserID, caller) })
	r.POST("/send-quiz", h.SendQuiz)
	r.POST("/send-poll", h.SendPoll)
	r.GET("/quizzes", h.List)
	r.GET("/quizzes/:id", h.Get)
	r.DELETE("/quizzes/:id", h.Delete)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const quizBody = `{"chat_id":-100200,"questions":[{"question":"2+2?","options":["3","4"],"correct_option_id":1}]%s}`

func TestSendQuizImmediate(t *testing.T) {
	runner := &fakeRunner{manifest: &dispatch.Manifest{
		QuizID:   uuid.New(),
		Created:  []dispatch.Created{{Index: 0, QuestionID: uuid.New(), PollID: "poll-1"}},
		Failures: []dispatch.Failure{},
	}}
	h := NewHandler(fakeStore{}, runner, nil, fakePolls{}, time.UTC, time.Second, nil)
	w := do(newRouter(h), http.MethodPost, "/send-quiz", strings.Replace(quizBody, "%s", "", 1))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, runner.batches, 1)
	b := runner.batches[0]
	assert.Equal(t, caller, b.OwnerID)
	assert.Equal(t, "-100200", b.ChatID)
	assert.Contains(t, w.Body.String(), "poll-1")
}

func TestSendQuizAllFailed(t *testing.T) {
	runner := &fakeRunner{manifest: &dispatch.Manifest{
		Created:  []dispatch.Created{},
		Failures: []dispatch.Failure{{Index: 0, Question: "2+2?", Error: "chat not found"}},
	}}
	h := NewHandler(fakeStore{}, runner, nil, fakePolls{}, time.UTC, time.Second, nil)
	w := do(newRouter(h), http.MethodPost, "/send-quiz", strings.Replace(quizBody, "%s", "", 1))

	require.Equal(t, http.StatusBadGateway, w.Code)
	var body struct {
		Success bool              `json:"success"`
		Data    dispatch.Manifest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.Len(t, body.Data.Failures, 1)
	assert.Equal(t, "chat not found", body.Data.Failures[0].Error)
}

func TestSendQuizScheduled(t *testing.T) {
	runner := &fakeRunner{}
	sched := &fakeScheduler{}
	h := NewHandler(fakeStore{}, runner, sched, fakePolls{}, time.UTC, time.Second, nil)
	h.now = func() time.Time { return time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC) }

	w := do(newRouter(h), http.MethodPost, "/send-quiz",
		strings.Replace(quizBody, "%s", `,"schedule_date":"2024-05-10","schedule_time":"09:00"`, 1))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Empty(t, runner.batches)
	assert.Equal(t, time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC), sched.at)
	assert.Equal(t, "-100200", sched.batch.ChatID)
	assert.Contains(t, w.Body.String(), "job-1")

	t.Run("past schedule runs now", func(t *testing.T) {
		runner.manifest = &dispatch.Manifest{Created: []dispatch.Created{{}}}
		w := do(newRouter(h), http.MethodPost, "/send-quiz",
			strings.Replace(quizBody, "%s", `,"schedule_date":"2024-05-10","schedule_time":"07:00"`, 1))
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Len(t, runner.batches, 1)
	})

	t.Run("no scheduler", func(t *testing.T) {
		h := NewHandler(fakeStore{}, runner, nil, fakePolls{}, time.UTC, time.Second, nil)
		h.now = func() time.Time { return time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC) }
		w := do(newRouter(h), http.MethodPost, "/send-quiz",
			strings.Replace(quizBody, "%s", `,"schedule_date":"2024-05-10","schedule_time":"09:00"`, 1))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestSendQuizValidation(t *testing.T) {
	h := NewHandler(fakeStore{}, &fakeRunner{}, nil, fakePolls{}, time.UTC, time.Second, nil)
	r := newRouter(h)
	tests := []struct {
		name string
		body string
	}{
		{"no questions", `{"chat_id":"1","questions":[]}`},
		{"one option", `{"chat_id":"1","questions":[{"question":"q","options":["a"],"correct_option_id":0}]}`},
		{"key out of range", `{"chat_id":"1","questions":[{"question":"q","options":["a","b"],"correct_option_id":5}]}`},
		{"missing chat", `{"questions":[{"question":"q","options":["a","b"],"correct_option_id":0}]}`},
		{"half schedule", strings.Replace(quizBody, "%s", `,"schedule_date":"2024-05-10"`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/send-quiz", tt.body).Code)
		})
	}
}

func TestSendPoll(t *testing.T) {
	body := `{"chat_id":"-1","question":"Lunch?","options":["pizza","sushi"]}`
	h := NewHandler(fakeStore{}, &fakeRunner{}, nil, fakePolls{}, time.UTC, time.Second, nil)
	w := do(newRouter(h), http.MethodPost, "/send-poll", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"poll_id":"p9"`)

	h = NewHandler(fakeStore{}, &fakeRunner{}, nil, fakePolls{err: errors.New("forbidden")}, time.UTC, time.Second, nil)
	assert.Equal(t, http.StatusBadGateway, do(newRouter(h), http.MethodPost, "/send-poll", body).Code)
}

func TestQuizCRUD(t *testing.T) {
	mine := &models.Quiz{ID: uuid.New(), OwnerID: caller, Title: "Mine"}
	theirs := &models.Quiz{ID: uuid.New(), OwnerID: uuid.New(), Title: "Theirs"}
	store := fakeStore{quizzes: map[uuid.UUID]*models.Quiz{mine.ID: mine, theirs.ID: theirs}}
	r := newRouter(NewHandler(store, &fakeRunner{}, nil, fakePolls{}, time.UTC, time.Second, nil))

	w := do(r, http.MethodGet, "/quizzes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Mine")
	assert.NotContains(t, w.Body.String(), "Theirs")

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/quizzes/"+mine.ID.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/quizzes/"+theirs.ID.String(), "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/quizzes/nope", "").Code)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/quizzes/"+theirs.ID.String(), "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/quizzes/"+mine.ID.String(), "").Code)
	assert.Len(t, store.quizzes, 1)
}
