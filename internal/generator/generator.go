// Package generator drafts quiz questions with an OpenAI-compatible chat completion API (Groq).
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/poll-miniapp/backend/config"
	"github.com/poll-miniapp/backend/internal/dispatch"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("quiz generation is not configured")
	// ErrNoQuestions is returned when the model produced nothing usable.
	ErrNoQuestions = errors.New("model returned no valid questions")
)

// Draft is a generated quiz ready to be reviewed and sent.
type Draft struct {
	Title     string                  `json:"title"`
	Questions []dispatch.QuestionSpec `json:"questions"`
	Dropped   int                     `json:"dropped"`
}

// Service calls the completion API.
type Service struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	model      string
}

// NewService creates a generator from cfg.
func NewService(cfg config.GroqConfig) *Service {
	return &Service{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     cfg.APIKey,
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		model:      cfg.Model,
	}
}

// IsAvailable reports whether an API key is configured.
func (s *Service) IsAvailable() bool {
	return s.apiKey != ""
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type modelQuiz struct {
	Title     string `json:"title"`
	Questions []struct {
		QuestionText       string   `json:"question_text"`
		Options            []string `json:"options"`
		CorrectOptionIndex int      `json:"correct_option_index"`
	} `json:"questions"`
}

const systemPrompt = `You write educational quizzes. Reply with ONLY a JSON object (no markdown, no code fences) of this shape:

{
  "title": "A short title for the quiz",
  "questions": [
    {
      "question_text": "The question.",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correct_option_index": 2
    }
  ]
}

Rules:
- "options" has exactly 4 strings
- "correct_option_index" is 0 to 3
- questions are factually accurate and varied in difficulty
- write in the language of the topic`

// GenerateQuiz asks the model for n questions about topic. Questions that would be refused
// by Telegram are dropped and counted.
func (s *Service) GenerateQuiz(ctx context.Context, topic string, n int) (*Draft, error) {
	if !s.IsAvailable() {
		return nil, ErrNotConfigured
	}
	reqBody := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Create a quiz with %d questions about: %q", n, topic)},
		},
		Temperature:    0.7,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("parse API response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	var mq modelQuiz
	if err := json.Unmarshal([]byte(cleanJSONContent(chatResp.Choices[0].Message.Content)), &mq); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}
	return toDraft(mq)
}

func toDraft(mq modelQuiz) (*Draft, error) {
	d := &Draft{Title: strings.TrimSpace(mq.Title), Questions: []dispatch.QuestionSpec{}}
	for _, q := range mq.Questions {
		spec := dispatch.QuestionSpec{
			Question:        strings.TrimSpace(q.QuestionText),
			Options:         q.Options,
			CorrectOptionID: q.CorrectOptionIndex,
		}
		if spec.Validate() != nil {
			d.Dropped++
			continue
		}
		d.Questions = append(d.Questions, spec)
	}
	if len(d.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	return d, nil
}

func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
