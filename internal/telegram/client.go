package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/poll-miniapp/backend/config"
)

// Poll types accepted by sendPoll.
const (
	PollTypeQuiz    = "quiz"
	PollTypeRegular = "regular"
)

// SentPoll holds the identifiers Telegram returned for a delivered poll.
// Either may be zero/empty when the response omitted them.
type SentPoll struct {
	MessageID int64
	PollID    string
}

// Client wraps the Bot API for the calls this service makes.
type Client struct {
	bot           *bot.Bot
	notifyTimeout time.Duration
	logger        *zap.Logger
}

// NewClient creates a Bot API client. It does not contact Telegram.
func NewClient(cfg config.TelegramConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []bot.Option{bot.WithSkipGetMe()}
	if cfg.APIBaseURL != "" {
		opts = append(opts, bot.WithServerURL(cfg.APIBaseURL))
	}
	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	timeout := cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{bot: b, notifyTimeout: timeout, logger: logger}, nil
}

// SendQuizPoll posts a non-anonymous quiz poll with the given correct option.
func (c *Client) SendQuizPoll(ctx context.Context, chatID, question string, options []string, correctOption int) (*SentPoll, error) {
	anonymous := false
	msg, err := c.bot.SendPoll(ctx, &bot.SendPollParams{
		ChatID:          chatID,
		Question:        question,
		Options:         pollOptions(options),
		IsAnonymous:     &anonymous,
		Type:            PollTypeQuiz,
		CorrectOptionID: correctOption,
	})
	if err != nil {
		return nil, fmt.Errorf("sendPoll: %w", err)
	}
	return sentPoll(msg), nil
}

// SendRegularPoll posts a non-anonymous regular poll.
func (c *Client) SendRegularPoll(ctx context.Context, chatID, question string, options []string, multipleAnswers bool) (*SentPoll, error) {
	anonymous := false
	msg, err := c.bot.SendPoll(ctx, &bot.SendPollParams{
		ChatID:                chatID,
		Question:              question,
		Options:               pollOptions(options),
		IsAnonymous:           &anonymous,
		Type:                  PollTypeRegular,
		AllowsMultipleAnswers: multipleAnswers,
	})
	if err != nil {
		return nil, fmt.Errorf("sendPoll: %w", err)
	}
	return sentPoll(msg), nil
}

// SendMessage posts a text message, optionally with a single web-app launch button.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, button *WebAppButton) error {
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if button != nil {
		params.ReplyMarkup = &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: button.Text, WebApp: &models.WebAppInfo{URL: button.URL}},
			}},
		}
	}
	if _, err := c.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	return nil
}

// WebAppButton is an inline keyboard button that opens the mini app.
type WebAppButton struct {
	Text string
	URL  string
}

// Notify sends a message and never fails: errors are logged and dropped.
// The call is bounded by the notify timeout and is not retried.
func (c *Client) Notify(ctx context.Context, chatID int64, text string, button *WebAppButton) {
	ctx, cancel := context.WithTimeout(ctx, c.notifyTimeout)
	defer cancel()
	if err := c.SendMessage(ctx, chatID, text, button); err != nil {
		level := zap.WarnLevel
		if errors.Is(err, context.DeadlineExceeded) {
			level = zap.InfoLevel
		}
		c.logger.Check(level, "telegram notification dropped").Write(zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func pollOptions(options []string) []models.InputPollOption {
	out := make([]models.InputPollOption, 0, len(options))
	for _, o := range options {
		out = append(out, models.InputPollOption{Text: o})
	}
	return out
}

func sentPoll(msg *models.Message) *SentPoll {
	if msg == nil {
		return &SentPoll{}
	}
	sp := &SentPoll{MessageID: int64(msg.ID)}
	if msg.Poll != nil {
		sp.PollID = msg.Poll.ID
	}
	return sp
}
