// Package telegram holds the Bot API boundary: the inbound update shapes the
// webhook consumes and the outbound client used for notifications and polls.
package telegram

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Chat types.
const (
	ChatTypePrivate    = "private"
	ChatTypeGroup      = "group"
	ChatTypeSupergroup = "supergroup"
	ChatTypeChannel    = "channel"
)

// Chat member statuses.
const (
	MemberStatusCreator       = "creator"
	MemberStatusAdministrator = "administrator"
	MemberStatusMember        = "member"
	MemberStatusRestricted    = "restricted"
	MemberStatusLeft          = "left"
	MemberStatusKicked        = "kicked"
)

// Update is the subset of a Bot API update this service consumes.
type Update struct {
	UpdateID     int64              `json:"update_id"`
	Message      *Message           `json:"message,omitempty"`
	MyChatMember *ChatMemberUpdated `json:"my_chat_member,omitempty"`
	PollAnswer   *PollAnswer        `json:"poll_answer,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// Chat is a Telegram chat.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// IsGroup reports whether the chat is a group or supergroup.
func (c Chat) IsGroup() bool {
	return c.Type == ChatTypeGroup || c.Type == ChatTypeSupergroup
}

// IDString returns the chat id in the text form it is stored under.
func (c Chat) IDString() string {
	return strconv.FormatInt(c.ID, 10)
}

// DisplayTitle falls back to the username or id for chats without a title.
func (c Chat) DisplayTitle() string {
	switch {
	case c.Title != "":
		return c.Title
	case c.Username != "":
		return "@" + c.Username
	}
	return c.IDString()
}

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// ChatMemberUpdated reports a membership change, here only for the bot itself (my_chat_member).
type ChatMemberUpdated struct {
	Chat          Chat       `json:"chat"`
	From          User       `json:"from"`
	OldChatMember ChatMember `json:"old_chat_member"`
	NewChatMember ChatMember `json:"new_chat_member"`
}

// ChatMember is the membership record of one user in a chat.
type ChatMember struct {
	Status string `json:"status"`
	User   User   `json:"user"`
}

// PollAnswer is a non-anonymous poll vote.
type PollAnswer struct {
	PollID    string `json:"poll_id"`
	User      *User  `json:"user,omitempty"`
	OptionIDs []int  `json:"option_ids"`
}

// ParseUpdate decodes a webhook body.
func ParseUpdate(body []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(body, &u); err != nil {
		return Update{}, fmt.Errorf("decode update: %w", err)
	}
	return u, nil
}

// NormalizeUsername lowercases a username and strips a leading @.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}
