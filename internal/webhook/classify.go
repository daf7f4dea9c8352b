// Package webhook turns inbound Telegram updates into status tokens. Every update is
// classified into exactly one kind, in a fixed order, before any handler runs.
package webhook

import (
	"strings"

	"github.com/poll-miniapp/backend/internal/telegram"
)

// Kind is the category an update was classified into.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindCommand
	KindMembership
	KindPollAnswer
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindMembership:
		return "membership"
	case KindPollAnswer:
		return "poll_answer"
	}
	return "unrecognized"
}

// Command is a slash command taken from message text. Name is lowercased without the
// leading slash or @botname suffix; Arg is the rest of the text, trimmed.
type Command struct {
	Name string
	Arg  string
	Chat telegram.Chat
	From *telegram.User
}

// Classified is the tagged union produced by Classify. Exactly one payload field is set,
// matching Kind; none for KindUnrecognized.
type Classified struct {
	Kind       Kind
	Command    *Command
	Membership *telegram.ChatMemberUpdated
	PollAnswer *telegram.PollAnswer
}

// Classify picks the first matching kind in order: command, membership change, poll answer.
func Classify(u telegram.Update) Classified {
	if u.Message != nil {
		if cmd, ok := ParseCommand(u.Message.Text); ok {
			cmd.Chat = u.Message.Chat
			cmd.From = u.Message.From
			return Classified{Kind: KindCommand, Command: &cmd}
		}
	}
	if u.MyChatMember != nil {
		return Classified{Kind: KindMembership, Membership: u.MyChatMember}
	}
	if u.PollAnswer != nil {
		return Classified{Kind: KindPollAnswer, PollAnswer: u.PollAnswer}
	}
	return Classified{Kind: KindUnrecognized}
}

// ParseCommand splits "/name@bot arg..." into name and a single argument string.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{}, false
	}
	head, rest := text, ""
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		head, rest = text[:i], text[i+1:]
	}
	name, _, _ := strings.Cut(head[1:], "@")
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Arg: strings.TrimSpace(rest)}, true
}
