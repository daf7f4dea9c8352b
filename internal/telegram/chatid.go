package telegram

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ChatID is a chat identifier accepted from API clients either as a JSON string or a
// JSON number. It is kept as text so supergroup ids never pass through a float.
type ChatID string

// UnmarshalJSON implements json.Unmarshaler.
func (c *ChatID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ChatID(strings.TrimSpace(s))
		return nil
	}
	if _, err := strconv.ParseInt(string(b), 10, 64); err != nil {
		return errors.New("chat_id must be an integer or a string")
	}
	*c = ChatID(b)
	return nil
}

// Int64 returns the numeric form, for calls that need it.
func (c ChatID) Int64() (int64, error) {
	return strconv.ParseInt(string(c), 10, 64)
}
