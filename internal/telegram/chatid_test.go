package telegram

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatIDUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    ChatID
		wantErr bool
	}{
		{`-1001234567890123`, "-1001234567890123", false},
		{`"-100123"`, "-100123", false},
		{`" @channel "`, "@channel", false},
		{`null`, "", false},
		{`1.5`, "", true},
		{`true`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var v struct {
				ChatID ChatID `json:"chat_id"`
			}
			err := json.Unmarshal([]byte(`{"chat_id":`+tt.in+`}`), &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.ChatID)
		})
	}

	n, err := ChatID("-42").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(-42), n)
}
