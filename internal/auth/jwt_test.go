package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poll-miniapp/backend/internal/models"
)

func TestIssuePairRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 15*time.Minute, 14*24*time.Hour)
	acc := &models.Account{ID: uuid.New(), Email: "prof@example.com", IsStaff: true}

	pair, err := svc.IssuePair(acc)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Access, pair.Refresh)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	claims, err := svc.Validate(pair.Access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, claims.UserID)
	assert.Equal(t, acc.Email, claims.Email)
	assert.True(t, claims.Staff)

	_, err = svc.Validate(pair.Refresh, TokenRefresh)
	require.NoError(t, err)
}

func TestValidateRejects(t *testing.T) {
	svc := NewJWTService("secret", time.Minute, time.Hour)
	acc := &models.Account{ID: uuid.New(), Email: "a@b.c"}
	pair, err := svc.IssuePair(acc)
	require.NoError(t, err)

	t.Run("wrong type", func(t *testing.T) {
		_, err := svc.Validate(pair.Access, TokenRefresh)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService("other", time.Minute, time.Hour)
		_, err := other.Validate(pair.Access, TokenAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewJWTService("secret", time.Minute, time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		_, err := later.Validate(pair.Access, TokenAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("not-a-jwt", TokenAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
