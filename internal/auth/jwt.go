package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/poll-miniapp/backend/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Token types carried in Claims.Type.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// Claims holds JWT claims including account ID and staff flag.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Staff  bool      `json:"staff,omitempty"`
	Type   string    `json:"typ"`
	jwt.RegisteredClaims
}

// Pair is the access/refresh pair issued on every successful login, registration or refresh.
type Pair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// JWTService handles token generation and validation.
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewJWTService creates a JWT service.
func NewJWTService(secret string, accessTTL, refreshTTL time.Duration) *JWTService {
	return &JWTService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// RefreshTTL is the lifetime of refresh tokens, used for the cookie max-age.
func (s *JWTService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssuePair signs a fresh access and refresh token for the account.
func (s *JWTService) IssuePair(a *models.Account) (Pair, error) {
	now := s.now()
	p := Pair{AccessExpiresAt: now.Add(s.accessTTL), RefreshExpiresAt: now.Add(s.refreshTTL)}
	var err error
	if p.Access, err = s.sign(a, TokenAccess, now, p.AccessExpiresAt); err != nil {
		return Pair{}, err
	}
	if p.Refresh, err = s.sign(a, TokenRefresh, now, p.RefreshExpiresAt); err != nil {
		return Pair{}, err
	}
	return p, nil
}

func (s *JWTService) sign(a *models.Account, typ string, now, exp time.Time) (string, error) {
	claims := Claims{
		UserID: a.ID,
		Email:  a.Email,
		Staff:  a.IsStaff,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a JWT of the given type, returning claims or error.
func (s *JWTService) Validate(tokenString, typ string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != typ {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
