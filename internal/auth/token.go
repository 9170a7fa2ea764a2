package auth

import (
	"errors"
	"fmt"
	"time"

	"videotube/internal/config"
	"videotube/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	guuid "github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrMissingKey   = errors.New("token signing key is not configured")
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

type AccessClaims struct {
	UserID   uuid.UUID `json:"_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Fullname string    `json:"fullname"`
	Kind     Kind      `json:"typ"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID uuid.UUID `json:"_id"`
	Kind   Kind      `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies both token kinds. Access and refresh tokens
// use separate HMAC keys, so neither can stand in for the other.
type TokenManager struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*TokenManager)

// WithClock replaces time.Now for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) {
		m.now = now
	}
}

func NewTokenManager(cfg config.Auth, opts ...Option) *TokenManager {
	m := &TokenManager{
		accessKey:  []byte(cfg.AccessTokenSecret),
		refreshKey: []byte(cfg.RefreshTokenSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *TokenManager) registered(ttl time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		ID:        guuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (m *TokenManager) IssueAccess(user models.User) (string, error) {
	const op = "auth.IssueAccess"

	claims := &AccessClaims{
		UserID:           user.ID,
		Username:         user.Username,
		Email:            user.Email,
		Fullname:         user.Fullname,
		Kind:             KindAccess,
		RegisteredClaims: m.registered(m.accessTTL),
	}

	token, err := sign(claims, m.accessKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

func (m *TokenManager) IssueRefresh(userID uuid.UUID) (string, error) {
	const op = "auth.IssueRefresh"

	claims := &RefreshClaims{
		UserID:           userID,
		Kind:             KindRefresh,
		RegisteredClaims: m.registered(m.refreshTTL),
	}

	token, err := sign(claims, m.refreshKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

func (m *TokenManager) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	const op = "auth.VerifyAccess"

	claims := &AccessClaims{}
	if err := m.parse(tokenStr, m.accessKey, claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if claims.Kind != KindAccess || claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

func (m *TokenManager) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	const op = "auth.VerifyRefresh"

	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, m.refreshKey, claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if claims.Kind != KindRefresh || claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

func sign(claims jwt.Claims, key []byte) (string, error) {
	if len(key) == 0 {
		return "", ErrMissingKey
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

func (m *TokenManager) parse(tokenStr string, key []byte, claims jwt.Claims) error {
	if len(key) == 0 {
		return ErrMissingKey
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}
