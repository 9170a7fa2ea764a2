package auth

import (
	"strings"
	"testing"
	"time"

	"videotube/internal/config"
	"videotube/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testConfig() config.Auth {
	return config.Auth{
		AccessTokenSecret:  "access-secret",
		AccessTokenTTL:     time.Hour,
		RefreshTokenSecret: "refresh-secret",
		RefreshTokenTTL:    10 * 24 * time.Hour,
	}
}

func newTestManager(t *testing.T) (*TokenManager, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewTokenManager(testConfig(), WithClock(clock.Now)), clock
}

func testUser() models.User {
	return models.User{
		ID:       uuid.Must(uuid.NewV4()),
		Username: "alice",
		Email:    "alice@example.com",
		Fullname: "Alice Liddell",
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	user := testUser()

	tok, err := m.IssueAccess(user)
	require.NoError(t, err)

	claims, err := m.VerifyAccess(tok)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice Liddell", claims.Fullname)
	assert.Equal(t, KindAccess, claims.Kind)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	id := uuid.Must(uuid.NewV4())

	tok, err := m.IssueRefresh(id)
	require.NoError(t, err)

	claims, err := m.VerifyRefresh(tok)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
}

func TestRefreshToken_UniquePerIssue(t *testing.T) {
	m, _ := newTestManager(t)
	id := uuid.Must(uuid.NewV4())

	first, err := m.IssueRefresh(id)
	require.NoError(t, err)
	second, err := m.IssueRefresh(id)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenKinds_NotInterchangeable(t *testing.T) {
	m, _ := newTestManager(t)
	user := testUser()

	access, err := m.IssueAccess(user)
	require.NoError(t, err)
	refresh, err := m.IssueRefresh(user.ID)
	require.NoError(t, err)

	_, err = m.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_KeysAreNotInterchangeable(t *testing.T) {
	m, clock := newTestManager(t)
	cfg := testConfig()
	user := testUser()

	registered := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(clock.Now()),
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}
	signWith := func(claims jwt.Claims, key string) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return tok
	}

	refreshClaims := &RefreshClaims{UserID: user.ID, Kind: KindRefresh, RegisteredClaims: registered}

	_, err := m.VerifyRefresh(signWith(refreshClaims, cfg.RefreshTokenSecret))
	require.NoError(t, err)
	_, err = m.VerifyRefresh(signWith(refreshClaims, cfg.AccessTokenSecret))
	assert.ErrorIs(t, err, ErrInvalidToken)

	accessClaims := &AccessClaims{UserID: user.ID, Username: user.Username, Kind: KindAccess, RegisteredClaims: registered}

	_, err = m.VerifyAccess(signWith(accessClaims, cfg.AccessTokenSecret))
	require.NoError(t, err)
	_, err = m.VerifyAccess(signWith(accessClaims, cfg.RefreshTokenSecret))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenKinds_SharedKeyStillRejected(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshTokenSecret = cfg.AccessTokenSecret
	m := NewTokenManager(cfg)
	user := testUser()

	access, err := m.IssueAccess(user)
	require.NoError(t, err)

	_, err = m.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessToken_Expiry(t *testing.T) {
	m, clock := newTestManager(t)

	tok, err := m.IssueAccess(testUser())
	require.NoError(t, err)

	clock.Advance(time.Hour - time.Second)
	_, err = m.VerifyAccess(tok)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = m.VerifyAccess(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshToken_Expiry(t *testing.T) {
	m, clock := newTestManager(t)

	tok, err := m.IssueRefresh(uuid.Must(uuid.NewV4()))
	require.NoError(t, err)

	clock.Advance(10*24*time.Hour + time.Second)
	_, err = m.VerifyRefresh(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_WrongSecret(t *testing.T) {
	m, _ := newTestManager(t)

	other := testConfig()
	other.AccessTokenSecret = "someone-else"
	forged, err := NewTokenManager(other).IssueAccess(testUser())
	require.NoError(t, err)

	_, err = m.VerifyAccess(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	m, _ := newTestManager(t)

	for _, tok := range []string{"", "not.a.jwt", "abc", strings.Repeat("x", 64)} {
		_, err := m.VerifyAccess(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, tok)

		_, err = m.VerifyRefresh(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, tok)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	m, _ := newTestManager(t)

	claims := &AccessClaims{
		UserID: uuid.Must(uuid.NewV4()),
		Kind:   KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.VerifyAccess(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	m, _ := newTestManager(t)

	claims := &RefreshClaims{UserID: uuid.Must(uuid.NewV4()), Kind: KindRefresh}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("refresh-secret"))
	require.NoError(t, err)

	_, err = m.VerifyRefresh(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssue_MissingKey(t *testing.T) {
	m := NewTokenManager(config.Auth{AccessTokenTTL: time.Hour, RefreshTokenTTL: time.Hour})

	_, err := m.IssueAccess(testUser())
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = m.IssueRefresh(uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, ErrMissingKey)
}
