package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tumourscan/internal/model"
)

func newTokens(t *testing.T) *Tokens {
	t.Helper()
	tk, err := NewTokens(Config{Secret: "s3cret", Issuer: "tumourscan", Audience: "tumourscan-api", TTL: time.Hour})
	require.NoError(t, err)
	return tk
}

func TestNewTokens_RequiresSecret(t *testing.T) {
	_, err := NewTokens(Config{})
	assert.Error(t, err)
}

func TestTokens_RoundTrip(t *testing.T) {
	tk := newTokens(t)

	raw, exp, err := tk.Issue("user-1", model.RoleDoctor)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	sub, err := tk.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestTokens_Verify_Rejects(t *testing.T) {
	tk := newTokens(t)

	other, err := NewTokens(Config{Secret: "other", Issuer: "tumourscan", Audience: "tumourscan-api"})
	require.NoError(t, err)
	foreign, _, err := other.Issue("user-1", model.RoleAdmin)
	require.NoError(t, err)

	wrongAud, err := NewTokens(Config{Secret: "s3cret", Issuer: "tumourscan", Audience: "someone-else"})
	require.NoError(t, err)
	audToken, _, err := wrongAud.Issue("user-1", model.RoleAdmin)
	require.NoError(t, err)

	expired := newTokens(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	oldToken, _, err := expired.Issue("user-1", model.RoleAdmin)
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "tumourscan",
		"aud": "tumourscan-api",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"garbage":        "not-a-token",
		"wrong secret":   foreign,
		"wrong audience": audToken,
		"expired":        oldToken,
		"no subject":     noSub,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tk.Verify(raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
