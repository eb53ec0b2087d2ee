// Package auth issues and verifies the HS256 bearer tokens used by the API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"

	"tumourscan/internal/model"
)

var (
	// ErrInvalidToken covers every reason a presented token is rejected.
	ErrInvalidToken = errors.New("invalid token")
	// ErrAccountInactive is returned for a valid token whose user was deactivated.
	ErrAccountInactive = errors.New("account is deactivated")
)

type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Tokens signs and verifies tokens for one issuer/audience pair.
type Tokens struct {
	cfg Config
	now func() time.Time
}

func NewTokens(cfg Config) (*Tokens, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Tokens{cfg: cfg, now: time.Now}, nil
}

// Issue returns a signed token for the user and its expiry.
func (t *Tokens) Issue(userID string, role model.Role) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.cfg.TTL)
	claims := jwt.MapClaims{
		"sub":  userID,
		"iss":  t.cfg.Issuer,
		"aud":  t.cfg.Audience,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
		"role": string(role),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, expiry, issuer and audience and returns the subject.
func (t *Tokens) Verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(t.cfg.Secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	if !claims.VerifyIssuer(t.cfg.Issuer, true) {
		return "", fmt.Errorf("%w: issuer %v", ErrInvalidToken, claims["iss"])
	}
	if !claims.VerifyAudience(t.cfg.Audience, true) {
		return "", fmt.Errorf("%w: audience %v", ErrInvalidToken, claims["aud"])
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return sub, nil
}
