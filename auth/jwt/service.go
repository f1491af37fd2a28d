// Package jwt signs and verifies bearer tokens for a caller-defined claims
// type.
//
//	svc, err := jwt.NewService(&cfg, auth.NewClaims)
//	token, err := svc.Issue(&auth.Claims{Domains: []string{"vehicle"}})
//	claims, err := svc.Parse(token)
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// ErrSignUnavailable is returned by Issue when only a public key is configured.
var ErrSignUnavailable = errors.New("jwt: no signing key configured")

// Service provides JWT token generation and parsing for claims type T.
// T must implement jwt.Claims (e.g., by embedding jwt.RegisteredClaims).
type Service[T gojwt.Claims] struct {
	cfg       Config
	newEmpty  func() T
	signKey   any
	verifyKey any
	now       func() time.Time
}

// NewService creates a new JWT service. newEmpty returns a zero-value
// instance of T for parsing.
func NewService[T gojwt.Claims](cfg *Config, newEmpty func() T) (*Service[T], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	sign, verify, err := cfg.keys()
	if err != nil {
		return nil, fmt.Errorf("jwt: parse key: %w", err)
	}
	return &Service[T]{cfg: *cfg, newEmpty: newEmpty, signKey: sign, verifyKey: verify, now: time.Now}, nil
}

// Issue fills the standard time claims, when T supports it, and signs.
func (s *Service[T]) Issue(claims T) (string, error) {
	if setter, ok := any(claims).(interface {
		SetDefaults(time.Time, time.Duration, string, string)
	}); ok {
		setter.SetDefaults(s.now(), s.cfg.TokenTTL, s.cfg.Issuer, s.cfg.Audience)
	}
	return s.Sign(claims)
}

// Sign signs claims as they are.
func (s *Service[T]) Sign(claims T) (string, error) {
	if s.signKey == nil {
		return "", ErrSignUnavailable
	}
	signed, err := gojwt.NewWithClaims(s.cfg.signingMethod(), claims).SignedString(s.signKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a token string and returns its claims. It verifies the
// signature, expiry, and the configured issuer and audience.
func (s *Service[T]) Parse(tokenString string) (T, error) {
	var zero T
	token, err := gojwt.ParseWithClaims(tokenString, s.newEmpty(), s.keyFunc, s.parserOptions()...)
	if err != nil {
		return zero, fmt.Errorf("jwt: parse token: %w", err)
	}
	if !token.Valid {
		return zero, errors.New("jwt: invalid token")
	}
	parsed, ok := token.Claims.(T)
	if !ok {
		return zero, errors.New("jwt: unexpected claims type")
	}
	return parsed, nil
}

func (s *Service[T]) keyFunc(token *gojwt.Token) (any, error) {
	if token.Method.Alg() != s.cfg.signingMethod().Alg() {
		return nil, fmt.Errorf("jwt: unexpected signing method: %s", token.Method.Alg())
	}
	return s.verifyKey, nil
}

func (s *Service[T]) parserOptions() []gojwt.ParserOption {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{s.cfg.signingMethod().Alg()}),
		gojwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.cfg.Issuer))
	}
	if s.cfg.Audience != "" {
		opts = append(opts, gojwt.WithAudience(s.cfg.Audience))
	}
	return opts
}
