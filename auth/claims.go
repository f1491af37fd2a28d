package auth

import (
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims identify a provider. Domains lists the grants of the token holder:
// a domain, a "domain:interface" pair, or "*" for everything.
type Claims struct {
	gojwt.RegisteredClaims
	Domains []string `json:"domains,omitempty"`
}

// NewClaims returns empty claims for parsing.
func NewClaims() *Claims { return &Claims{} }

// SetDefaults fills the registered time claims that are still unset.
func (c *Claims) SetDefaults(now time.Time, ttl time.Duration, issuer string, audience string) {
	if c.IssuedAt == nil {
		c.IssuedAt = gojwt.NewNumericDate(now)
	}
	if c.ExpiresAt == nil && ttl > 0 {
		c.ExpiresAt = gojwt.NewNumericDate(now.Add(ttl))
	}
	if c.Issuer == "" {
		c.Issuer = issuer
	}
	if len(c.Audience) == 0 && audience != "" {
		c.Audience = gojwt.ClaimStrings{audience}
	}
}
