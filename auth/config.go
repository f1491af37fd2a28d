package auth

import (
	"github.com/kbukum/capdir/auth/jwt"
)

// Config holds provider authentication configuration.
type Config struct {
	// Enabled requires a bearer token on provider registration routes.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// JWT configures token verification.
	JWT jwt.Config `yaml:"jwt" mapstructure:"jwt"`
}

// ApplyDefaults fills zero-value fields.
func (c *Config) ApplyDefaults() {
	c.JWT.ApplyDefaults()
}

// Validate checks the token settings when authentication is enabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return c.JWT.Validate()
}
