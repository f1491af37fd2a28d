package main

import (
	"fmt"

	"github.com/kbukum/capdir/auth"
	"github.com/kbukum/capdir/config"
	"github.com/kbukum/capdir/directory"
	"github.com/kbukum/capdir/gcd"
	gcdconsul "github.com/kbukum/capdir/gcd/consul"
	gcdredis "github.com/kbukum/capdir/gcd/redis"
	"github.com/kbukum/capdir/observability"
	"github.com/kbukum/capdir/server"
)

// Config is the capdir process configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Directory     directory.Config     `yaml:"directory" mapstructure:"directory"`
	GCD           GCDConfig            `yaml:"gcd" mapstructure:"gcd"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Auth          auth.Config          `yaml:"auth" mapstructure:"auth"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// GCDConfig selects the global directory backend and carries the settings
// of every provider.
type GCDConfig struct {
	gcd.Config `yaml:",inline" mapstructure:",squash"`

	Redis  gcdredis.Config  `yaml:"redis" mapstructure:"redis"`
	Consul gcdconsul.Config `yaml:"consul" mapstructure:"consul"`
}

// ProviderConfig returns the settings of the selected provider.
func (c *GCDConfig) ProviderConfig() any {
	switch c.Provider {
	case gcd.ProviderRedis:
		return &c.Redis
	case gcd.ProviderConsul:
		return &c.Consul
	default:
		return nil
	}
}

// ApplyDefaults fills unset fields. The global directory serves the
// directory's known gbids unless configured otherwise.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Directory.ApplyDefaults()
	c.GCD.ApplyDefaults()
	if len(c.GCD.Gbids) == 0 {
		c.GCD.Gbids = append([]string(nil), c.Directory.KnownGbids...)
	}
	switch c.GCD.Provider {
	case gcd.ProviderRedis:
		c.GCD.Redis.ApplyDefaults()
	case gcd.ProviderConsul:
		c.GCD.Consul.ApplyDefaults()
	}
	c.Server.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Directory.Validate(); err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	if err := c.GCD.Validate(); err != nil {
		return fmt.Errorf("gcd: %w", err)
	}
	switch c.GCD.Provider {
	case gcd.ProviderRedis:
		if err := c.GCD.Redis.Validate(); err != nil {
			return fmt.Errorf("gcd.redis: %w", err)
		}
	case gcd.ProviderConsul:
		if err := c.GCD.Consul.Validate(); err != nil {
			return fmt.Errorf("gcd.consul: %w", err)
		}
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if c.Directory.AccessControl.Enabled && !c.Auth.Enabled {
		return fmt.Errorf("directory.access_control.enabled requires auth.enabled")
	}
	return c.Observability.Validate()
}
