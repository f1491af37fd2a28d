package gcd

import (
	"fmt"
)

// Provider names.
const (
	ProviderMemory = "memory"
	ProviderRedis  = "redis"
	ProviderConsul = "consul"
)

// Config selects and configures the global directory backend.
type Config struct {
	// Provider selects the storage: "memory", "redis" or "consul".
	Provider string `yaml:"provider" mapstructure:"provider"`

	// Gbids lists the backends served; requests for other gbids fail with UNKNOWN_GBID.
	Gbids []string `yaml:"gbids" mapstructure:"gbids"`

	// Prefix namespaces the keys of the redis and consul storages.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderMemory
	}
	if c.Prefix == "" {
		c.Prefix = "capdir"
	}
}

// Validate checks that required fields are present and consistent.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderMemory, ProviderRedis, ProviderConsul:
	default:
		return fmt.Errorf("unsupported gcd provider %q", c.Provider)
	}
	if len(c.Gbids) == 0 {
		return fmt.Errorf("gcd gbids are required")
	}
	seen := make(map[string]bool, len(c.Gbids))
	for _, g := range c.Gbids {
		if g == "" || seen[g] {
			return fmt.Errorf("gcd gbids must be non-empty and unique, got %q", c.Gbids)
		}
		seen[g] = true
	}
	return nil
}
