package sequencer

import (
	"fmt"
	"time"
)

// Config tunes the sequencer.
type Config struct {
	// RetryDelay is the pause before a timed-out task is sent again.
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	// MinTTL is the lower bound of the per-attempt deadline.
	MinTTL time.Duration `yaml:"min_ttl" mapstructure:"min_ttl"`
	// RateLimit is the number of remote calls allowed per second.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	// RateBurst is the number of remote calls allowed in a burst.
	RateBurst int `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
	if c.MinTTL == 0 {
		c.MinTTL = time.Second
	}
	if c.RateLimit == 0 {
		c.RateLimit = 50
	}
	if c.RateBurst == 0 {
		c.RateBurst = 10
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.RetryDelay < 0 {
		return fmt.Errorf("sequencer: retry_delay must not be negative")
	}
	if c.MinTTL <= 0 {
		return fmt.Errorf("sequencer: min_ttl must be positive")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("sequencer: rate_limit must be positive")
	}
	if c.RateBurst <= 0 {
		return fmt.Errorf("sequencer: rate_burst must be positive")
	}
	return nil
}
