package directory

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/capdir/sequencer"
	"github.com/kbukum/capdir/validation"
)

// Remove cleanup policies.
const (
	// CleanupAlways clears local state when a remote remove finishes, whatever its outcome.
	CleanupAlways = "clear-always"
	// CleanupOnNotFound clears local state on success or when the remote side reports the entry gone.
	CleanupOnNotFound = "clear-on-not-found"
)

// Defaults.
const (
	DefaultAddRemoveTTL            = 60 * time.Second
	DefaultExpiry                  = 42 * 24 * time.Hour
	DefaultFreshnessUpdateInterval = time.Hour
	DefaultReAddInterval           = 7 * 24 * time.Hour
	DefaultPurgeExpiredInterval    = time.Hour
	DefaultDiscoveryTimeout        = 10 * time.Minute
	DefaultStaleMaxRetryDuration   = time.Hour
)

// StaleRemovalConfig bounds the startup purge of stale registrations.
type StaleRemovalConfig struct {
	MaxRetryDuration time.Duration `yaml:"max_retry_duration" mapstructure:"max_retry_duration" validate:"gte=0"`
	InitialBackoff   time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff" validate:"gte=0"`
	MaxBackoff       time.Duration `yaml:"max_backoff" mapstructure:"max_backoff" validate:"gte=0"`
}

// AccessControlConfig toggles provider permission checks.
type AccessControlConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// Config configures a Directory.
type Config struct {
	// KnownGbids lists the backends of the global directory; the first is the default.
	KnownGbids []string `yaml:"known_gbids" mapstructure:"known_gbids" validate:"required,min=1,unique,dive,required"`
	// ClusterControllerID identifies this node towards the global directory.
	ClusterControllerID string `yaml:"cluster_controller_id" mapstructure:"cluster_controller_id"`
	// GlobalTopic is the inbox advertised in global registrations; defaults to the cluster controller id.
	GlobalTopic string `yaml:"global_topic" mapstructure:"global_topic"`

	AddRemoveTTL            time.Duration `yaml:"add_remove_ttl" mapstructure:"add_remove_ttl" validate:"gte=0"`
	DefaultExpiry           time.Duration `yaml:"default_expiry" mapstructure:"default_expiry" validate:"gte=0"`
	// A negative interval disables the corresponding loop.
	FreshnessUpdateInterval time.Duration `yaml:"freshness_update_interval" mapstructure:"freshness_update_interval"`
	ReAddInterval           time.Duration `yaml:"re_add_interval" mapstructure:"re_add_interval"`
	PurgeExpiredInterval    time.Duration `yaml:"purge_expired_interval" mapstructure:"purge_expired_interval"`
	DefaultDiscoveryTimeout time.Duration `yaml:"default_discovery_timeout" mapstructure:"default_discovery_timeout" validate:"gte=0"`

	StaleRemoval  StaleRemovalConfig  `yaml:"stale_removal" mapstructure:"stale_removal"`
	AccessControl AccessControlConfig `yaml:"access_control" mapstructure:"access_control"`

	RemoveCleanupPolicy string `yaml:"remove_cleanup_policy" mapstructure:"remove_cleanup_policy" validate:"oneof=clear-always clear-on-not-found"`
	// CacheSize bounds the cache of global entries.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size" validate:"gte=0"`

	Sequencer sequencer.Config `yaml:"sequencer" mapstructure:"sequencer"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.ClusterControllerID == "" {
		c.ClusterControllerID = uuid.NewString()
	}
	if c.GlobalTopic == "" {
		c.GlobalTopic = c.ClusterControllerID
	}
	if c.AddRemoveTTL == 0 {
		c.AddRemoveTTL = DefaultAddRemoveTTL
	}
	if c.DefaultExpiry == 0 {
		c.DefaultExpiry = DefaultExpiry
	}
	if c.FreshnessUpdateInterval == 0 {
		c.FreshnessUpdateInterval = DefaultFreshnessUpdateInterval
	}
	if c.ReAddInterval == 0 {
		c.ReAddInterval = DefaultReAddInterval
	}
	if c.PurgeExpiredInterval == 0 {
		c.PurgeExpiredInterval = DefaultPurgeExpiredInterval
	}
	if c.DefaultDiscoveryTimeout == 0 {
		c.DefaultDiscoveryTimeout = DefaultDiscoveryTimeout
	}
	if c.StaleRemoval.MaxRetryDuration == 0 {
		c.StaleRemoval.MaxRetryDuration = DefaultStaleMaxRetryDuration
	}
	if c.StaleRemoval.InitialBackoff == 0 {
		c.StaleRemoval.InitialBackoff = time.Second
	}
	if c.StaleRemoval.MaxBackoff == 0 {
		c.StaleRemoval.MaxBackoff = time.Minute
	}
	if c.RemoveCleanupPolicy == "" {
		c.RemoveCleanupPolicy = CleanupOnNotFound
	}
	c.Sequencer.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Sequencer.Validate(); err != nil {
		return err
	}
	if c.StaleRemoval.MaxBackoff < c.StaleRemoval.InitialBackoff {
		return fmt.Errorf("directory: stale_removal.max_backoff must not be below initial_backoff")
	}
	return nil
}
