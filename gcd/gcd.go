package gcd

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/capdir/discovery"
	"github.com/kbukum/capdir/logger"
)

// Record is one stored registration.
type Record struct {
	Entry discovery.GlobalDiscoveryEntry `json:"entry"`
	// ClusterControllerID is the node that registered the entry.
	ClusterControllerID string `json:"clusterControllerId"`
}

// Storage persists records per gbid. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Get returns the record of participantID in gbid.
	Get(ctx context.Context, gbid, participantID string) (Record, bool, error)
	// Put stores r in gbid, replacing any record of the same participant.
	Put(ctx context.Context, gbid string, r Record) error
	// Delete removes participantID from gbid and reports whether it existed.
	Delete(ctx context.Context, gbid, participantID string) (bool, error)
	// List returns every record of gbid.
	List(ctx context.Context, gbid string) ([]Record, error)
	// Ping checks the storage is reachable.
	Ping(ctx context.Context) error
	// Close releases the storage.
	Close() error
}

// Factory creates a Storage. providerCfg holds provider-specific
// configuration (e.g. *redis.Config); factories type-assert it.
type Factory func(cfg Config, providerCfg any, log *logger.Logger) (Storage, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		ProviderMemory: func(Config, any, *logger.Logger) (Storage, error) { return NewMemoryStorage(), nil },
	}
)

// RegisterFactory makes a storage available under name. Storage packages
// call it from an init function.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// New creates a Directory on the storage selected by cfg.Provider.
func New(cfg Config, providerCfg any, log *logger.Logger, opts ...Option) (*Directory, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gcd config: %w", err)
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("gcd provider %q not registered", cfg.Provider)
	}

	storage, err := f(cfg, providerCfg, log)
	if err != nil {
		return nil, fmt.Errorf("gcd %s storage: %w", cfg.Provider, err)
	}
	opts = append([]Option{WithLogger(log), WithName(cfg.Provider)}, opts...)
	return NewDirectory(storage, cfg.Gbids, opts...), nil
}
