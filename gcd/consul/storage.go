// Package consul stores global directory registrations in the Consul KV
// store under "<prefix>/<gbid>/<participantId>".
package consul

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/consul/api"
	jsoniter "github.com/json-iterator/go"

	"github.com/kbukum/capdir/gcd"
	"github.com/kbukum/capdir/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	gcd.RegisterFactory(gcd.ProviderConsul, func(cfg gcd.Config, providerCfg any, log *logger.Logger) (gcd.Storage, error) {
		var cc Config
		switch c := providerCfg.(type) {
		case *Config:
			cc = *c
		case Config:
			cc = c
		case nil:
		default:
			return nil, fmt.Errorf("consul storage: unexpected config type %T", providerCfg)
		}
		return NewStorage(cc, cfg.Prefix, log)
	})
}

// Storage implements gcd.Storage on the Consul KV API.
type Storage struct {
	client *api.Client
	cfg    Config
	prefix string
	log    *logger.Logger
}

var _ gcd.Storage = (*Storage)(nil)

// NewStorage creates a Consul client from cfg.
func NewStorage(cfg Config, prefix string, log *logger.Logger) (*Storage, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("consul config: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}

	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.Address
	apiCfg.Scheme = cfg.Scheme
	apiCfg.Token = cfg.Token
	apiCfg.Namespace = cfg.Namespace
	apiCfg.Partition = cfg.Partition
	apiCfg.WaitTime = cfg.WaitTime
	if cfg.Datacenter != "" {
		apiCfg.Datacenter = cfg.Datacenter
	}
	if cfg.TLS != nil && cfg.TLS.Enabled {
		apiCfg.TLSConfig = api.TLSConfig{
			Address:            cfg.TLS.ServerName,
			CAFile:             cfg.TLS.CACert,
			CertFile:           cfg.TLS.ClientCert,
			KeyFile:            cfg.TLS.ClientKey,
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		}
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	log.Info("Consul client created", logger.Fields("address", cfg.Address, "prefix", prefix))
	return &Storage{client: client, cfg: cfg, prefix: strings.Trim(prefix, "/"), log: log}, nil
}

func (s *Storage) dir(gbid string) string {
	return s.prefix + "/" + gbid + "/"
}

func (s *Storage) key(gbid, participantID string) string {
	return s.dir(gbid) + participantID
}

func query(ctx context.Context) *api.QueryOptions {
	return (&api.QueryOptions{}).WithContext(ctx)
}

// Get implements gcd.Storage.
func (s *Storage) Get(ctx context.Context, gbid, participantID string) (gcd.Record, bool, error) {
	pair, _, err := s.client.KV().Get(s.key(gbid, participantID), query(ctx))
	if err != nil {
		return gcd.Record{}, false, fmt.Errorf("consul get %s/%s: %w", gbid, participantID, err)
	}
	if pair == nil {
		return gcd.Record{}, false, nil
	}
	var r gcd.Record
	if err := json.Unmarshal(pair.Value, &r); err != nil {
		return gcd.Record{}, false, fmt.Errorf("decode record %s: %w", pair.Key, err)
	}
	return r, true, nil
}

// Put implements gcd.Storage.
func (s *Storage) Put(ctx context.Context, gbid string, r gcd.Record) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record %s/%s: %w", gbid, r.Entry.ParticipantID, err)
	}
	pair := &api.KVPair{Key: s.key(gbid, r.Entry.ParticipantID), Value: raw}
	if _, err := s.client.KV().Put(pair, (&api.WriteOptions{}).WithContext(ctx)); err != nil {
		return fmt.Errorf("consul put %s: %w", pair.Key, err)
	}
	return nil
}

// Delete implements gcd.Storage.
func (s *Storage) Delete(ctx context.Context, gbid, participantID string) (bool, error) {
	key := s.key(gbid, participantID)
	pair, _, err := s.client.KV().Get(key, query(ctx))
	if err != nil {
		return false, fmt.Errorf("consul get %s: %w", key, err)
	}
	if pair == nil {
		return false, nil
	}
	if _, err := s.client.KV().Delete(key, (&api.WriteOptions{}).WithContext(ctx)); err != nil {
		return false, fmt.Errorf("consul delete %s: %w", key, err)
	}
	return true, nil
}

// List implements gcd.Storage.
func (s *Storage) List(ctx context.Context, gbid string) ([]gcd.Record, error) {
	pairs, _, err := s.client.KV().List(s.dir(gbid), query(ctx))
	if err != nil {
		return nil, fmt.Errorf("consul list %s: %w", gbid, err)
	}
	out := make([]gcd.Record, 0, len(pairs))
	for _, pair := range pairs {
		var r gcd.Record
		if err := json.Unmarshal(pair.Value, &r); err != nil {
			s.log.Warn("skipping undecodable record", logger.Fields(
				logger.FieldGbid, gbid,
				"key", pair.Key,
				logger.FieldError, err.Error(),
			))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Ping asks the agent for the current raft leader.
func (s *Storage) Ping(ctx context.Context) error {
	leader, err := s.client.Status().LeaderWithQueryOptions(query(ctx))
	if err != nil {
		return fmt.Errorf("consul ping: %w", err)
	}
	if leader == "" {
		return fmt.Errorf("consul ping: no cluster leader")
	}
	return nil
}

// Close is a no-op; the Consul client holds no long-lived connections.
func (s *Storage) Close() error {
	return nil
}
