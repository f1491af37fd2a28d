// Package redis stores global directory registrations in Redis, one hash
// per gbid keyed by participant id.
package redis

import (
	"context"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/capdir/gcd"
	"github.com/kbukum/capdir/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	gcd.RegisterFactory(gcd.ProviderRedis, func(cfg gcd.Config, providerCfg any, log *logger.Logger) (gcd.Storage, error) {
		var rc Config
		switch c := providerCfg.(type) {
		case *Config:
			rc = *c
		case Config:
			rc = c
		case nil:
		default:
			return nil, fmt.Errorf("redis storage: unexpected config type %T", providerCfg)
		}
		return NewStorage(rc, cfg.Prefix, log)
	})
}

// Storage implements gcd.Storage on go-redis.
type Storage struct {
	rdb    *goredis.Client
	prefix string
	log    *logger.Logger

	mu     sync.Mutex
	closed bool
}

var _ gcd.Storage = (*Storage)(nil)

// NewStorage connects to the server in cfg. Keys are "<prefix>:<gbid>:entries".
func NewStorage(cfg Config, prefix string, log *logger.Logger) (*Storage, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		MaxRetries:      cfg.MaxRetries,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	})

	log.Info("Redis client created", logger.Fields(
		"addr", cfg.Addr,
		"db", cfg.DB,
		"pool_size", cfg.PoolSize,
	))
	return &Storage{rdb: rdb, prefix: prefix, log: log}, nil
}

func (s *Storage) key(gbid string) string {
	return s.prefix + ":" + gbid + ":entries"
}

// Get implements gcd.Storage.
func (s *Storage) Get(ctx context.Context, gbid, participantID string) (gcd.Record, bool, error) {
	raw, err := s.rdb.HGet(ctx, s.key(gbid), participantID).Bytes()
	if err == goredis.Nil {
		return gcd.Record{}, false, nil
	}
	if err != nil {
		return gcd.Record{}, false, fmt.Errorf("redis hget %s: %w", gbid, err)
	}
	var r gcd.Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return gcd.Record{}, false, fmt.Errorf("decode record %s/%s: %w", gbid, participantID, err)
	}
	return r, true, nil
}

// Put implements gcd.Storage.
func (s *Storage) Put(ctx context.Context, gbid string, r gcd.Record) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record %s/%s: %w", gbid, r.Entry.ParticipantID, err)
	}
	if err := s.rdb.HSet(ctx, s.key(gbid), r.Entry.ParticipantID, raw).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", gbid, err)
	}
	return nil
}

// Delete implements gcd.Storage.
func (s *Storage) Delete(ctx context.Context, gbid, participantID string) (bool, error) {
	n, err := s.rdb.HDel(ctx, s.key(gbid), participantID).Result()
	if err != nil {
		return false, fmt.Errorf("redis hdel %s: %w", gbid, err)
	}
	return n > 0, nil
}

// List implements gcd.Storage.
func (s *Storage) List(ctx context.Context, gbid string) ([]gcd.Record, error) {
	all, err := s.rdb.HGetAll(ctx, s.key(gbid)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", gbid, err)
	}
	out := make([]gcd.Record, 0, len(all))
	for pid, raw := range all {
		var r gcd.Record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			s.log.Warn("skipping undecodable record", logger.Fields(
				logger.FieldGbid, gbid,
				logger.FieldParticipantID, pid,
				logger.FieldError, err.Error(),
			))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Ping verifies the Redis connection is alive.
func (s *Storage) Ping(ctx context.Context) error {
	pong, err := s.rdb.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if pong != "PONG" {
		return fmt.Errorf("unexpected redis ping response: %s", pong)
	}
	return nil
}

// Close closes the Redis connection. Safe to call multiple times.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.log.Info("Closing Redis connection")
	s.closed = true
	return s.rdb.Close()
}
