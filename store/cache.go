package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kbukum/capdir/discovery"
)

// DefaultCacheSize bounds the GlobalCache when no size is configured.
const DefaultCacheSize = 10000

// CachedRecord is a global entry learned from the remote directory.
type CachedRecord struct {
	Entry    discovery.GlobalDiscoveryEntry
	Gbid     string
	CachedAt time.Time
}

func (r CachedRecord) fresh(now time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && now.Sub(r.CachedAt) <= maxAge
}

// GlobalCache is an LRU-bounded cache of global entries, indexed by
// (domain, interface).
type GlobalCache struct {
	mu      sync.RWMutex
	clock   clock.Clock
	entries *lru.Cache[string, *CachedRecord]
	index   map[indexKey]map[string]struct{}
}

// NewGlobalCache creates a cache holding at most size entries; size <= 0
// selects DefaultCacheSize. A nil clock selects the wall clock.
func NewGlobalCache(size int, clk clock.Clock) (*GlobalCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if clk == nil {
		clk = clock.New()
	}
	c := &GlobalCache{
		clock: clk,
		index: make(map[indexKey]map[string]struct{}),
	}
	// the eviction callback runs inside Add/Remove, always with c.mu held
	entries, err := lru.NewWithEvict(size, func(pid string, r *CachedRecord) {
		k := keyOf(r.Entry.DiscoveryEntry)
		ids := c.index[k]
		delete(ids, pid)
		if len(ids) == 0 {
			delete(c.index, k)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create global cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Insert caches entry as learned from gbid, replacing any earlier copy.
func (c *GlobalCache) Insert(entry discovery.GlobalDiscoveryEntry, gbid string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pid := entry.ParticipantID
	c.entries.Remove(pid)
	c.entries.Add(pid, &CachedRecord{Entry: entry.Clone(), Gbid: gbid, CachedAt: c.clock.Now()})

	k := keyOf(entry.DiscoveryEntry)
	ids, ok := c.index[k]
	if !ok {
		ids = make(map[string]struct{})
		c.index[k] = ids
	}
	ids[pid] = struct{}{}
}

// Lookup returns the cached records for interfaceName in any of domains that
// are not older than maxAge.
func (c *GlobalCache) Lookup(domains []string, interfaceName string, maxAge time.Duration) []CachedRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	var out []CachedRecord
	for _, d := range domains {
		for pid := range c.index[indexKey{domain: d, interfaceName: interfaceName}] {
			r, ok := c.entries.Get(pid)
			if ok && r.fresh(now, maxAge) {
				out = append(out, r.copy())
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Entry.ParticipantID < out[j].Entry.ParticipantID
	})
	return out
}

// LookupParticipant returns the cached record of participantID if it is not
// older than maxAge.
func (c *GlobalCache) LookupParticipant(participantID string, maxAge time.Duration) (CachedRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.entries.Get(participantID)
	if !ok || !r.fresh(c.clock.Now(), maxAge) {
		return CachedRecord{}, false
	}
	return r.copy(), true
}

// Remove drops participantID from the cache.
func (c *GlobalCache) Remove(participantID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Remove(participantID)
}

// Touch refreshes the timestamps of the given cached participants.
func (c *GlobalCache) Touch(participantIDs []string, now time.Time, expiry time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nowMs := now.UnixMilli()
	for _, pid := range participantIDs {
		if r, ok := c.entries.Peek(pid); ok {
			r.Entry.LastSeenDateMs = nowMs
			r.Entry.ExpiryDateMs = nowMs + expiry.Milliseconds()
		}
	}
}

// RemoveExpired deletes and returns the records whose expiry date is before now.
func (c *GlobalCache) RemoveExpired(now time.Time) []CachedRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	nowMs := now.UnixMilli()
	var out []CachedRecord
	for _, pid := range c.entries.Keys() {
		r, ok := c.entries.Peek(pid)
		if ok && r.Entry.IsExpired(nowMs) {
			out = append(out, r.copy())
			c.entries.Remove(pid)
		}
	}
	return out
}

// Len returns the number of cached records.
func (c *GlobalCache) Len() int {
	return c.entries.Len()
}

func (r *CachedRecord) copy() CachedRecord {
	return CachedRecord{Entry: r.Entry.Clone(), Gbid: r.Gbid, CachedAt: r.CachedAt}
}
