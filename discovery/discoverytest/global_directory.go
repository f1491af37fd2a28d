package discoverytest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kbukum/capdir/discovery"
)

// Operation names recorded by GlobalDirectory.
const (
	OpAdd               = "add"
	OpRemove            = "remove"
	OpLookup            = "lookup"
	OpLookupParticipant = "lookupParticipant"
	OpTouch             = "touch"
	OpRemoveStale       = "removeStale"
)

// Call is one recorded invocation.
type Call struct {
	Op                  string
	Entry               discovery.GlobalDiscoveryEntry
	ParticipantID       string
	ParticipantIDs      []string
	Domains             []string
	InterfaceName       string
	Gbids               []string
	Gbid                string
	ClusterControllerID string
	MaxLastSeenDateMs   int64
	TTL                 time.Duration
	Deadline            time.Time
	HasDeadline         bool
}

// GlobalDirectory is a recording discovery.GlobalDirectory. Unset hooks succeed.
type GlobalDirectory struct {
	AddFunc               func(ctx context.Context, entry discovery.GlobalDiscoveryEntry, ttl time.Duration, gbids []string) error
	RemoveFunc            func(ctx context.Context, participantID string, gbids []string) error
	LookupFunc            func(ctx context.Context, domains []string, interfaceName string, ttl time.Duration, gbids []string) ([]discovery.GlobalDiscoveryEntry, error)
	LookupParticipantFunc func(ctx context.Context, participantID string, ttl time.Duration, gbids []string) (discovery.GlobalDiscoveryEntry, error)
	TouchFunc             func(ctx context.Context, clusterControllerID string, participantIDs []string, gbid string) error
	RemoveStaleFunc       func(ctx context.Context, clusterControllerID string, maxLastSeenDateMs int64, gbid string) error

	mu    sync.Mutex
	calls []Call
}

var _ discovery.GlobalDirectory = (*GlobalDirectory)(nil)

// NewGlobalDirectory creates a GlobalDirectory whose calls all succeed.
func NewGlobalDirectory() *GlobalDirectory {
	return &GlobalDirectory{}
}

func (g *GlobalDirectory) record(ctx context.Context, c Call) {
	c.Deadline, c.HasDeadline = ctx.Deadline()
	g.mu.Lock()
	g.calls = append(g.calls, c)
	g.mu.Unlock()
}

// Calls returns every recorded call in order.
func (g *GlobalDirectory) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

// CallsOf returns the recorded calls of op in order.
func (g *GlobalDirectory) CallsOf(op string) []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Call
	for _, c := range g.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of recorded calls of op.
func (g *GlobalDirectory) Count(op string) int {
	return len(g.CallsOf(op))
}

// Add implements discovery.GlobalDirectory.
func (g *GlobalDirectory) Add(ctx context.Context, entry discovery.GlobalDiscoveryEntry, ttl time.Duration, gbids []string) error {
	g.record(ctx, Call{Op: OpAdd, Entry: entry.Clone(), ParticipantID: entry.ParticipantID, Gbids: slices.Clone(gbids), TTL: ttl})
	if g.AddFunc != nil {
		return g.AddFunc(ctx, entry, ttl, gbids)
	}
	return nil
}

// Remove implements discovery.GlobalDirectory.
func (g *GlobalDirectory) Remove(ctx context.Context, participantID string, gbids []string) error {
	g.record(ctx, Call{Op: OpRemove, ParticipantID: participantID, Gbids: slices.Clone(gbids)})
	if g.RemoveFunc != nil {
		return g.RemoveFunc(ctx, participantID, gbids)
	}
	return nil
}

// Lookup implements discovery.GlobalDirectory.
func (g *GlobalDirectory) Lookup(ctx context.Context, domains []string, interfaceName string, ttl time.Duration, gbids []string) ([]discovery.GlobalDiscoveryEntry, error) {
	g.record(ctx, Call{Op: OpLookup, Domains: slices.Clone(domains), InterfaceName: interfaceName, TTL: ttl, Gbids: slices.Clone(gbids)})
	if g.LookupFunc != nil {
		return g.LookupFunc(ctx, domains, interfaceName, ttl, gbids)
	}
	return nil, nil
}

// LookupParticipant implements discovery.GlobalDirectory.
func (g *GlobalDirectory) LookupParticipant(ctx context.Context, participantID string, ttl time.Duration, gbids []string) (discovery.GlobalDiscoveryEntry, error) {
	g.record(ctx, Call{Op: OpLookupParticipant, ParticipantID: participantID, TTL: ttl, Gbids: slices.Clone(gbids)})
	if g.LookupParticipantFunc != nil {
		return g.LookupParticipantFunc(ctx, participantID, ttl, gbids)
	}
	return discovery.GlobalDiscoveryEntry{}, nil
}

// Touch implements discovery.GlobalDirectory.
func (g *GlobalDirectory) Touch(ctx context.Context, clusterControllerID string, participantIDs []string, gbid string) error {
	g.record(ctx, Call{Op: OpTouch, ClusterControllerID: clusterControllerID, ParticipantIDs: slices.Clone(participantIDs), Gbid: gbid})
	if g.TouchFunc != nil {
		return g.TouchFunc(ctx, clusterControllerID, participantIDs, gbid)
	}
	return nil
}

// RemoveStale implements discovery.GlobalDirectory.
func (g *GlobalDirectory) RemoveStale(ctx context.Context, clusterControllerID string, maxLastSeenDateMs int64, gbid string) error {
	g.record(ctx, Call{Op: OpRemoveStale, ClusterControllerID: clusterControllerID, MaxLastSeenDateMs: maxLastSeenDateMs, Gbid: gbid})
	if g.RemoveStaleFunc != nil {
		return g.RemoveStaleFunc(ctx, clusterControllerID, maxLastSeenDateMs, gbid)
	}
	return nil
}
