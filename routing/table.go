package routing

import (
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/kbukum/capdir/discovery"
	"github.com/kbukum/capdir/logger"
)

// Route is the next hop of one participant.
type Route struct {
	Address         discovery.Address
	GloballyVisible bool
	ExpiryDateMs    int64
	RefCount        int
}

// Option configures a Table.
type Option func(*Table)

// WithClock sets the clock used to decide whether a route has expired.
func WithClock(c clock.Clock) Option {
	return func(t *Table) { t.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(t *Table) { t.log = l.WithComponent("routing") }
}

// Table is an in-memory discovery.RoutingTable.
type Table struct {
	mu     sync.RWMutex
	routes map[string]*Route
	clock  clock.Clock
	log    *logger.Logger
}

var _ discovery.RoutingTable = (*Table)(nil)

// NewTable creates an empty Table.
func NewTable(opts ...Option) *Table {
	t := &Table{
		routes: make(map[string]*Route),
		clock:  clock.New(),
		log:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Put implements discovery.RoutingTable. It reports false when a live route
// with a different address is kept.
func (t *Table) Put(participantID string, address discovery.Address, globallyVisible bool, expiryDateMs int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.routes[participantID]
	if !ok {
		t.routes[participantID] = &Route{
			Address:         address,
			GloballyVisible: globallyVisible,
			ExpiryDateMs:    expiryDateMs,
			RefCount:        1,
		}
		return true
	}

	if r.Address != address {
		if r.ExpiryDateMs > t.clock.Now().UnixMilli() {
			t.log.Warn("route kept, address differs", logger.Fields(
				logger.FieldParticipantID, participantID,
				"address", r.Address.BrokerURI,
				"rejected", address.BrokerURI,
			))
			return false
		}
		r.Address = address
		r.GloballyVisible = globallyVisible
		r.ExpiryDateMs = expiryDateMs
		r.RefCount++
		return true
	}

	if expiryDateMs > r.ExpiryDateMs {
		r.ExpiryDateMs = expiryDateMs
	}
	r.RefCount++
	return true
}

// IncrementReferenceCount implements discovery.RoutingTable. Unknown
// participants are ignored.
func (t *Table) IncrementReferenceCount(participantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.routes[participantID]; ok {
		r.RefCount++
		return
	}
	t.log.Debug("increment on missing route", logger.Fields(logger.FieldParticipantID, participantID))
}

// RemoveNextHop implements discovery.RoutingTable.
func (t *Table) RemoveNextHop(participantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.routes[participantID]
	if !ok {
		return
	}
	r.RefCount--
	if r.RefCount <= 0 {
		delete(t.routes, participantID)
	}
}

// Lookup returns a copy of the route of participantID.
func (t *Table) Lookup(participantID string) (Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.routes[participantID]
	if !ok {
		return Route{}, false
	}
	return *r, true
}

// Len returns the number of routes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}
