package discoverytest

import (
	"context"
	"sync"

	"github.com/kbukum/capdir/discovery"
)

// Route is one recorded RoutingTable.Put.
type Route struct {
	ParticipantID   string
	Address         discovery.Address
	GloballyVisible bool
	ExpiryDateMs    int64
}

// RoutingTable is a recording discovery.RoutingTable.
type RoutingTable struct {
	mu         sync.Mutex
	puts       []Route
	increments []string
	removed    []string
}

var _ discovery.RoutingTable = (*RoutingTable)(nil)

// NewRoutingTable creates an empty RoutingTable.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{}
}

// Put implements discovery.RoutingTable.
func (r *RoutingTable) Put(participantID string, address discovery.Address, globallyVisible bool, expiryDateMs int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.puts = append(r.puts, Route{participantID, address, globallyVisible, expiryDateMs})
	return true
}

// IncrementReferenceCount implements discovery.RoutingTable.
func (r *RoutingTable) IncrementReferenceCount(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.increments = append(r.increments, participantID)
}

// RemoveNextHop implements discovery.RoutingTable.
func (r *RoutingTable) RemoveNextHop(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, participantID)
}

// Puts returns the recorded Put calls.
func (r *RoutingTable) Puts() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Route(nil), r.puts...)
}

// Increments returns the participants whose reference count was incremented.
func (r *RoutingTable) Increments() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.increments...)
}

// Removed returns the participants whose route was removed.
func (r *RoutingTable) Removed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

// AccessController allows registrations of participants not listed in Deny.
type AccessController struct {
	mu   sync.Mutex
	deny map[string]bool
}

var _ discovery.AccessController = (*AccessController)(nil)

// NewAccessController creates an AccessController denying participantIDs.
func NewAccessController(deny ...string) *AccessController {
	a := &AccessController{deny: make(map[string]bool)}
	for _, pid := range deny {
		a.deny[pid] = true
	}
	return a
}

// HasProviderPermission implements discovery.AccessController.
func (a *AccessController) HasProviderPermission(_ context.Context, entry discovery.DiscoveryEntry) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.deny[entry.ParticipantID]
}
