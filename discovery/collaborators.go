package discovery

import (
	"context"
	"time"
)

// GlobalDirectory is the client of the remote global capabilities directory.
//
// Calls block until the remote side answers or ctx ends. Errors are either
// discovery errors (errors.IsDiscoveryError), timeouts (errors.IsTimeout) or
// other runtime failures.
type GlobalDirectory interface {
	// Add registers entry in every gbid, with ttl bounding the remote call.
	Add(ctx context.Context, entry GlobalDiscoveryEntry, ttl time.Duration, gbids []string) error
	// Remove unregisters participantID from every gbid.
	Remove(ctx context.Context, participantID string, gbids []string) error
	// Lookup returns entries matching any of domains and interfaceName in gbids.
	Lookup(ctx context.Context, domains []string, interfaceName string, ttl time.Duration, gbids []string) ([]GlobalDiscoveryEntry, error)
	// LookupParticipant returns the entry of participantID in gbids.
	LookupParticipant(ctx context.Context, participantID string, ttl time.Duration, gbids []string) (GlobalDiscoveryEntry, error)
	// Touch refreshes the timestamps of participantIDs registered by clusterControllerID in gbid.
	Touch(ctx context.Context, clusterControllerID string, participantIDs []string, gbid string) error
	// RemoveStale removes entries of clusterControllerID last seen before maxLastSeenDateMs in gbid.
	RemoveStale(ctx context.Context, clusterControllerID string, maxLastSeenDateMs int64, gbid string) error
}

// RoutingTable resolves participants to transport addresses.
type RoutingTable interface {
	// Put adds or refreshes a route; it reports whether the route was stored.
	Put(participantID string, address Address, globallyVisible bool, expiryDateMs int64) bool
	// IncrementReferenceCount marks one more user of an existing route.
	IncrementReferenceCount(participantID string)
	// RemoveNextHop drops the route of participantID.
	RemoveNextHop(participantID string)
}

// AccessController decides whether a provider registration is allowed.
type AccessController interface {
	HasProviderPermission(ctx context.Context, entry DiscoveryEntry) bool
}
