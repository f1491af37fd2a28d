// Package discovery holds the value types of the capabilities directory and
// the contracts of its external collaborators.
//
// A DiscoveryEntry describes one provider registration. A GlobalDiscoveryEntry
// adds the serialized transport Address, whose broker URI names the backend
// partition (GBID) the entry belongs to. Lookups return
// DiscoveryEntryWithMetaInfo values that tell local providers apart.
//
// The directory talks to three collaborators: the remote GlobalDirectory, the
// RoutingTable that maps participants to addresses, and the AccessController
// that decides whether a registration is allowed.
package discovery
