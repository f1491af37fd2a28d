// Package store holds the directory's two entry stores.
//
// LocalStore keeps providers registered on this node together with the
// GBIDs they were registered in. GlobalCache keeps a bounded, age-filtered
// copy of entries learned from the global directory.
//
// Both stores are safe for concurrent use and never hand out references to
// their internal state.
package store
