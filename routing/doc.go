// Package routing keeps the in-memory next hop for every participant the
// directory knows about.
//
// Routes are reference counted: each Put or IncrementReferenceCount on an
// existing participant adds one user and each RemoveNextHop drops one. The
// route disappears when its count reaches zero. An existing live route is
// never replaced by a different address; a route whose expiry has passed is.
package routing
