// Package acl decides whether a provider may register a capability.
//
// AllowAll accepts every registration. ClaimsPolicy reads the caller's
// auth.Claims from the request context and matches the entry's domain and
// interface against the grants in Claims.Domains:
//
//	"*"                  any domain and interface
//	"vehicle"            every interface of domain "vehicle"
//	"vehicle:*"          same as "vehicle"
//	"*:radio"            interface "radio" in any domain
//	"vehicle:radio"      only that pair
package acl
