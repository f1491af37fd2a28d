package acl

import "strings"

// MatchGrant reports whether grant covers the domain and interface pair.
func MatchGrant(grant, domain, interfaceName string) bool {
	if grant == "*" || grant == "*:*" {
		return true
	}
	grantDomain, grantInterface, ok := strings.Cut(grant, ":")
	if !ok {
		return grant == domain
	}
	return matchWildcard(grantDomain, domain) && matchWildcard(grantInterface, interfaceName)
}

// MatchAny returns true if any grant covers the pair.
func MatchAny(grants []string, domain, interfaceName string) bool {
	for _, g := range grants {
		if MatchGrant(g, domain, interfaceName) {
			return true
		}
	}
	return false
}

func matchWildcard(pattern, value string) bool {
	return pattern == "*" || pattern == value
}
