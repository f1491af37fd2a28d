package discovery

import (
	"fmt"
	"time"
)

// DiscoveryScope selects which sources a lookup consults.
type DiscoveryScope int

const (
	// LocalThenGlobal returns local entries if any match, otherwise consults cache and remote directory.
	LocalThenGlobal DiscoveryScope = iota
	// LocalOnly consults only the local store.
	LocalOnly
	// LocalAndGlobal returns local entries together with cached and remote ones.
	LocalAndGlobal
	// GlobalOnly returns globally registered entries only.
	GlobalOnly
)

var scopeNames = map[DiscoveryScope]string{
	LocalThenGlobal: "LOCAL_THEN_GLOBAL",
	LocalOnly:       "LOCAL_ONLY",
	LocalAndGlobal:  "LOCAL_AND_GLOBAL",
	GlobalOnly:      "GLOBAL_ONLY",
}

// DiscoveryScopeNames lists the accepted textual scope names.
func DiscoveryScopeNames() []string {
	return []string{"LOCAL_ONLY", "LOCAL_THEN_GLOBAL", "LOCAL_AND_GLOBAL", "GLOBAL_ONLY"}
}

func (s DiscoveryScope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("DiscoveryScope(%d)", int(s))
}

// ParseDiscoveryScope parses a textual scope; empty selects LOCAL_THEN_GLOBAL.
func ParseDiscoveryScope(s string) (DiscoveryScope, error) {
	if s == "" {
		return LocalThenGlobal, nil
	}
	for scope, name := range scopeNames {
		if name == s {
			return scope, nil
		}
	}
	return LocalThenGlobal, fmt.Errorf("invalid discovery scope %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s DiscoveryScope) MarshalText() ([]byte, error) {
	if name, ok := scopeNames[s]; ok {
		return []byte(name), nil
	}
	return nil, fmt.Errorf("invalid discovery scope %d", int(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *DiscoveryScope) UnmarshalText(b []byte) error {
	parsed, err := ParseDiscoveryScope(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DiscoveryQos parameterizes a lookup.
type DiscoveryQos struct {
	// CacheMaxAge bounds the age of cached global entries; zero forces a remote lookup.
	CacheMaxAge time.Duration
	// DiscoveryTimeout bounds the remote lookup; zero uses the directory default.
	DiscoveryTimeout time.Duration
	Scope            DiscoveryScope
	// ProviderMustSupportOnChange drops providers without on-change subscription support.
	ProviderMustSupportOnChange bool
}
