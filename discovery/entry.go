package discovery

import (
	"fmt"
	"slices"
)

// ProviderScope tells whether a provider is visible only locally or also
// registered in the global directory.
type ProviderScope int

const (
	ScopeGlobal ProviderScope = iota
	ScopeLocal
)

func (s ProviderScope) String() string {
	switch s {
	case ScopeGlobal:
		return "GLOBAL"
	case ScopeLocal:
		return "LOCAL"
	default:
		return fmt.Sprintf("ProviderScope(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ProviderScope) MarshalText() ([]byte, error) {
	switch s {
	case ScopeGlobal, ScopeLocal:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid provider scope %d", int(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ProviderScope) UnmarshalText(b []byte) error {
	switch string(b) {
	case "GLOBAL":
		*s = ScopeGlobal
	case "LOCAL":
		*s = ScopeLocal
	default:
		return fmt.Errorf("invalid provider scope %q", string(b))
	}
	return nil
}

// Version is the interface version a provider implements.
type Version struct {
	Major int32 `json:"majorVersion"`
	Minor int32 `json:"minorVersion"`
}

// CustomParameter is a free-form provider attribute.
type CustomParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProviderQos describes provider quality-of-service attributes.
type ProviderQos struct {
	CustomParameters              []CustomParameter `json:"customParameters,omitempty"`
	Priority                      int64             `json:"priority"`
	Scope                         ProviderScope     `json:"scope"`
	SupportsOnChangeSubscriptions bool              `json:"supportsOnChangeSubscriptions"`
}

// Equal compares two ProviderQos values field by field.
func (q ProviderQos) Equal(o ProviderQos) bool {
	return q.Priority == o.Priority &&
		q.Scope == o.Scope &&
		q.SupportsOnChangeSubscriptions == o.SupportsOnChangeSubscriptions &&
		slices.Equal(q.CustomParameters, o.CustomParameters)
}

// DiscoveryEntry is one provider registration, identified by ParticipantID.
type DiscoveryEntry struct {
	ProviderVersion Version     `json:"providerVersion"`
	Domain          string      `json:"domain" validate:"required"`
	InterfaceName   string      `json:"interfaceName" validate:"required"`
	ParticipantID   string      `json:"participantId" validate:"required"`
	Qos             ProviderQos `json:"qos"`
	LastSeenDateMs  int64       `json:"lastSeenDateMs"`
	ExpiryDateMs    int64       `json:"expiryDateMs"`
	PublicKeyID     string      `json:"publicKeyId"`
}

// IsGlobal reports whether the entry is replicated to the global directory.
func (e DiscoveryEntry) IsGlobal() bool {
	return e.Qos.Scope == ScopeGlobal
}

// IsExpired reports whether the entry expired before nowMs.
func (e DiscoveryEntry) IsExpired(nowMs int64) bool {
	return e.ExpiryDateMs < nowMs
}

// EqualIgnoringTimestamps compares every field except LastSeenDateMs and ExpiryDateMs.
func (e DiscoveryEntry) EqualIgnoringTimestamps(o DiscoveryEntry) bool {
	return e.ProviderVersion == o.ProviderVersion &&
		e.Domain == o.Domain &&
		e.InterfaceName == o.InterfaceName &&
		e.ParticipantID == o.ParticipantID &&
		e.PublicKeyID == o.PublicKeyID &&
		e.Qos.Equal(o.Qos)
}

// Clone returns a deep copy of the entry.
func (e DiscoveryEntry) Clone() DiscoveryEntry {
	e.Qos.CustomParameters = slices.Clone(e.Qos.CustomParameters)
	return e
}

// GlobalDiscoveryEntry is a DiscoveryEntry plus its serialized transport address.
type GlobalDiscoveryEntry struct {
	DiscoveryEntry
	Address string `json:"address"`
}

// EqualIgnoringTimestamps compares every field except the two timestamps.
func (g GlobalDiscoveryEntry) EqualIgnoringTimestamps(o GlobalDiscoveryEntry) bool {
	return g.Address == o.Address && g.DiscoveryEntry.EqualIgnoringTimestamps(o.DiscoveryEntry)
}

// Clone returns a deep copy of the entry.
func (g GlobalDiscoveryEntry) Clone() GlobalDiscoveryEntry {
	g.DiscoveryEntry = g.DiscoveryEntry.Clone()
	return g
}

// DiscoveryEntryWithMetaInfo is a lookup result.
type DiscoveryEntryWithMetaInfo struct {
	DiscoveryEntry
	IsLocal bool `json:"isLocal"`
}

// WithMetaInfo wraps entry as a lookup result.
func WithMetaInfo(isLocal bool, entry DiscoveryEntry) DiscoveryEntryWithMetaInfo {
	return DiscoveryEntryWithMetaInfo{DiscoveryEntry: entry.Clone(), IsLocal: isLocal}
}
