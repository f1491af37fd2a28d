// Package gbid validates backend identifiers (GBIDs) against the configured list.
package gbid

import (
	"slices"

	"github.com/kbukum/capdir/errors"
)

// Validate checks requested against known.
//
// An empty request selects all known gbids. Otherwise every element must be
// non-empty, unique and known; elements are checked in order and the first
// violation is returned. The result is a copy in request order.
func Validate(requested, known []string) ([]string, error) {
	if len(requested) == 0 {
		return slices.Clone(known), nil
	}

	seen := make(map[string]struct{}, len(requested))
	for _, g := range requested {
		if g == "" {
			return nil, errors.InvalidGbid(g, "gbid must not be empty")
		}
		if _, dup := seen[g]; dup {
			return nil, errors.InvalidGbid(g, "gbid must not be repeated")
		}
		seen[g] = struct{}{}
		if !slices.Contains(known, g) {
			return nil, errors.UnknownGbid(g)
		}
	}
	return slices.Clone(requested), nil
}

// Validator validates requests against a fixed list of known gbids.
type Validator struct {
	known []string
}

// NewValidator returns a Validator bound to known. The first element is the default gbid.
func NewValidator(known []string) *Validator {
	return &Validator{known: slices.Clone(known)}
}

// Validate checks requested against the known list.
func (v *Validator) Validate(requested []string) ([]string, error) {
	return Validate(requested, v.known)
}

// Known returns a copy of the known gbids.
func (v *Validator) Known() []string {
	return slices.Clone(v.known)
}

// Default returns the default gbid, or "" if none is configured.
func (v *Validator) Default() string {
	if len(v.known) == 0 {
		return ""
	}
	return v.known[0]
}

// IsKnown reports whether g is configured.
func (v *Validator) IsKnown(g string) bool {
	return slices.Contains(v.known, g)
}
