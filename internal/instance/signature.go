package instance

import (
	"instanced/pkg/types"
)

// Equivalence decides whether two instance-group configurations are
// interchangeable at runtime. The default ignores fields irrelevant to
// execution (replica count, explicit device-id lists, group name) and
// compares kind, passivity, profiles, host policy, rate-limiter settings
// and secondary devices. Pluggable so callers can tighten or relax the
// rule without touching the grouping pass.
type Equivalence func(a, b types.InstanceGroup) bool

// DefaultEquivalence is the comparison used when none is supplied.
var DefaultEquivalence Equivalence = equivalentGroups

func equivalentGroups(a, b types.InstanceGroup) bool {
	if a.Kind != b.Kind || a.Passive != b.Passive || a.HostPolicy != b.HostPolicy {
		return false
	}
	if len(a.Profiles) != len(b.Profiles) {
		return false
	}
	for i := range a.Profiles {
		if a.Profiles[i] != b.Profiles[i] {
			return false
		}
	}
	if len(a.SecondaryDevices) != len(b.SecondaryDevices) {
		return false
	}
	for i := range a.SecondaryDevices {
		if a.SecondaryDevices[i] != b.SecondaryDevices[i] {
			return false
		}
	}
	return equivalentRateLimiters(a.RateLimiter, b.RateLimiter)
}

func equivalentRateLimiters(a, b *types.RateLimiterSpec) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	if a.Priority != b.Priority || len(a.Resources) != len(b.Resources) {
		return false
	}
	for i := range a.Resources {
		if a.Resources[i] != b.Resources[i] {
			return false
		}
	}
	return true
}

// Signature is the comparable identity of "this device id + this
// instance-group configuration", used to find equivalent instance
// declarations during grouping.
type Signature struct {
	group    types.InstanceGroup
	deviceID int
	canMatch bool
	eq       Equivalence
}

// NewSignature builds a matchable signature using DefaultEquivalence.
func NewSignature(group types.InstanceGroup, deviceID int) *Signature {
	return NewSignatureWith(group, deviceID, nil)
}

// NewSignatureWith builds a matchable signature with a custom equivalence
// predicate; nil selects DefaultEquivalence. Equals evaluates the
// receiver's predicate only, so signatures compared against each other
// should be built with the same one — SetInstances always does.
func NewSignatureWith(group types.InstanceGroup, deviceID int, eq Equivalence) *Signature {
	if eq == nil {
		eq = DefaultEquivalence
	}
	return &Signature{group: group, deviceID: deviceID, canMatch: true, eq: eq}
}

// Equals reports whether s and other are equivalent, if matching is
// enabled on both sides. If matching is disabled on either, the signatures
// compare unequal under all scenarios, including structural identity.
func (s *Signature) Equals(other *Signature) bool {
	if s == nil || other == nil {
		return false
	}
	return s.canMatch && other.canMatch && s.deviceID == other.deviceID &&
		s.eq(s.group, other.group)
}

// EnableMatching re-enables matching. Only an explicit grouping restart
// may call this; a consumed signature must never become matchable
// implicitly.
func (s *Signature) EnableMatching() { s.canMatch = true }

// DisableMatching marks the signature consumed so it is not matched twice
// in the same grouping pass.
func (s *Signature) DisableMatching() { s.canMatch = false }

// DeviceID returns the device id the signature was built for.
func (s *Signature) DeviceID() int { return s.deviceID }

// Group returns the instance-group configuration the signature wraps.
func (s *Signature) Group() types.InstanceGroup { return s.group }
