// Package access decides whether a public request may execute a composition.
// The decision is a pure function over the composition's access tier and the
// caller's authentication state; it holds no state and is safe for
// concurrent use.
package access

// Level is a composition's access tier.
type Level string

const (
	LevelPublic   Level = "public"
	LevelInternal Level = "internal"
	LevelPrivate  Level = "private"
)

// Valid reports whether l is a recognized access level.
func (l Level) Valid() bool {
	switch l {
	case LevelPublic, LevelInternal, LevelPrivate:
		return true
	}
	return false
}

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Status  int // HTTP-style status: 200, 401, 403, or 404
	Reason  string
}

// Check evaluates the access truth table for the public execution path.
// Missing and inactive compositions are indistinguishable to the caller
// (both 404) so probing cannot reveal which private endpoints exist.
// This is a PURE function - no side effects, deterministic.
func Check(level Level, authenticated, exists, active bool) Decision {
	if !exists || !active {
		return Decision{Allowed: false, Status: 404, Reason: "not_found"}
	}

	switch level {
	case LevelPublic:
		return Decision{Allowed: true, Status: 200}
	case LevelInternal:
		if !authenticated {
			return Decision{Allowed: false, Status: 401, Reason: "unauthorized"}
		}
		return Decision{Allowed: true, Status: 200}
	case LevelPrivate:
		return Decision{Allowed: false, Status: 403, Reason: "forbidden"}
	}

	// Unrecognized tier: treat like private rather than leak anything.
	return Decision{Allowed: false, Status: 403, Reason: "forbidden"}
}
