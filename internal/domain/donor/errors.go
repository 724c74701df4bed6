package donor

import "errors"

var (
	// ErrNotFound is returned when no donor matches the lookup.
	ErrNotFound = errors.New("donor not found")
	// ErrDuplicateSubscription is returned when the per-provider
	// subscription ID uniqueness invariant would be violated.
	ErrDuplicateSubscription = errors.New("subscription already linked to another donor")
)
