// Package biztime provides time utilities for the reconciliation engine.
// All storage and transport use UTC. The business timezone (TZ) is only used
// for human-facing schedule boundaries.
package biztime

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTimezone is used when TZ is unset.
const DefaultTimezone = "UTC"

var (
	bizLocation     *time.Location
	bizLocationOnce sync.Once
	initErr         error
)

// Init initializes the business timezone. Should be called once at startup.
func Init(tz string) error {
	bizLocationOnce.Do(func() {
		if tz == "" {
			tz = DefaultTimezone
		}
		bizLocation, initErr = time.LoadLocation(tz)
	})
	return initErr
}

// MustInit initializes the business timezone and panics on error.
func MustInit(tz string) {
	if err := Init(tz); err != nil {
		panic(fmt.Sprintf("failed to initialize business timezone %q: %v", tz, err))
	}
}

// Location returns the business timezone location, auto-initializing with the
// default when Init was never called.
func Location() *time.Location {
	if bizLocation == nil {
		if err := Init(""); err != nil {
			panic(fmt.Sprintf("biztime: failed to auto-initialize: %v", err))
		}
	}
	return bizLocation
}

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// FormatHTTPDate renders an instant in RFC 1123 GMT form, the format used in
// user-facing access-expiration emails ("Tue, 01 Jan 2030 00:00:00 GMT").
func FormatHTTPDate(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05") + " GMT"
}

// ParseISO parses an RFC 3339 instant, returning nil when the input is empty
// or not parseable. Provider payloads omit or mangle these fields often enough
// that a missing timestamp is treated as absent rather than fatal.
func ParseISO(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
