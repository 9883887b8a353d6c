// Package system provides the wall clock used for timestamps and run durations.
package system

import "time"

// Clock implements crawler.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC, truncated to the millisecond precision
// used by persisted timestamps.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
