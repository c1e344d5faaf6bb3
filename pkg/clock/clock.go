// Package clock provides time abstractions for production and testing
package clock

import "time"

// SystemClock provides production time implementation using the standard library
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Fixed is a clock frozen at a single instant.
type Fixed time.Time

// Now returns the frozen instant
func (f Fixed) Now() time.Time {
	return time.Time(f)
}
