// Package clock provides the process monotonic clock.
//
// Now() reports elapsed time since an unspecified epoch (roughly process
// start). It never decreases and is immune to wall-clock adjustments, which
// makes it the only clock the wait primitives may use to compute remaining
// timeouts. A platform without a usable monotonic source is a fatal
// condition, not a runtime error.
package clock

import "time"

// Now returns monotonic elapsed time with nanosecond precision.
func Now() time.Duration {
	return monotonicNow()
}
