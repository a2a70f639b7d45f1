//go:build !linux

package clock

import "time"

// Go's time package carries a monotonic reading in every time.Time, so
// time.Since is step-free on all supported platforms.
var epoch = time.Now()

func monotonicNow() time.Duration {
	return time.Since(epoch)
}
