//go:build linux

package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

// epoch pins the monotonic origin so Now() starts near zero instead of at
// system boot time.
var epoch = rawMonotonic()

func monotonicNow() time.Duration {
	return rawMonotonic() - epoch
}

func rawMonotonic() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// CLOCK_MONOTONIC is unconditionally available on every kernel we
		// support; failure here means the process cannot keep time at all.
		panic("clock: clock_gettime(CLOCK_MONOTONIC) failed: " + err.Error())
	}
	return time.Duration(ts.Nano())
}
