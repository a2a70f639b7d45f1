// Package iowait implements the interruptible descriptor-readiness wait.
//
// Wait blocks until a descriptor is ready for I/O, a timeout elapses, or the
// calling worker's InterruptSignal is raised — whichever comes first. The
// timeout contract is strict: Wait never reports NotReady before the full
// requested duration of real time has passed, even when the platform's
// native timeout type is narrower than the request or the underlying
// primitive wakes early. In those cases it recomputes the remaining time
// from the monotonic clock and waits again, finishing with one final
// non-blocking check so readiness that arrived late is never misreported
// as a timeout.
package iowait

import (
	"errors"
	"fmt"
	"math"
	"time"

	"runtick/internal/clock"
)

// Direction selects which readiness to wait for.
type Direction int

const (
	// Read waits until a read would not block.
	Read Direction = iota
	// Write waits until a write would not block.
	Write
)

// Result of a Wait.
type Result int

const (
	// NotReady: the timeout elapsed with the descriptor still not ready.
	NotReady Result = iota
	// Ready: the descriptor is ready for the requested direction.
	Ready
	// Interrupted: the wait was cut short by the interrupt signal or by a
	// retryable OS interruption; the caller decides whether to retry with
	// the reduced remaining timeout.
	Interrupted
)

func (r Result) String() string {
	switch r {
	case NotReady:
		return "not-ready"
	case Ready:
		return "ready"
	case Interrupted:
		return "interrupted"
	}
	return "unknown"
}

var (
	// ErrInterrupted marks a retryable interruption (EINTR-equivalent).
	ErrInterrupted = errors.New("iowait: wait interrupted")
	// ErrBadDescriptor marks a programmer error: the descriptor is not
	// valid. Callers treat it as fatal, not retryable.
	ErrBadDescriptor = errors.New("iowait: invalid descriptor")
)

// sysOutcome is the result of one native wait round.
type sysOutcome int

const (
	sysTimeout sysOutcome = iota
	sysReady
	sysInterrupted
)

// sysWaiter is the platform blocking primitive behind Wait. waitOne blocks
// for at most timeoutMs milliseconds (-1 = indefinitely) and may return
// sysTimeout early; the portable loop in Wait re-checks the monotonic clock,
// so early wakeups cost a retry but never break the timeout contract.
type sysWaiter interface {
	waitOne(fd int, dir Direction, timeoutMs int, sig *InterruptSignal) (sysOutcome, error)
	alwaysReady(fd int, isSock bool) bool
}

// Waiter runs interruptible waits over the platform primitive.
type Waiter struct {
	sys sysWaiter

	// clampMs is the widest timeout the native primitive accepts, in
	// milliseconds. Requests wider than this loop internally. Tests narrow
	// it to force the loop; production uses the poll(2) limit.
	clampMs int64
}

const maxNativeTimeoutMs = math.MaxInt32

// NewWaiter returns a Waiter backed by the platform primitive.
func NewWaiter() *Waiter {
	return &Waiter{sys: newSysWaiter(), clampMs: maxNativeTimeoutMs}
}

// std is the process-wide waiter used by FdReady.
var std = NewWaiter()

// Wait blocks until fd is ready for dir, timeout elapses, or sig is raised.
//
// timeout < 0 waits indefinitely; timeout == 0 is a non-blocking check.
// sig may be nil for an uninterruptible wait. An interrupt raised before the
// call is observed immediately (the edge is latched, never lost).
func (w *Waiter) Wait(fd int, dir Direction, timeout time.Duration, isSock bool, sig *InterruptSignal) (Result, error) {
	if fd < 0 {
		return NotReady, fmt.Errorf("%w: %d", ErrBadDescriptor, fd)
	}
	if sig.Consume() {
		return Interrupted, ErrInterrupted
	}
	if w.sys.alwaysReady(fd, isSock) {
		return Ready, nil
	}

	infinite := timeout < 0
	remaining := timeout
	var deadline time.Duration
	if !infinite && timeout > 0 {
		deadline = clock.Now() + timeout
	}

	for {
		out, err := w.sys.waitOne(fd, dir, nativeTimeout(infinite, remaining, w.clampMs), sig)
		if err != nil {
			return NotReady, err
		}
		switch out {
		case sysReady:
			return Ready, nil
		case sysInterrupted:
			sig.Consume()
			return Interrupted, ErrInterrupted
		}

		// Native timeout elapsed (or the primitive woke early).
		if infinite {
			continue
		}
		if remaining <= 0 {
			// The wait just completed was the final non-blocking check.
			return NotReady, nil
		}
		remaining = deadline - clock.Now()
	}
}

// nativeTimeout converts the remaining duration into the platform timeout.
// Fractional milliseconds round up so the native wait is always at least the
// remaining time; values beyond the clamp are cut and handled by looping.
func nativeTimeout(infinite bool, remaining time.Duration, clampMs int64) int {
	if infinite {
		return -1
	}
	if remaining <= 0 {
		return 0
	}
	ms := remaining.Milliseconds()
	if ms >= clampMs {
		return int(clampMs)
	}
	if time.Duration(ms)*time.Millisecond != remaining {
		ms++
	}
	return int(ms)
}

// FdReady reports whether fd is ready for I/O within msecs milliseconds
// (indefinitely if msecs is negative), racing the wait against sig.
//
// The return value follows the POSIX-style tri-state convention:
//
//	 1 -> ready
//	 0 -> not ready before the timeout
//	-1 -> error; errors.Is(err, ErrInterrupted) marks the retryable case,
//	      anything else is a genuine I/O failure
//
// Sockets must be in non-blocking mode for the readiness report to be
// dependable; pass isSock accordingly.
func FdReady(fd int, write bool, msecs int64, isSock bool, sig *InterruptSignal) (int, error) {
	dir := Read
	if write {
		dir = Write
	}
	timeout := time.Duration(-1)
	if msecs >= 0 {
		timeout = time.Duration(msecs) * time.Millisecond
	}
	res, err := std.Wait(fd, dir, timeout, isSock, sig)
	if err != nil {
		return -1, err
	}
	switch res {
	case Ready:
		return 1, nil
	case Interrupted:
		return -1, ErrInterrupted
	default:
		return 0, nil
	}
}
