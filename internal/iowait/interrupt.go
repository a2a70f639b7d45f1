package iowait

import "sync/atomic"

// InterruptSignal is a latched, per-worker wakeup. Raise sets the latch and
// wakes any wait in progress; Consume clears it. A raise with no wait in
// progress stays pending and interrupts the next wait, so the edge is never
// lost. All methods are safe for concurrent use and safe on a nil receiver.
type InterruptSignal struct {
	pending atomic.Bool
	ch      chan struct{}

	// Pollable wake descriptors, platform-dependent. hasFd is false where
	// no such primitive exists; waits then race on ch instead.
	rfd, wfd int
	hasFd    bool

	id uint64
}

// NewInterruptSignal returns a fresh, unraised signal. Callers that want
// registry-wide raising should use Registry.Acquire instead.
func NewInterruptSignal() (*InterruptSignal, error) {
	s := &InterruptSignal{ch: make(chan struct{}, 1), rfd: -1, wfd: -1}
	if err := s.initWake(); err != nil {
		return nil, err
	}
	return s, nil
}

// Raise latches the interrupt and wakes the current wait, if any. Raising an
// already-pending signal is a no-op.
func (s *InterruptSignal) Raise() {
	if s == nil {
		return
	}
	if !s.pending.CompareAndSwap(false, true) {
		return
	}
	select {
	case s.ch <- struct{}{}:
	default:
	}
	s.wake()
}

// Pending reports whether an unconsumed raise is latched.
func (s *InterruptSignal) Pending() bool {
	return s != nil && s.pending.Load()
}

// Consume clears a pending raise and reports whether one was pending.
func (s *InterruptSignal) Consume() bool {
	if s == nil {
		return false
	}
	if !s.pending.CompareAndSwap(true, false) {
		return false
	}
	select {
	case <-s.ch:
	default:
	}
	s.drain()
	return true
}

// Close releases the wake descriptors. The signal must not be used after.
func (s *InterruptSignal) Close() error {
	if s == nil {
		return nil
	}
	return s.closeWake()
}
