package iowait

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSys simulates a backend whose native timeout is honored with a real
// sleep, so elapsed-time assertions hold. readyAfter > 0 makes the fd ready
// once that many waitOne calls have happened.
type fakeSys struct {
	calls      atomic.Int64
	readyAfter int64
	err        error
}

func (f *fakeSys) alwaysReady(int, bool) bool { return false }

func (f *fakeSys) waitOne(_ int, _ Direction, timeoutMs int, sig *InterruptSignal) (sysOutcome, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return sysTimeout, f.err
	}
	if f.readyAfter > 0 && n >= f.readyAfter {
		return sysReady, nil
	}
	if timeoutMs != 0 {
		d := time.Duration(timeoutMs) * time.Millisecond
		if timeoutMs < 0 {
			d = 10 * time.Millisecond
		}
		if sig != nil {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-sig.ch:
				select {
				case sig.ch <- struct{}{}:
				default:
				}
				return sysInterrupted, nil
			case <-timer.C:
			}
		} else {
			time.Sleep(d)
		}
	}
	return sysTimeout, nil
}

func TestWaitHonorsTimeoutAcrossNarrowNativeWaits(t *testing.T) {
	t.Parallel()

	sys := &fakeSys{}
	w := &Waiter{sys: sys, clampMs: 20}

	start := time.Now()
	res, err := w.Wait(1, Read, 50*time.Millisecond, false, nil)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res != NotReady {
		t.Fatalf("res = %v, want NotReady", res)
	}
	if elapsed < 50*time.Millisecond {
		t.Fatalf("returned NotReady after %v, before the 50ms timeout", elapsed)
	}
	if got := sys.calls.Load(); got < 3 {
		t.Fatalf("waitOne called %d times, want >= 3 (20ms clamp over a 50ms wait)", got)
	}
}

func TestWaitReady(t *testing.T) {
	t.Parallel()

	w := &Waiter{sys: &fakeSys{readyAfter: 1}, clampMs: maxNativeTimeoutMs}
	res, err := w.Wait(1, Write, time.Second, false, nil)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res != Ready {
		t.Fatalf("res = %v, want Ready", res)
	}
}

func TestWaitZeroTimeoutIsNonBlockingCheck(t *testing.T) {
	t.Parallel()

	sys := &fakeSys{}
	w := &Waiter{sys: sys, clampMs: maxNativeTimeoutMs}

	start := time.Now()
	res, err := w.Wait(1, Read, 0, false, nil)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res != NotReady {
		t.Fatalf("res = %v, want NotReady", res)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("non-blocking check took %v", elapsed)
	}
	// Even a zero timeout performs exactly one real check.
	if got := sys.calls.Load(); got != 1 {
		t.Fatalf("waitOne called %d times, want 1", got)
	}
}

func TestWaitPendingInterruptObservedImmediately(t *testing.T) {
	t.Parallel()

	sig, err := NewInterruptSignal()
	if err != nil {
		t.Fatalf("NewInterruptSignal: %v", err)
	}
	defer sig.Close()
	sig.Raise()

	sys := &fakeSys{}
	w := &Waiter{sys: sys, clampMs: maxNativeTimeoutMs}

	res, err := w.Wait(1, Read, -1, false, sig)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if res != Interrupted {
		t.Fatalf("res = %v, want Interrupted", res)
	}
	if got := sys.calls.Load(); got != 0 {
		t.Fatalf("waitOne called %d times before a pending interrupt, want 0", got)
	}
	if sig.Pending() {
		t.Fatal("interrupt still pending after it was consumed")
	}
}

func TestWaitInterruptDuringWait(t *testing.T) {
	t.Parallel()

	sig, err := NewInterruptSignal()
	if err != nil {
		t.Fatalf("NewInterruptSignal: %v", err)
	}
	defer sig.Close()

	w := &Waiter{sys: &fakeSys{}, clampMs: maxNativeTimeoutMs}

	go func() {
		time.Sleep(20 * time.Millisecond)
		sig.Raise()
	}()

	start := time.Now()
	res, err := w.Wait(1, Read, 10*time.Second, false, sig)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if res != Interrupted {
		t.Fatalf("res = %v, want Interrupted", res)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("interrupt took %v to cut the wait short", elapsed)
	}
}

func TestInterruptEdgeNotLost(t *testing.T) {
	t.Parallel()

	sig, err := NewInterruptSignal()
	if err != nil {
		t.Fatalf("NewInterruptSignal: %v", err)
	}
	defer sig.Close()

	// Two raises with nobody waiting latch exactly one pending edge.
	sig.Raise()
	sig.Raise()
	if !sig.Pending() {
		t.Fatal("raise with no wait in progress was lost")
	}

	w := &Waiter{sys: &fakeSys{readyAfter: 1}, clampMs: maxNativeTimeoutMs}
	if res, _ := w.Wait(1, Read, time.Second, false, sig); res != Interrupted {
		t.Fatalf("first wait = %v, want Interrupted", res)
	}
	// The edge is consumed; the next wait proceeds normally.
	if res, err := w.Wait(1, Read, time.Second, false, sig); err != nil || res != Ready {
		t.Fatalf("second wait = %v, %v, want Ready", res, err)
	}
}

func TestWaitBadDescriptor(t *testing.T) {
	t.Parallel()

	w := &Waiter{sys: &fakeSys{}, clampMs: maxNativeTimeoutMs}
	if _, err := w.Wait(-1, Read, 0, false, nil); !errors.Is(err, ErrBadDescriptor) {
		t.Fatalf("err = %v, want ErrBadDescriptor", err)
	}
}

func TestWaitBackendErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	w := &Waiter{sys: &fakeSys{err: boom}, clampMs: maxNativeTimeoutMs}
	if _, err := w.Wait(1, Read, time.Second, false, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestNativeTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		infinite  bool
		remaining time.Duration
		clampMs   int64
		want      int
	}{
		{"infinite", true, 0, maxNativeTimeoutMs, -1},
		{"zero", false, 0, maxNativeTimeoutMs, 0},
		{"negative", false, -time.Second, maxNativeTimeoutMs, 0},
		{"whole ms", false, 25 * time.Millisecond, maxNativeTimeoutMs, 25},
		{"fractional rounds up", false, 25*time.Millisecond + time.Microsecond, maxNativeTimeoutMs, 26},
		{"sub-ms rounds up", false, time.Microsecond, maxNativeTimeoutMs, 1},
		{"clamped", false, time.Hour, 20, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nativeTimeout(tt.infinite, tt.remaining, tt.clampMs); got != tt.want {
				t.Fatalf("nativeTimeout(%v, %v, %d) = %d, want %d", tt.infinite, tt.remaining, tt.clampMs, got, tt.want)
			}
		})
	}
}

func TestProbeWaiterFallback(t *testing.T) {
	t.Parallel()

	var probes atomic.Int64
	p := probeWaiter{
		probe: func(int, Direction) (bool, error) {
			return probes.Add(1) >= 3, nil
		},
		step: time.Millisecond,
	}
	w := &Waiter{sys: p, clampMs: maxNativeTimeoutMs}

	res, err := w.Wait(1, Read, time.Second, false, nil)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res != Ready {
		t.Fatalf("res = %v, want Ready", res)
	}
	if got := probes.Load(); got < 3 {
		t.Fatalf("probed %d times, want >= 3", got)
	}
}

func TestRegistryRaiseAll(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	a, err := reg.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	b, err := reg.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("Len = %d, want 2", reg.Len())
	}

	reg.RaiseAll()
	if !a.Pending() || !b.Pending() {
		t.Fatal("RaiseAll left a signal unraised")
	}

	reg.Release(a)
	reg.Release(a) // double release is harmless
	reg.Release(nil)
	if reg.Len() != 1 {
		t.Fatalf("Len = %d after release, want 1", reg.Len())
	}
	reg.Release(b)
}
