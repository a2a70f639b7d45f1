package timer

import "runtick/pkg/logx"

// tick is the single tick entry point. The ticker strategies guarantee at
// most one invocation in flight, so everything here is single-writer. The
// body must stay allocation-free and lock-free: it can run thousands of
// times per second and, under the signal strategy, right after a signal
// delivery.
//
// A panic in a hook is a collaborator bug, not a reason to kill the whole
// runtime: the remaining bookkeeping for that tick is skipped, the tick is
// counted as bad, and a rate-limited error is logged.
func (t *Timer) tick() {
	defer func() {
		if r := recover(); r != nil {
			t.stats.badTicks.Add(1)
			t.warn.Error("tick handler panicked; bookkeeping skipped", logx.Any("panic", r))
		}
	}()

	t.stats.ticks.Add(1)

	if t.profilingActive() {
		if f := t.hooks.ProfSample; f != nil {
			f()
		}
	}

	if period := int(t.ctxtSwitchTicks.Load()); period > 0 {
		t.ticksToCtxtSwitch--
		if t.ticksToCtxtSwitch <= 0 {
			t.ticksToCtxtSwitch = period
			t.stats.ctxtSwitches.Add(1)
			if f := t.hooks.ContextSwitchAll; f != nil {
				f()
			}
			// A worker blocked in a wait that asynchronous notification
			// cannot cut short would never reach the switch point; raising
			// its interrupt signal makes the wait return retryably.
			if t.interruptOnTick.Load() {
				if f := t.hooks.InterruptWorkers; f != nil {
					f()
				}
			}
		}
	}

	switch Activity(t.activity.Load()) {
	case Active:
		t.activity.Store(int32(MaybeIdle))
		t.ticksToGC = int(t.idleGCTicks.Load())
	case MaybeIdle:
		if t.ticksToGC > 0 {
			t.ticksToGC--
			break
		}
		if t.doIdleGC.Load() {
			t.activity.Store(int32(Idle))
			t.stats.idleGCs.Add(1)
			if f := t.hooks.WakeScheduler; f != nil {
				f()
			}
			// The scheduler stops the timer once the GC has run.
		} else {
			t.activity.Store(int32(DoneGC))
			// Nothing left to do per tick; shut delivery down unless
			// profiling still needs samples collected.
			if !t.profilingConfigured {
				t.idleStopped.Store(true)
				t.Stop()
			}
		}
	default:
		// Idle / DoneGC: a collaborator flips us back to Active on real
		// work; until then ticks carry no timer-state action.
	}
}
