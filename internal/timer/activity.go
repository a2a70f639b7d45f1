package timer

// Activity is the idle-detection state sampled once per tick.
//
// Only the tick handler advances the machine; any thread that performs
// scheduler work resets it to Active through SetActive. The transitions:
//
//	Active     --tick-->  MaybeIdle   (idle countdown reset)
//	MaybeIdle  --countdown reaches 0-->
//	             Idle     when idle GC is enabled (scheduler woken; it
//	                      stops the timer once the GC is done)
//	             DoneGC   when idle GC is disabled (timer stopped outright,
//	                      unless profiling needs the ticks)
//	any        --SetActive-->  Active
type Activity int32

const (
	// Active means scheduler work happened since the last tick.
	Active Activity = iota
	// MaybeIdle means one quiet tick has passed; the countdown is running.
	MaybeIdle
	// Idle means the quiet period elapsed and an idle GC has been requested.
	Idle
	// DoneGC means the quiet period elapsed with idle GC disabled.
	DoneGC
)

func (a Activity) String() string {
	switch a {
	case Active:
		return "active"
	case MaybeIdle:
		return "maybe-idle"
	case Idle:
		return "idle"
	case DoneGC:
		return "done-gc"
	}
	return "unknown"
}

// SetActive records scheduler activity. Safe from any goroutine; a plain
// atomic store is enough because the handler samples the state exactly once
// per tick.
func (t *Timer) SetActive() {
	t.activity.Store(int32(Active))
}

// Activity returns the current idle-detection state.
func (t *Timer) Activity() Activity {
	return Activity(t.activity.Load())
}
