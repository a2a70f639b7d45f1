// Package timer is the interval timer service: it drives profiler sampling,
// forced context switches for the scheduler, and idle-GC detection off a
// single platform tick source.
//
// The service is a process-wide singleton. Its tick handler is the only
// writer of the countdown state; external collaborators interact with it
// through three narrow surfaces: the Start/Stop gate, SetActive, and the
// hooks they registered at construction.
package timer

import (
	"fmt"
	"sync/atomic"
	"time"

	"runtick/internal/ticker"
	"runtick/pkg/logx"
)

// Config carries the recognized timer options.
//
// TickInterval 0 disables ticking entirely; CtxtSwitchTicks 0 disables
// forced preemption. All other fields may be changed at runtime via Apply.
type Config struct {
	TickInterval    time.Duration
	Strategy        ticker.Strategy
	CtxtSwitchTicks int
	IdleGCDelay     time.Duration
	DoIdleGC        bool

	// InterruptBlockedWorkers raises every registered worker interrupt
	// signal alongside each context-switch request. Needed on platforms
	// where a blocking wait is not cut short by asynchronous notification
	// alone; on POSIX-style platforms the tick delivery itself interrupts
	// syscalls and this can stay false.
	InterruptBlockedWorkers bool

	// ProfilingEnabled keeps the sample hook firing and prevents the
	// idle path from stopping tick delivery.
	ProfilingEnabled bool
}

// Hooks are the outbound collaborator calls. Each is invoked from the tick
// handler, so implementations must be non-blocking and allocation-shy; nil
// hooks are skipped.
type Hooks struct {
	// ProfSample records one profiling sample.
	ProfSample func()
	// ContextSwitchAll requests a context switch on every scheduler
	// capability at its next safe point. Fire and forget.
	ContextSwitchAll func()
	// WakeScheduler wakes the scheduler to run an idle GC pass. The
	// scheduler is responsible for calling Stop() once the GC completes.
	WakeScheduler func()
	// InterruptWorkers raises the interrupt signal of every worker that
	// may be blocked in a non-interruptible wait.
	InterruptWorkers func()
}

// Timer owns the platform ticker and the tick bookkeeping.
type Timer struct {
	interval time.Duration
	strategy ticker.Strategy
	hooks    Hooks
	tk       ticker.Ticker
	log      logx.Logger
	warn     *logx.Limited

	// Gate counter: 0 = tick delivery enabled, N>0 = disabled by N
	// outstanding Stop calls. New leaves it at 1.
	disabled atomic.Int64

	// idleStopped marks that the idle path stopped delivery, so Wake knows
	// it owes the matching Start.
	idleStopped atomic.Bool

	// Reloadable knobs, read once per tick.
	ctxtSwitchTicks atomic.Int32
	idleGCTicks     atomic.Int32
	doIdleGC        atomic.Bool
	interruptOnTick atomic.Bool

	profilingConfigured bool
	profPaused          atomic.Int32

	activity atomic.Int32

	// Tick-handler-only state; never touched from any other goroutine.
	ticksToCtxtSwitch int
	ticksToGC         int

	stats stats
}

// New installs the timer without starting delivery: the gate starts at 1
// (disabled) and the first Start() arms the ticker. A platform resource
// failure is returned as an error and is fatal to the caller.
func New(cfg Config, hooks Hooks, log logx.Logger) (*Timer, error) {
	t := newCore(cfg, hooks, log)
	tk, err := ticker.New(cfg.TickInterval, cfg.Strategy, t.tick, log)
	if err != nil {
		return nil, fmt.Errorf("timer: %w", err)
	}
	t.tk = tk
	return t, nil
}

// newCore builds the bookkeeping without a platform ticker; tests install
// their own ticker through it.
func newCore(cfg Config, hooks Hooks, log logx.Logger) *Timer {
	t := &Timer{
		interval:            cfg.TickInterval,
		strategy:            cfg.Strategy,
		hooks:               hooks,
		log:                 log,
		warn:                logx.NewLimited(log, 1),
		profilingConfigured: cfg.ProfilingEnabled,
	}
	t.disabled.Store(1)
	t.activity.Store(int32(Active))
	t.applyKnobs(cfg)
	return t
}

// Start enables tick delivery. Start/Stop pairs nest: delivery is physically
// armed only when the outstanding-Stop count returns to zero, and that
// transition arms the ticker exactly once no matter how calls interleave
// across goroutines.
func (t *Timer) Start() {
	if t.disabled.Add(-1) == 0 {
		t.tk.Start()
	}
}

// Stop disables tick delivery. The 0 -> 1 transition disarms the ticker; an
// in-flight tick may still be completing when Stop returns. Callers must
// pair every Stop with a later Start.
func (t *Timer) Stop() {
	if t.disabled.Add(1) == 1 {
		t.tk.Stop()
	}
}

// Exit releases the platform timer resource. With wait=true it blocks until
// an in-flight tick callback has finished.
func (t *Timer) Exit(wait bool) {
	t.tk.Exit(wait)
}

// Wake records fresh scheduler work and restarts tick delivery if the idle
// path had stopped it. Unlike a bare Start it never unbalances the gate, so
// any work source may call it freely.
func (t *Timer) Wake() {
	t.SetActive()
	if t.idleStopped.CompareAndSwap(true, false) {
		t.Start()
	}
}

// GCDone records that the idle GC requested through WakeScheduler has
// completed. The state moves to DoneGC and delivery stops until the next
// Wake, unless profiling still needs the ticks.
func (t *Timer) GCDone() {
	t.activity.Store(int32(DoneGC))
	if !t.profilingConfigured {
		t.idleStopped.Store(true)
		t.Stop()
	}
}

// Apply installs the reloadable subset of cfg. It reports whether cfg also
// differs in fields that require a restart (interval, strategy, profiling).
func (t *Timer) Apply(cfg Config) (restartRequired bool) {
	t.applyKnobs(cfg)
	return cfg.TickInterval != t.interval ||
		cfg.Strategy != t.strategy ||
		cfg.ProfilingEnabled != t.profilingConfigured
}

func (t *Timer) applyKnobs(cfg Config) {
	t.ctxtSwitchTicks.Store(int32(cfg.CtxtSwitchTicks))
	t.idleGCTicks.Store(int32(idleTicks(cfg.IdleGCDelay, t.interval)))
	t.doIdleGC.Store(cfg.DoIdleGC)
	t.interruptOnTick.Store(cfg.InterruptBlockedWorkers)
}

// idleTicks converts the idle-GC delay into whole ticks, at least one.
func idleTicks(delay, interval time.Duration) int {
	if interval <= 0 || delay <= 0 {
		return 0
	}
	n := int(delay / interval)
	if n < 1 {
		n = 1
	}
	return n
}

// PauseProfiling suspends sample collection. Pairs nest like the gate.
func (t *Timer) PauseProfiling() { t.profPaused.Add(1) }

// ResumeProfiling undoes one PauseProfiling.
func (t *Timer) ResumeProfiling() { t.profPaused.Add(-1) }

func (t *Timer) profilingActive() bool {
	return t.profilingConfigured && t.profPaused.Load() == 0
}
