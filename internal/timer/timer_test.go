package timer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"runtick/internal/ticker"
	"runtick/pkg/logx"
)

// fakeTicker records arm/disarm transitions without any real timing.
type fakeTicker struct {
	armed  atomic.Bool
	starts atomic.Int64
	stops  atomic.Int64
	exited atomic.Bool
}

func (f *fakeTicker) Start() {
	f.armed.Store(true)
	f.starts.Add(1)
}

func (f *fakeTicker) Stop() {
	f.armed.Store(false)
	f.stops.Add(1)
}

func (f *fakeTicker) Exit(bool) { f.exited.Store(true) }

func newTestTimer(cfg Config, hooks Hooks) (*Timer, *fakeTicker) {
	t := newCore(cfg, hooks, logx.Nop())
	ft := &fakeTicker{}
	t.tk = ft
	return t, ft
}

func TestGateArmsOnFirstStart(t *testing.T) {
	t.Parallel()
	tm, ft := newTestTimer(Config{TickInterval: time.Millisecond}, Hooks{})

	if ft.armed.Load() {
		t.Fatal("ticker armed before Start")
	}
	tm.Start()
	if !ft.armed.Load() {
		t.Fatal("ticker not armed after initial Start")
	}

	// Nested Stop/Stop/Start/Start: only the outermost transitions touch
	// the ticker.
	tm.Stop()
	tm.Stop()
	if ft.armed.Load() {
		t.Fatal("ticker armed while disabled")
	}
	tm.Start()
	if ft.armed.Load() {
		t.Fatal("ticker armed with one Stop still outstanding")
	}
	tm.Start()
	if !ft.armed.Load() {
		t.Fatal("ticker not re-armed after matching Starts")
	}

	if s := ft.starts.Load(); s != 2 {
		t.Fatalf("physical starts = %d, want 2", s)
	}
	if s := ft.stops.Load(); s != 1 {
		t.Fatalf("physical stops = %d, want 1", s)
	}
}

func TestGateConcurrentPairs(t *testing.T) {
	t.Parallel()
	tm, ft := newTestTimer(Config{TickInterval: time.Millisecond}, Hooks{})
	tm.Start()

	const workers = 16
	const rounds = 200
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				tm.Stop()
				tm.Start()
			}
		}()
	}
	wg.Wait()

	// All pairs matched: counter back to zero, ticker armed.
	if got := tm.disabled.Load(); got != 0 {
		t.Fatalf("gate counter = %d after paired calls, want 0", got)
	}
	if !ft.armed.Load() {
		t.Fatal("ticker not armed after all pairs matched")
	}
	// Every physical stop must have a matching physical start plus the
	// initial arm.
	if ft.starts.Load() != ft.stops.Load()+1 {
		t.Fatalf("starts = %d, stops = %d; want starts == stops+1",
			ft.starts.Load(), ft.stops.Load())
	}
}

func TestZeroIntervalTimerIsNoop(t *testing.T) {
	t.Parallel()
	var fired atomic.Int64
	tm, err := New(Config{TickInterval: 0}, Hooks{
		ProfSample: func() { fired.Add(1) },
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tm.Start()
	time.Sleep(20 * time.Millisecond)
	tm.Stop()
	tm.Exit(true)
	if n := fired.Load(); n != 0 {
		t.Fatalf("hooks fired %d times with interval 0", n)
	}
	if n := tm.Stats().Ticks; n != 0 {
		t.Fatalf("counted %d ticks with interval 0", n)
	}
}

func TestContextSwitchEveryNTicks(t *testing.T) {
	t.Parallel()
	var switches atomic.Int64
	tm, _ := newTestTimer(Config{
		TickInterval:    time.Millisecond,
		CtxtSwitchTicks: 5,
	}, Hooks{
		ContextSwitchAll: func() { switches.Add(1) },
	})
	// Keep the idle machinery quiet.
	for i := 0; i < 50; i++ {
		tm.SetActive()
		tm.tick()
	}
	// The countdown starts exhausted, so requests land on ticks 1, 6, 11,
	// ..., 46: ten in the first 50 ticks.
	if got := switches.Load(); got != 10 {
		t.Fatalf("context switches after 50 ticks = %d, want 10", got)
	}
	tm.SetActive()
	tm.tick() // tick 51 completes the period begun at tick 46
	if got := switches.Load(); got != 11 {
		t.Fatalf("context switches = %d, want 11", got)
	}
	// The reset starts a fresh 5-tick count: 4 quiet ticks, then one more.
	for i := 0; i < 4; i++ {
		tm.SetActive()
		tm.tick()
	}
	if got := switches.Load(); got != 11 {
		t.Fatalf("context switch fired early: %d, want 11", got)
	}
	tm.SetActive()
	tm.tick()
	if got := switches.Load(); got != 12 {
		t.Fatalf("context switches = %d, want 12", got)
	}
}

func TestContextSwitchDisabled(t *testing.T) {
	t.Parallel()
	var switches atomic.Int64
	tm, _ := newTestTimer(Config{
		TickInterval: time.Millisecond,
	}, Hooks{
		ContextSwitchAll: func() { switches.Add(1) },
	})
	for i := 0; i < 100; i++ {
		tm.tick()
	}
	if got := switches.Load(); got != 0 {
		t.Fatalf("got %d context switches with preemption disabled", got)
	}
}

func TestInterruptWorkersRaisedWithSwitch(t *testing.T) {
	t.Parallel()
	var raised atomic.Int64
	tm, _ := newTestTimer(Config{
		TickInterval:            time.Millisecond,
		CtxtSwitchTicks:         2,
		InterruptBlockedWorkers: true,
	}, Hooks{
		InterruptWorkers: func() { raised.Add(1) },
	})
	for i := 0; i < 6; i++ {
		tm.SetActive()
		tm.tick()
	}
	if got := raised.Load(); got != 3 {
		t.Fatalf("worker interrupts = %d, want 3", got)
	}
}

func TestIdleGCWakesScheduler(t *testing.T) {
	t.Parallel()
	var wakes atomic.Int64
	tm, ft := newTestTimer(Config{
		TickInterval: 10 * time.Millisecond,
		IdleGCDelay:  30 * time.Millisecond, // 3 ticks
		DoIdleGC:     true,
	}, Hooks{
		WakeScheduler: func() { wakes.Add(1) },
	})
	tm.Start()

	// Tick 1: Active -> MaybeIdle, countdown = 3.
	// Ticks 2-4: countdown 3 -> 0. Tick 5: wake.
	for i := 0; i < 5; i++ {
		if wakes.Load() != 0 {
			t.Fatalf("idle GC fired early at tick %d", i)
		}
		tm.tick()
	}
	if got := wakes.Load(); got != 1 {
		t.Fatalf("idle GC wakes = %d, want 1", got)
	}
	if got := tm.Activity(); got != Idle {
		t.Fatalf("activity = %v, want %v", got, Idle)
	}
	// Further quiet ticks must not wake again.
	for i := 0; i < 10; i++ {
		tm.tick()
	}
	if got := wakes.Load(); got != 1 {
		t.Fatalf("idle GC woke again while already idle: %d", got)
	}
	// Scheduler stops the timer after the GC, work resumes, the next idle
	// period wakes exactly once more.
	tm.Stop()
	tm.SetActive()
	tm.Start()
	if !ft.armed.Load() {
		t.Fatal("ticker not re-armed on activity resume")
	}
	for i := 0; i < 5; i++ {
		tm.tick()
	}
	if got := wakes.Load(); got != 2 {
		t.Fatalf("idle GC wakes after resume = %d, want 2", got)
	}
}

func TestIdleWithoutGCStopsTimer(t *testing.T) {
	t.Parallel()
	tm, ft := newTestTimer(Config{
		TickInterval: 10 * time.Millisecond,
		IdleGCDelay:  10 * time.Millisecond, // 1 tick
		DoIdleGC:     false,
	}, Hooks{})
	tm.Start()
	for i := 0; i < 3; i++ {
		tm.tick()
	}
	if got := tm.Activity(); got != DoneGC {
		t.Fatalf("activity = %v, want %v", got, DoneGC)
	}
	if ft.armed.Load() {
		t.Fatal("ticker still armed after idle shutdown")
	}
}

func TestIdleWithProfilingKeepsTicking(t *testing.T) {
	t.Parallel()
	var samples atomic.Int64
	tm, ft := newTestTimer(Config{
		TickInterval:     10 * time.Millisecond,
		IdleGCDelay:      10 * time.Millisecond,
		DoIdleGC:         false,
		ProfilingEnabled: true,
	}, Hooks{
		ProfSample: func() { samples.Add(1) },
	})
	tm.Start()
	for i := 0; i < 5; i++ {
		tm.tick()
	}
	if got := tm.Activity(); got != DoneGC {
		t.Fatalf("activity = %v, want %v", got, DoneGC)
	}
	if !ft.armed.Load() {
		t.Fatal("ticker stopped while profiling is active")
	}
	if samples.Load() != 5 {
		t.Fatalf("samples = %d, want 5", samples.Load())
	}
}

func TestProfilingPauseNests(t *testing.T) {
	t.Parallel()
	var samples atomic.Int64
	tm, _ := newTestTimer(Config{
		TickInterval:     time.Millisecond,
		ProfilingEnabled: true,
	}, Hooks{
		ProfSample: func() { samples.Add(1) },
	})
	tm.tick()
	tm.PauseProfiling()
	tm.PauseProfiling()
	tm.tick()
	tm.ResumeProfiling()
	tm.tick()
	tm.ResumeProfiling()
	tm.tick()
	if got := samples.Load(); got != 2 {
		t.Fatalf("samples = %d, want 2 (paused ticks must not sample)", got)
	}
}

func TestTickHookPanicIsContained(t *testing.T) {
	t.Parallel()
	tm, _ := newTestTimer(Config{
		TickInterval:    time.Millisecond,
		CtxtSwitchTicks: 1,
	}, Hooks{
		ContextSwitchAll: func() { panic("collaborator bug") },
	})
	for i := 0; i < 3; i++ {
		tm.SetActive()
		tm.tick()
	}
	st := tm.Stats()
	if st.BadTicks != 3 {
		t.Fatalf("bad ticks = %d, want 3", st.BadTicks)
	}
	if st.Ticks != 3 {
		t.Fatalf("ticks = %d, want 3", st.Ticks)
	}
}

func TestApplyReloadsKnobs(t *testing.T) {
	t.Parallel()
	var switches atomic.Int64
	cfg := Config{
		TickInterval:    time.Millisecond,
		Strategy:        ticker.StrategyThread,
		CtxtSwitchTicks: 2,
	}
	tm, _ := newTestTimer(cfg, Hooks{
		ContextSwitchAll: func() { switches.Add(1) },
	})
	tm.SetActive()
	tm.tick() // fires immediately, countdown reset to 2
	tm.tick() // countdown 1

	next := cfg
	next.CtxtSwitchTicks = 3
	if tm.Apply(next) {
		t.Fatal("knob-only change reported restart required")
	}
	tm.tick() // old countdown exhausts: fires, reset to the new period 3
	if got := switches.Load(); got != 2 {
		t.Fatalf("switches = %d, want 2", got)
	}
	tm.tick()
	tm.tick()
	if got := switches.Load(); got != 2 {
		t.Fatal("context switch fired before the new period elapsed")
	}
	tm.tick()
	if got := switches.Load(); got != 3 {
		t.Fatal("context switch did not fire at the new period")
	}

	next.TickInterval = 2 * time.Millisecond
	if !tm.Apply(next) {
		t.Fatal("interval change did not report restart required")
	}
}

func TestGCDoneStopsUntilWake(t *testing.T) {
	t.Parallel()
	var wakes atomic.Int64
	tm, ft := newTestTimer(Config{
		TickInterval: 10 * time.Millisecond,
		IdleGCDelay:  10 * time.Millisecond, // 1 tick
		DoIdleGC:     true,
	}, Hooks{
		WakeScheduler: func() { wakes.Add(1) },
	})
	tm.Start()

	for i := 0; i < 3; i++ {
		tm.tick()
	}
	if wakes.Load() != 1 {
		t.Fatalf("wakes = %d, want 1", wakes.Load())
	}

	// Scheduler finishes the idle GC.
	tm.GCDone()
	if got := tm.Activity(); got != DoneGC {
		t.Fatalf("activity = %v, want %v", got, DoneGC)
	}
	if ft.armed.Load() {
		t.Fatal("ticker still armed after GCDone")
	}

	// Fresh work restarts delivery; a second Wake is a no-op.
	tm.Wake()
	if !ft.armed.Load() {
		t.Fatal("ticker not re-armed by Wake")
	}
	if got := tm.Activity(); got != Active {
		t.Fatalf("activity = %v, want %v", got, Active)
	}
	starts := ft.starts.Load()
	tm.Wake()
	if ft.starts.Load() != starts {
		t.Fatal("second Wake re-armed the ticker")
	}
}

func TestWakeAfterIdleShutdownWithoutGC(t *testing.T) {
	t.Parallel()
	tm, ft := newTestTimer(Config{
		TickInterval: 10 * time.Millisecond,
		IdleGCDelay:  10 * time.Millisecond,
		DoIdleGC:     false,
	}, Hooks{})
	tm.Start()
	for i := 0; i < 3; i++ {
		tm.tick()
	}
	if ft.armed.Load() {
		t.Fatal("ticker still armed after idle shutdown")
	}
	tm.Wake()
	if !ft.armed.Load() {
		t.Fatal("ticker not re-armed by Wake after idle shutdown")
	}
	// The idle cycle repeats from a clean Active state.
	for i := 0; i < 3; i++ {
		tm.tick()
	}
	if ft.armed.Load() {
		t.Fatal("ticker still armed after second idle shutdown")
	}
}
