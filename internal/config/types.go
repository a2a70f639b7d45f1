package config

// Config is the full on-disk configuration. YAML and JSON are both
// accepted; unknown keys are rejected so typos surface at load time
// instead of silently doing nothing.
type Config struct {
	Timer      TimerConfig      `json:"timer"`
	Logging    LoggingConfig    `json:"logging"`
	GCSchedule GCScheduleConfig `json:"gc_schedule,omitempty"`
	History    HistoryConfig    `json:"history,omitempty"`
}

// TimerConfig controls the interval timer service.
//
// All durations are Go duration strings (e.g. "20ms", "1s").
//
// Defaults (when fields are omitted/zero):
//   - tick_interval: "20ms"
//   - strategy: "auto"
//   - ctxt_switch_ticks: 1
//   - idle_gc_delay: "300ms"
//   - do_idle_gc: true
type TimerConfig struct {
	// TickInterval is the tick period. "0s" disables the timer entirely:
	// every timer operation becomes a no-op.
	TickInterval string `json:"tick_interval"`

	// Strategy picks the tick delivery mechanism: "auto", "thread",
	// "timerfd", or "setitimer". Unsupported strategies on the current
	// platform are rejected at load time.
	Strategy string `json:"strategy,omitempty"`

	// CtxtSwitchTicks is the number of ticks between forced context
	// switches. An explicit 0 disables tick-driven switching; omitted
	// defaults to 1.
	CtxtSwitchTicks *int `json:"ctxt_switch_ticks,omitempty"`

	// IdleGCDelay is how long the system must stay idle before the idle
	// GC fires.
	IdleGCDelay string `json:"idle_gc_delay,omitempty"`

	// DoIdleGC is a pointer so "omitted" (default true) is distinct from
	// an explicit false, which puts the timer to sleep on idle instead.
	DoIdleGC *bool `json:"do_idle_gc,omitempty"`

	// InterruptBlockedWorkers raises every registered worker interrupt at
	// each forced context switch, kicking workers out of blocking waits.
	InterruptBlockedWorkers bool `json:"interrupt_blocked_workers,omitempty"`

	// Profiling keeps the timer ticking through idle so samplers keep
	// receiving ticks.
	Profiling bool `json:"profiling,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// GCScheduleConfig controls cron-driven GC wakeups, independent of the
// idle-driven GC in the tick handler.
type GCScheduleConfig struct {
	Enabled bool `json:"enabled"`
	// Spec is a cron expression (standard five-field or @every form).
	Spec     string `json:"spec,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// HistoryConfig controls the optional tick-statistics store.
//
// Example:
//
//	"history": { "enabled": true, "path": "./runtick.db" }
type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
	// BusyTimeout is a Go duration string (sqlite busy handler).
	BusyTimeout string `json:"busy_timeout,omitempty"`
	// SnapshotInterval is how often a stats row is written.
	SnapshotInterval string `json:"snapshot_interval,omitempty"`
	// MaxRows caps the table; older rows are pruned past it. 0 keeps all.
	MaxRows int `json:"max_rows,omitempty"`
}
