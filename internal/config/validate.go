package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"runtick/internal/ticker"
)

// Resolved carries the parsed, defaulted view of a Config: duration strings
// parsed, strategy resolved, defaults applied. Validate produces one; the
// rest of the process consumes Resolved, never raw Config.
type Resolved struct {
	TickInterval            time.Duration
	Strategy                ticker.Strategy
	CtxtSwitchTicks         int
	IdleGCDelay             time.Duration
	DoIdleGC                bool
	InterruptBlockedWorkers bool
	Profiling               bool

	HistorySnapshotInterval time.Duration
	HistoryBusyTimeout      time.Duration
}

const (
	defaultTickInterval     = 20 * time.Millisecond
	defaultCtxtSwitchTicks  = 1
	defaultIdleGCDelay      = 300 * time.Millisecond
	defaultSnapshotInterval = 30 * time.Second
	defaultBusyTimeout      = 5 * time.Second
)

// Validate checks cfg and returns its resolved view. It is installed as the
// manager's validator so a bad reload is rejected before publish.
func Validate(cfg *Config) (*Resolved, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	r := &Resolved{}

	tick, err := ParseDurationField("timer.tick_interval", cfg.Timer.TickInterval)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Timer.TickInterval) == "" {
		tick = defaultTickInterval
	}
	r.TickInterval = tick

	strat := ticker.Strategy(strings.TrimSpace(cfg.Timer.Strategy))
	if strat == "" {
		strat = ticker.StrategyAuto
	}
	switch strat {
	case ticker.StrategyAuto, ticker.StrategyThread, ticker.StrategyTimerfd, ticker.StrategySetitimer:
	default:
		return nil, fmt.Errorf("timer.strategy: unknown strategy %q", cfg.Timer.Strategy)
	}
	r.Strategy = strat

	r.CtxtSwitchTicks = defaultCtxtSwitchTicks
	if cfg.Timer.CtxtSwitchTicks != nil {
		if *cfg.Timer.CtxtSwitchTicks < 0 {
			return nil, fmt.Errorf("timer.ctxt_switch_ticks: must be >= 0")
		}
		r.CtxtSwitchTicks = *cfg.Timer.CtxtSwitchTicks
	}

	r.IdleGCDelay, err = ParseDurationOrDefault("timer.idle_gc_delay", cfg.Timer.IdleGCDelay, defaultIdleGCDelay)
	if err != nil {
		return nil, err
	}

	r.DoIdleGC = cfg.Timer.DoIdleGC == nil || *cfg.Timer.DoIdleGC
	r.InterruptBlockedWorkers = cfg.Timer.InterruptBlockedWorkers
	r.Profiling = cfg.Timer.Profiling

	if cfg.GCSchedule.Enabled {
		spec := strings.TrimSpace(cfg.GCSchedule.Spec)
		if spec == "" {
			return nil, fmt.Errorf("gc_schedule.spec: required when gc_schedule is enabled")
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("gc_schedule.spec: %w", err)
		}
		if tz := strings.TrimSpace(cfg.GCSchedule.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return nil, fmt.Errorf("gc_schedule.timezone: %w", err)
			}
		}
	}

	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		return nil, fmt.Errorf("history.path: required when history is enabled")
	}
	if cfg.History.MaxRows < 0 {
		return nil, fmt.Errorf("history.max_rows: must be >= 0")
	}
	r.HistorySnapshotInterval, err = ParseDurationOrDefault("history.snapshot_interval", cfg.History.SnapshotInterval, defaultSnapshotInterval)
	if err != nil {
		return nil, err
	}
	r.HistoryBusyTimeout, err = ParseDurationOrDefault("history.busy_timeout", cfg.History.BusyTimeout, defaultBusyTimeout)
	if err != nil {
		return nil, err
	}

	return r, nil
}
