package config

import (
	"sort"
	"strings"

	logx "runtick/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging the reload.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	if timerChanged(oldCfg.Timer, newCfg.Timer) {
		changed = append(changed, "timer")
		attrs = append(attrs,
			logx.String("timer.tick_interval", strings.TrimSpace(newCfg.Timer.TickInterval)),
			logx.String("timer.strategy", strings.TrimSpace(newCfg.Timer.Strategy)),
			logx.Int("timer.ctxt_switch_ticks", derefInt(newCfg.Timer.CtxtSwitchTicks, 1)),
			logx.String("timer.idle_gc_delay", strings.TrimSpace(newCfg.Timer.IdleGCDelay)),
			logx.Bool("timer.do_idle_gc", newCfg.Timer.DoIdleGC == nil || *newCfg.Timer.DoIdleGC),
			logx.Bool("timer.interrupt_blocked_workers", newCfg.Timer.InterruptBlockedWorkers),
			logx.Bool("timer.profiling", newCfg.Timer.Profiling),
		)
	}

	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.GCSchedule != newCfg.GCSchedule {
		changed = append(changed, "gc_schedule")
		attrs = append(attrs,
			logx.Bool("gc_schedule.enabled", newCfg.GCSchedule.Enabled),
			logx.String("gc_schedule.spec", strings.TrimSpace(newCfg.GCSchedule.Spec)),
			logx.String("gc_schedule.timezone", strings.TrimSpace(newCfg.GCSchedule.Timezone)),
		)
	}

	if oldCfg.History != newCfg.History {
		changed = append(changed, "history")
		attrs = append(attrs,
			logx.Bool("history.enabled", newCfg.History.Enabled),
			logx.Bool("history.path_set", strings.TrimSpace(newCfg.History.Path) != ""),
			logx.String("history.snapshot_interval", strings.TrimSpace(newCfg.History.SnapshotInterval)),
			logx.Int("history.max_rows", newCfg.History.MaxRows),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func timerChanged(o, n TimerConfig) bool {
	return strings.TrimSpace(o.TickInterval) != strings.TrimSpace(n.TickInterval) ||
		strings.TrimSpace(o.Strategy) != strings.TrimSpace(n.Strategy) ||
		derefInt(o.CtxtSwitchTicks, 1) != derefInt(n.CtxtSwitchTicks, 1) ||
		strings.TrimSpace(o.IdleGCDelay) != strings.TrimSpace(n.IdleGCDelay) ||
		(o.DoIdleGC == nil || *o.DoIdleGC) != (n.DoIdleGC == nil || *n.DoIdleGC) ||
		o.InterruptBlockedWorkers != n.InterruptBlockedWorkers ||
		o.Profiling != n.Profiling
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
