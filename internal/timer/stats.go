package timer

import "sync/atomic"

type stats struct {
	ticks        atomic.Uint64
	ctxtSwitches atomic.Uint64
	idleGCs      atomic.Uint64
	badTicks     atomic.Uint64
}

// Stats is a point-in-time snapshot of tick bookkeeping, intended for
// observability (history sampling, debug output), not synchronization.
type Stats struct {
	Ticks        uint64 `json:"ticks"`
	CtxtSwitches uint64 `json:"ctxt_switches"`
	IdleGCs      uint64 `json:"idle_gcs"`
	BadTicks     uint64 `json:"bad_ticks"`
}

// Stats returns a snapshot of the counters.
func (t *Timer) Stats() Stats {
	return Stats{
		Ticks:        t.stats.ticks.Load(),
		CtxtSwitches: t.stats.ctxtSwitches.Load(),
		IdleGCs:      t.stats.idleGCs.Load(),
		BadTicks:     t.stats.badTicks.Load(),
	}
}
