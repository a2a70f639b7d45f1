package history

import (
	"context"
	"time"

	logx "runtick/pkg/logx"

	"runtick/internal/timer"
)

// Snapshot is the sampling callback: current stats plus the activity label.
type Snapshot func() (timer.Stats, string)

// Recorder samples timer stats on an interval and appends a row when the
// counters moved since the previous sample.
type Recorder struct {
	store    *Store
	snapshot Snapshot
	interval time.Duration
	log      logx.Logger

	last timer.Stats
	have bool
}

func NewRecorder(store *Store, snapshot Snapshot, interval time.Duration, log logx.Logger) *Recorder {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Recorder{store: store, snapshot: snapshot, interval: interval, log: log}
}

// Run samples until ctx is cancelled. One final sample is written on the way
// out so a shutdown never loses the tail of the run.
func (r *Recorder) Run(ctx context.Context) error {
	tk := time.NewTicker(r.interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			r.sample(context.Background())
			return nil
		case <-tk.C:
			r.sample(ctx)
		}
	}
}

func (r *Recorder) sample(ctx context.Context) {
	stats, activity := r.snapshot()
	if r.have && stats == r.last {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err := r.store.Append(wctx, Entry{At: time.Now(), Stats: stats, Activity: activity})
	cancel()
	if err != nil {
		if !r.log.IsZero() {
			r.log.Warn("history append failed", logx.Any("err", err))
		}
		return
	}
	r.last, r.have = stats, true
}
