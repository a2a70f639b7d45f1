// Package core wires the process together: config loading and hot reload,
// logging, the interval timer with its collaborator hooks, the worker
// interrupt registry, and the optional GC schedule and history services.
package core

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"runtick/internal/config"
	"runtick/internal/iowait"
	"runtick/internal/runtime/supervisor"
	"runtick/internal/services/gcsched"
	"runtick/internal/services/history"
	"runtick/internal/timer"
	logx "runtick/pkg/logx"
	"runtick/pkg/sdnotify"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	logs *logx.Service
	log  logx.Logger

	workers *iowait.Registry
	tm      *timer.Timer
	gc      *gcsched.Service
	hist    *history.Store

	snapshotInterval time.Duration

	// idleGC carries the tick handler's idle-GC request out of the tick
	// path; the hook must not block or collect inline.
	idleGC chan struct{}

	samples atomic.Uint64
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	res, err := config.Validate(cfg)
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	a := &App{
		cfgPath:          cfgPath,
		cfgm:             cfgm,
		logs:             logs,
		log:              log,
		workers:          iowait.NewRegistry(),
		snapshotInterval: res.HistorySnapshotInterval,
		idleGC:           make(chan struct{}, 1),
	}

	tm, err := timer.New(timerConfig(res), timer.Hooks{
		ProfSample:       func() { a.samples.Add(1) },
		ContextSwitchAll: runtime.Gosched,
		WakeScheduler:    a.requestIdleGC,
		InterruptWorkers: a.workers.RaiseAll,
	}, log.With(logx.String("comp", "timer")))
	if err != nil {
		logs.Close()
		return nil, err
	}
	a.tm = tm

	// A scheduled collection counts as activity: waking the timer afterwards
	// resets the idle countdown and re-arms delivery if the idle path had
	// stopped it.
	a.gc = gcsched.New(gcsched.Config{
		Enabled:  cfg.GCSchedule.Enabled,
		Spec:     cfg.GCSchedule.Spec,
		Timezone: cfg.GCSchedule.Timezone,
	}, func() {
		runtime.GC()
		tm.Wake()
	}, log.With(logx.String("comp", "gcsched")))

	if cfg.History.Enabled {
		hist, err := history.Open(history.Config{
			Path:        cfg.History.Path,
			BusyTimeout: res.HistoryBusyTimeout,
			MaxRows:     cfg.History.MaxRows,
		}, log.With(logx.String("comp", "history")))
		if err != nil {
			tm.Exit(false)
			logs.Close()
			return nil, fmt.Errorf("history: %w", err)
		}
		a.hist = hist
	}

	return a, nil
}

func timerConfig(res *config.Resolved) timer.Config {
	return timer.Config{
		TickInterval:            res.TickInterval,
		Strategy:                res.Strategy,
		CtxtSwitchTicks:         res.CtxtSwitchTicks,
		IdleGCDelay:             res.IdleGCDelay,
		DoIdleGC:                res.DoIdleGC,
		InterruptBlockedWorkers: res.InterruptBlockedWorkers,
		ProfilingEnabled:        res.Profiling,
	}
}

// Timer exposes the interval timer for callers that signal activity or read
// stats.
func (a *App) Timer() *timer.Timer { return a.tm }

// Workers exposes the interrupt registry; blocking workers acquire their
// signal here.
func (a *App) Workers() *iowait.Registry { return a.workers }

// Samples reports how many profiling samples the tick handler requested.
func (a *App) Samples() uint64 { return a.samples.Load() }

// Done is closed when the supervisor context is cancelled (fatal error or
// Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// requestIdleGC runs on the tick path, so it only queues; the idle-gc
// goroutine does the actual collection.
func (a *App) requestIdleGC() {
	select {
	case a.idleGC <- struct{}{}:
	default:
	}
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := config.Validate(cfg)
		return err
	})

	if err := a.gc.Start(); err != nil {
		return err
	}

	// Arm tick delivery. The gate starts disabled; this is the matching
	// first Start.
	a.tm.Start()

	a.sup.Go0("timer.idlegc", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-a.idleGC:
				start := time.Now()
				runtime.GC()
				a.tm.GCDone()
				a.log.Debug("idle gc complete", logx.Duration("took", time.Since(start)))
			}
		}
	})

	if a.hist != nil {
		rec := history.NewRecorder(a.hist, func() (timer.Stats, string) {
			return a.tm.Stats(), a.tm.Activity().String()
		}, a.snapshotInterval, a.log.With(logx.String("comp", "history")))
		a.sup.GoRestart("history.record", rec.Run,
			supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	}

	// hot reload fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(ctx context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-ctx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(ctx context.Context) error {
		return a.cfgm.Watch(ctx)
	})

	a.sup.Go("sd.watchdog", sdnotify.Watchdog)

	a.log.Info("started",
		logx.String("config", a.cfgPath),
		logx.Bool("gc_schedule", a.gc.Enabled()),
		logx.Bool("history", a.hist != nil),
	)
	return nil
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.log.Debug("config change summary",
		append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	// The watch validator already accepted this config.
	res, err := config.Validate(newCfg)
	if err != nil {
		a.log.Warn("config resolve failed after validation", logx.Any("err", err))
		return
	}

	a.logs.Apply(logx.Config{
		Level:   newCfg.Logging.Level,
		Console: newCfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: newCfg.Logging.File.Enabled,
			Path:    newCfg.Logging.File.Path,
		},
	})

	if restart := a.tm.Apply(timerConfig(res)); restart {
		a.log.Warn("timer tick_interval/strategy/profiling changed; restart required to take effect")
	}

	if err := a.gc.Apply(gcsched.Config{
		Enabled:  newCfg.GCSchedule.Enabled,
		Spec:     newCfg.GCSchedule.Spec,
		Timezone: newCfg.GCSchedule.Timezone,
	}); err != nil {
		a.log.Warn("gc schedule apply failed", logx.Any("err", err))
	}

	if oldCfg != nil && oldCfg.History != newCfg.History {
		a.log.Warn("history settings changed; restart required to take effect")
	}

	a.log.Info("config reloaded",
		append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	sdnotify.Stopping()
	a.log.Info("stopping")

	a.sup.Cancel()

	// Bounded shutdown steps so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Any("err", err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("gcsched", 2*time.Second, func(context.Context) error { a.gc.Stop(); return nil })
	step("timer", 2*time.Second, func(context.Context) error { a.tm.Exit(true); return nil })
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("history", time.Second, func(context.Context) error { return a.hist.Close() })

	_ = a.logs.Close()
	a.log.Info("stopped")
	return nil
}
