package ticker

import (
	"sync"
	"sync/atomic"
	"time"

	"runtick/pkg/logx"
)

// threadTicker drives the callback from a dedicated goroutine sleeping on a
// runtime ticker. This is the portable strategy: no signals, no kernel
// objects, works on every platform. The goroutine exists for the resource's
// whole lifetime; arming only flips an atomic consulted per wakeup, so Start
// and Stop are safe from any context including the callback itself.
type threadTicker struct {
	interval time.Duration
	cb       func()
	log      logx.Logger

	armed    atomic.Bool
	quit     chan struct{}
	done     chan struct{}
	exitOnce sync.Once
}

func newThreadTicker(interval time.Duration, cb func(), log logx.Logger) (*threadTicker, error) {
	t := &threadTicker{
		interval: interval,
		cb:       cb,
		log:      log,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.loop()
	return t, nil
}

func (t *threadTicker) loop() {
	defer close(t.done)
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	for {
		select {
		case <-t.quit:
			return
		case <-tk.C:
			if t.armed.Load() {
				t.cb()
			}
		}
	}
}

func (t *threadTicker) Start() { t.armed.Store(true) }

func (t *threadTicker) Stop() { t.armed.Store(false) }

func (t *threadTicker) Exit(wait bool) {
	t.exitOnce.Do(func() {
		t.armed.Store(false)
		close(t.quit)
	})
	if wait {
		<-t.done
	}
}
