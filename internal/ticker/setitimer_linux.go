//go:build linux

package ticker

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"runtick/pkg/logx"
)

// setitimerTicker arms the classic process-wide SIGALRM interval timer. The
// signal is routed through the runtime into a channel; a drainer goroutine
// turns deliveries into callback invocations, so the callback never runs in
// true signal context (the runtime already guarantees that in Go) but keeps
// the same single-invocation discipline as the other strategies.
//
// There can only be one ITIMER_REAL per process, which is fine: the timer
// service is a process-wide singleton.
type setitimerTicker struct {
	interval time.Duration
	cb       func()
	log      logx.Logger

	armed    atomic.Bool
	sigCh    chan os.Signal
	quit     chan struct{}
	done     chan struct{}
	exitOnce sync.Once
}

func newSetitimerTicker(interval time.Duration, cb func(), log logx.Logger) (*setitimerTicker, error) {
	t := &setitimerTicker{
		interval: interval,
		cb:       cb,
		log:      log,
		sigCh:    make(chan os.Signal, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	signal.Notify(t.sigCh, syscall.SIGALRM)
	go t.loop()
	return t, nil
}

func (t *setitimerTicker) loop() {
	defer close(t.done)
	for {
		select {
		case <-t.quit:
			return
		case <-t.sigCh:
			// A final SIGALRM can race Stop's disarm; the armed check keeps
			// delivery quiet once the gate has stopped us.
			if t.armed.Load() {
				t.cb()
			}
		}
	}
}

func (t *setitimerTicker) Start() {
	t.armed.Store(true)
	t.settime(t.interval)
}

func (t *setitimerTicker) Stop() {
	t.armed.Store(false)
	t.settime(0)
}

func (t *setitimerTicker) settime(d time.Duration) {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	it := unix.Itimerval{Interval: tv, Value: tv}
	if _, err := unix.Setitimer(unix.ITIMER_REAL, it); err != nil {
		t.log.Error("setitimer failed", logx.Err(err), logx.Duration("interval", d))
	}
}

func (t *setitimerTicker) Exit(wait bool) {
	t.exitOnce.Do(func() {
		t.armed.Store(false)
		t.settime(0)
		signal.Stop(t.sigCh)
		close(t.quit)
	})
	if wait {
		<-t.done
	}
}
