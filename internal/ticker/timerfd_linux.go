//go:build linux

package ticker

import (
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"runtick/pkg/logx"
)

// timerfdTicker uses a kernel timer descriptor. The kernel reschedules the
// expiration itself; a reader goroutine multiplexes the timerfd with an
// eventfd used solely to shut the loop down, so Exit never races a blocked
// read. Arming and disarming go through timerfd_settime, which is cheap and
// callable from the callback.
type timerfdTicker struct {
	interval time.Duration
	cb       func()
	log      logx.Logger
	warn     *logx.Limited

	tfd int
	wfd int

	done     chan struct{}
	exitOnce sync.Once
}

func newTimerfdTicker(interval time.Duration, cb func(), log logx.Logger) (*timerfdTicker, error) {
	tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	wfd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(tfd)
		return nil, err
	}
	t := &timerfdTicker{
		interval: interval,
		cb:       cb,
		log:      log,
		warn:     logx.NewLimited(log, 1),
		tfd:      tfd,
		wfd:      wfd,
		done:     make(chan struct{}),
	}
	go t.loop()
	return t, nil
}

func (t *timerfdTicker) loop() {
	defer close(t.done)
	fds := []unix.PollFd{
		{Fd: int32(t.tfd), Events: unix.POLLIN},
		{Fd: int32(t.wfd), Events: unix.POLLIN},
	}
	var buf [8]byte
	for {
		fds[0].Revents = 0
		fds[1].Revents = 0
		_, err := unix.Poll(fds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			t.log.Error("timerfd poll failed, ticker loop exiting", logx.Err(err))
			return
		}
		if fds[1].Revents != 0 {
			return
		}
		if fds[0].Revents == 0 {
			continue
		}
		n, err := unix.Read(t.tfd, buf[:])
		if err != nil || n != 8 {
			continue
		}
		// One callback per wakeup. The expiration count only grows past 1
		// when the callback (or the host) is too slow for the interval.
		if missed := binary.LittleEndian.Uint64(buf[:]); missed > 1 {
			t.warn.Warn("tick overrun",
				logx.Uint64("missed", missed-1),
				logx.Duration("interval", t.interval))
		}
		t.cb()
	}
}

func (t *timerfdTicker) Start() {
	t.settime(t.interval)
}

func (t *timerfdTicker) Stop() {
	t.settime(0)
}

func (t *timerfdTicker) settime(d time.Duration) {
	ts := unix.NsecToTimespec(d.Nanoseconds())
	spec := unix.ItimerSpec{Interval: ts, Value: ts}
	if err := unix.TimerfdSettime(t.tfd, 0, &spec, nil); err != nil {
		// Only possible with a closed or invalid descriptor, i.e. use after
		// Exit. Nothing sensible to do beyond recording it.
		t.warn.Error("timerfd_settime failed", logx.Err(err))
	}
}

func (t *timerfdTicker) Exit(wait bool) {
	t.exitOnce.Do(func() {
		t.settime(0)
		var one [8]byte
		binary.LittleEndian.PutUint64(one[:], 1)
		_, _ = unix.Write(t.wfd, one[:])
		go func() {
			// Close only after the loop has left poll().
			<-t.done
			_ = unix.Close(t.tfd)
			_ = unix.Close(t.wfd)
		}()
	})
	if wait {
		<-t.done
	}
}
