//go:build unix && !linux

package iowait

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Portable Unix wake primitive: a self-pipe. The read end is polled, the
// write end raises. Both ends non-blocking so a raise never stalls.

func (s *InterruptSignal) initWake() error {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return fmt.Errorf("iowait: pipe: %w", err)
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return fmt.Errorf("iowait: pipe nonblock: %w", err)
		}
	}
	s.rfd = p[0]
	s.wfd = p[1]
	s.hasFd = true
	return nil
}

func (s *InterruptSignal) wake() {
	if !s.hasFd {
		return
	}
	// EAGAIN means the pipe already holds a wake byte.
	_, _ = unix.Write(s.wfd, []byte{1})
}

func (s *InterruptSignal) drain() {
	if !s.hasFd {
		return
	}
	var buf [64]byte
	for {
		n, err := unix.Read(s.rfd, buf[:])
		if err != nil || n < len(buf) {
			return
		}
	}
}

func (s *InterruptSignal) closeWake() error {
	if !s.hasFd {
		return nil
	}
	s.hasFd = false
	err := unix.Close(s.rfd)
	if cerr := unix.Close(s.wfd); err == nil {
		err = cerr
	}
	return err
}
