//go:build linux

package iowait

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// On Linux the wake primitive is an eventfd: one descriptor, pollable for
// read, written to raise. Non-blocking so a raise never stalls the raiser.

func (s *InterruptSignal) initWake() error {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return fmt.Errorf("iowait: eventfd: %w", err)
	}
	s.rfd = fd
	s.wfd = fd
	s.hasFd = true
	return nil
}

func (s *InterruptSignal) wake() {
	if !s.hasFd {
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	// EAGAIN means the counter is already non-zero; the wait will see it.
	_, _ = unix.Write(s.wfd, buf[:])
}

func (s *InterruptSignal) drain() {
	if !s.hasFd {
		return
	}
	var buf [8]byte
	_, _ = unix.Read(s.rfd, buf[:])
}

func (s *InterruptSignal) closeWake() error {
	if !s.hasFd {
		return nil
	}
	s.hasFd = false
	return unix.Close(s.rfd)
}
