//go:build unix

package iowait

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// pollWaiter is the Unix backend: poll(2) over the target descriptor and,
// when present, the interrupt signal's wake descriptor.
type pollWaiter struct{}

func newSysWaiter() sysWaiter { return pollWaiter{} }

// alwaysReady short-circuits waits on regular files, which poll(2) reports
// ready unconditionally anyway. Sockets are never short-circuited; the
// caller's isSock flag is authoritative because fstat on some socket types
// misreports.
func (pollWaiter) alwaysReady(fd int, isSock bool) bool {
	if isSock {
		return false
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return false
	}
	return st.Mode&unix.S_IFMT == unix.S_IFREG
}

func (pollWaiter) waitOne(fd int, dir Direction, timeoutMs int, sig *InterruptSignal) (sysOutcome, error) {
	ev := int16(unix.POLLIN)
	if dir == Write {
		ev = unix.POLLOUT
	}
	fds := make([]unix.PollFd, 1, 2)
	fds[0] = unix.PollFd{Fd: int32(fd), Events: ev}
	if sig != nil && sig.hasFd {
		fds = append(fds, unix.PollFd{Fd: int32(sig.rfd), Events: unix.POLLIN})
	}

	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			// OS signal delivery; retryable by contract.
			return sysInterrupted, nil
		}
		return sysTimeout, fmt.Errorf("iowait: poll: %w", err)
	}
	if n == 0 {
		return sysTimeout, nil
	}
	if len(fds) == 2 && fds[1].Revents != 0 {
		return sysInterrupted, nil
	}
	if fds[0].Revents&unix.POLLNVAL != 0 {
		return sysTimeout, fmt.Errorf("%w: fd %d", ErrBadDescriptor, fd)
	}
	// POLLERR and POLLHUP count as ready: the following I/O call surfaces
	// the condition to the caller.
	return sysReady, nil
}
