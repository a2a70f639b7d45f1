package iowait

import "time"

// probeWaiter is the fallback backend for platforms and descriptors with no
// native multiplexed wait: it races a non-blocking readiness probe against
// the interrupt channel, sleeping a short step between probes. Coarse, but
// it preserves the Wait contract; the outer loop absorbs the early wakeups.
type probeWaiter struct {
	// probe performs one non-blocking readiness check. nil means readiness
	// cannot be determined; the wait then only ends by timeout or interrupt.
	probe func(fd int, dir Direction) (bool, error)
	step  time.Duration
}

const defaultProbeStep = time.Millisecond

func (p probeWaiter) alwaysReady(int, bool) bool { return false }

func (p probeWaiter) waitOne(fd int, dir Direction, timeoutMs int, sig *InterruptSignal) (sysOutcome, error) {
	if p.probe != nil {
		ready, err := p.probe(fd, dir)
		if err != nil {
			return sysTimeout, err
		}
		if ready {
			return sysReady, nil
		}
	}
	if timeoutMs == 0 {
		return sysTimeout, nil
	}

	step := p.step
	if step <= 0 {
		step = defaultProbeStep
	}
	if timeoutMs > 0 {
		if native := time.Duration(timeoutMs) * time.Millisecond; native < step {
			step = native
		}
	}

	timer := time.NewTimer(step)
	defer timer.Stop()
	var interrupt <-chan struct{}
	if sig != nil {
		interrupt = sig.ch
	}
	select {
	case <-interrupt:
		// Re-arm the latch for Consume in the outer loop.
		select {
		case sig.ch <- struct{}{}:
		default:
		}
		return sysInterrupted, nil
	case <-timer.C:
		return sysTimeout, nil
	}
}
