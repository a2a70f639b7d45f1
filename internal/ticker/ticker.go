// Package ticker installs the recurring OS-level tick source that drives the
// timer service. One strategy is picked at startup and fixed for the process
// lifetime; all strategies look identical from the callback's perspective:
//
//   - the callback fires once per interval while the ticker is started,
//   - at most one invocation is in flight at any moment,
//   - Stop disarms delivery (an invocation that already began may still be
//     completing on the ticker goroutine),
//   - Exit releases the platform resource.
//
// The callback runs on a dedicated goroutine shared with timer delivery, so
// it must stay short and must not block; anything slow belongs behind a
// channel or an atomic flag.
package ticker

import (
	"fmt"
	"strings"
	"time"

	"runtick/pkg/logx"
)

// Strategy names a tick-delivery mechanism.
type Strategy string

const (
	// StrategyAuto picks the best strategy the platform offers.
	StrategyAuto Strategy = "auto"
	// StrategyThread is a dedicated goroutine driven by a runtime ticker.
	// Available everywhere.
	StrategyThread Strategy = "thread"
	// StrategyTimerfd is a kernel timer file descriptor (Linux).
	StrategyTimerfd Strategy = "timerfd"
	// StrategySetitimer is the process-wide SIGALRM interval timer (Linux).
	StrategySetitimer Strategy = "setitimer"
)

// Ticker is the platform timer resource.
//
// The constructor installs the mechanism without starting delivery. Start
// and Stop arm and disarm it; they are cheap, reentrant from the callback
// itself, and safe to call from any goroutine. Exit releases the resource;
// with wait=true it blocks until an in-flight callback has returned. After
// Exit all operations are no-ops.
type Ticker interface {
	Start()
	Stop()
	Exit(wait bool)
}

// New installs a ticker firing cb every interval.
//
// interval == 0 disables ticking entirely: the returned ticker is a no-op
// and cb never fires. A platform resource that cannot be allocated is
// returned as an error; callers treat it as fatal.
func New(interval time.Duration, strategy Strategy, cb func(), log logx.Logger) (Ticker, error) {
	if interval == 0 {
		return noopTicker{}, nil
	}
	if interval < 0 {
		return nil, fmt.Errorf("ticker: negative interval %v", interval)
	}
	if cb == nil {
		return nil, fmt.Errorf("ticker: nil callback")
	}

	st, err := resolveStrategy(strategy)
	if err != nil {
		return nil, err
	}
	t, err := newPlatformTicker(st, interval, cb, log)
	if err != nil {
		return nil, fmt.Errorf("ticker: installing %s ticker: %w", st, err)
	}
	log.Debug("ticker installed",
		logx.String("strategy", string(st)),
		logx.Duration("interval", interval))
	return t, nil
}

func resolveStrategy(s Strategy) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(string(s)))) {
	case StrategyAuto, "":
		return defaultStrategy(), nil
	case StrategyThread:
		return StrategyThread, nil
	case StrategyTimerfd, StrategySetitimer:
		if !platformStrategyAvailable(Strategy(strings.ToLower(string(s)))) {
			return "", fmt.Errorf("ticker: strategy %q not available on this platform", s)
		}
		return Strategy(strings.ToLower(string(s))), nil
	default:
		return "", fmt.Errorf("ticker: unknown strategy %q", s)
	}
}

// noopTicker is the interval==0 ticker: profiling and preemption ticks are
// disabled and every operation is trivial.
type noopTicker struct{}

func (noopTicker) Start()    {}
func (noopTicker) Stop()     {}
func (noopTicker) Exit(bool) {}
