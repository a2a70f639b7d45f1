//go:build linux

package ticker

import (
	"fmt"
	"time"

	"runtick/pkg/logx"
)

func defaultStrategy() Strategy { return StrategyTimerfd }

func platformStrategyAvailable(s Strategy) bool {
	switch s {
	case StrategyThread, StrategyTimerfd, StrategySetitimer:
		return true
	}
	return false
}

func newPlatformTicker(s Strategy, interval time.Duration, cb func(), log logx.Logger) (Ticker, error) {
	switch s {
	case StrategyThread:
		return newThreadTicker(interval, cb, log)
	case StrategyTimerfd:
		return newTimerfdTicker(interval, cb, log)
	case StrategySetitimer:
		return newSetitimerTicker(interval, cb, log)
	}
	return nil, fmt.Errorf("ticker: unhandled strategy %q", s)
}
