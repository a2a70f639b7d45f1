//go:build !linux

package ticker

import (
	"fmt"
	"time"

	"runtick/pkg/logx"
)

func defaultStrategy() Strategy { return StrategyThread }

func platformStrategyAvailable(s Strategy) bool { return s == StrategyThread }

func newPlatformTicker(s Strategy, interval time.Duration, cb func(), log logx.Logger) (Ticker, error) {
	if s != StrategyThread {
		return nil, fmt.Errorf("ticker: unhandled strategy %q", s)
	}
	return newThreadTicker(interval, cb, log)
}
