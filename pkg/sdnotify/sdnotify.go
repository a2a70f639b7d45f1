// Package sdnotify wraps the systemd readiness and watchdog protocol.
// Every call is a no-op when the process is not running under systemd
// (NOTIFY_SOCKET unset), so callers never need to guard.
package sdnotify

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Ready tells systemd the service is up.
func Ready() { _, _ = daemon.SdNotify(false, daemon.SdNotifyReady) }

// Stopping tells systemd a shutdown has begun.
func Stopping() { _, _ = daemon.SdNotify(false, daemon.SdNotifyStopping) }

// Status publishes a free-form status line.
func Status(msg string) { _, _ = daemon.SdNotify(false, "STATUS="+msg) }

// Watchdog feeds the systemd watchdog at half the configured interval until
// ctx is cancelled. It returns immediately when no watchdog is configured.
func Watchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return err
	}

	tk := time.NewTicker(interval / 2)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
