// Package lifecycle holds process-wide readiness flags read by the health handler.
package lifecycle

import (
	"context"
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	starting     atomic.Bool
)

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// IsStarting reports whether the warm-up delay is still running.
func IsStarting() bool {
	return starting.Load()
}

// ReadyAfter marks the process as starting and clears the flag once delay has
// elapsed or ctx is done. A non-positive delay leaves the process ready.
func ReadyAfter(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		starting.Store(false)
		return
	}
	starting.Store(true)
	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
		starting.Store(false)
	}()
}
