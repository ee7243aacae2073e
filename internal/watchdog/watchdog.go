// Package watchdog terminates the daemon when the process that spawned it
// goes away, so an orphaned bridge never lingers after its host exits.
package watchdog

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/wirebird/wabridge/internal/logger"
)

// DefaultInterval is how often the parent process is probed.
const DefaultInterval = time.Second

// Watchdog polls a parent PID and invokes onExit once the parent is gone.
type Watchdog struct {
	pid      int
	interval time.Duration
	onExit   func()
	log      zerolog.Logger
}

// New builds a watchdog for the given parent PID. onExit runs exactly once,
// from the watchdog's goroutine.
func New(pid int, onExit func()) *Watchdog {
	return &Watchdog{
		pid:      pid,
		interval: DefaultInterval,
		onExit:   onExit,
		log:      logger.Module("watchdog"),
	}
}

// Run blocks until the parent disappears or ctx is canceled.
func (w *Watchdog) Run(ctx context.Context) {
	w.log.Info().Int("parent_pid", w.pid).Msg("watching parent process")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !alive(w.pid) {
				w.log.Info().Int("parent_pid", w.pid).Msg("parent process gone, shutting down")
				w.onExit()
				return
			}
		}
	}
}

// Start runs the watchdog in the background.
func (w *Watchdog) Start(ctx context.Context) {
	go w.Run(ctx)
}

// alive probes the PID with signal 0. FindProcess never fails on unix; the
// signal result is what actually answers the question.
func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
