// Package-level structured logging configuration.
//
// Logging is an infrastructure cross-cutting concern: deferred values are
// small and numerous, so the default logger is package-global (the
// per-instance [WithLogger] option overrides it). A nil logiface logger is
// a safe no-op, so no separate disabled state is needed.
package deferred

import (
	"sync"

	"github.com/joeycumines/logiface"
)

var globalLogger struct {
	sync.RWMutex
	logger *logiface.Logger[logiface.Event]
}

// SetLogger sets the package-level structured logger, used by every
// [Deferred] not configured with [WithLogger], and by the default
// [Scheduler]. Pass nil to disable.
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

// getLogger safely retrieves the global logger. May return nil; all
// logiface logger methods are nil-safe.
func getLogger() *logiface.Logger[logiface.Event] {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}
