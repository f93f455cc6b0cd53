// Package monitoring holds the package-level diagnostic loggers shared by
// the workflow, the API and the CLI.
package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var trace atomic.Bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetTrace enables or disables per-pixel and per-scene trace output.
func SetTrace(on bool) { trace.Store(on) }

// TraceEnabled reports whether trace output is on.
func TraceEnabled() bool { return trace.Load() }

// Tracef logs through Logf only when tracing is enabled.
func Tracef(format string, v ...interface{}) {
	if trace.Load() {
		Logf(format, v...)
	}
}
