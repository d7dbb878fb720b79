// Package monitoring holds the diagnostic logger shared by the marker engine,
// the survey runner and the database layer.
package monitoring

import (
	"fmt"
	"log"
	"sync"
)

var mu sync.RWMutex

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	mu.Lock()
	defer mu.Unlock()
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// TargetLogger returns a logf that prefixes every message with the target id.
// The current package logger is resolved on each call so SetLogger applies to
// loggers created before it.
func TargetLogger(targetID int) func(format string, v ...interface{}) {
	prefix := fmt.Sprintf("target %d: ", targetID)
	return func(format string, v ...interface{}) {
		mu.RLock()
		logf := Logf
		mu.RUnlock()
		logf(prefix+format, v...)
	}
}
