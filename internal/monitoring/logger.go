package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// RankLogf returns a logger that prefixes every line with the rank it runs
// on. The package logger is looked up on each call, so SetLogger applies to
// loggers created earlier.
func RankLogf(rank int) func(format string, v ...interface{}) {
	prefix := fmt.Sprintf("[rank %d] ", rank)
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
