package monitoring

import "log"

// Logf is the module-wide diagnostic logger. It defaults to log.Printf;
// callers that need to mute or redirect it (tests, embedding applications)
// use SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
