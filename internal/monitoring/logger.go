// Package monitoring holds the library's swappable diagnostic logger. Ingest
// paths report rejected transforms through it so embedding applications can
// redirect or mute the noise of a misbehaving producer.
package monitoring

import "log"

// Logf is the package-level diagnostic logger, defaulting to log.Printf.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
