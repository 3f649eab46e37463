// Package vnalog provides a small leveled wrapper around the standard
// library logger, in the shape of the teacher project's `ui` package
// (Debugf/Warningf helpers gated by a boolean) but without the ANSI color
// codes or terminal assumptions appropriate to a library.
package vnalog

import (
	"log"
	"os"
)

// Logger wraps a *log.Logger with a debug-enabled gate, mirroring the
// teacher's ui.Debugf(parameters.DEBUG, ...) pattern.
type Logger struct {
	out   *log.Logger
	debug bool
}

// New returns a Logger writing to os.Stderr.
func New(debug bool) *Logger {
	return &Logger{out: log.New(os.Stderr, "", log.LstdFlags), debug: debug}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{out: log.New(discard{}, "", 0), debug: false}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Debugf logs a message when the logger was constructed with debug enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil || !l.debug {
		return
	}
	l.out.Printf("[DEBUG] "+format, args...)
}

// Warnf always logs.
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.out.Printf("[WARN] "+format, args...)
}

// Infof always logs.
func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.out.Printf("[INFO] "+format, args...)
}
