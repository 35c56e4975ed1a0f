// Package app holds process-wide collaborators shared by every layer:
// the logger the engine emits observability through, and build metadata.
package app

import (
	"fmt"
	"io"
	"os"
)

// Logger is the observability collaborator injected into the engine.
// Logging failures never affect a transaction's outcome; implementations
// must not panic.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// writerLogger prints leveled lines to a writer, without level filtering
type writerLogger struct {
	output io.Writer
}

// NewWriterLogger returns a Logger printing "LEVEL: message" lines to w.
// Used as the process default and by tests that capture output.
func NewWriterLogger(w io.Writer) Logger {
	return &writerLogger{output: w}
}

func (l *writerLogger) Debug(format string, args ...interface{}) {
	fmt.Fprintf(l.output, "DEBUG: "+format+"\n", args...)
}

func (l *writerLogger) Info(format string, args ...interface{}) {
	fmt.Fprintf(l.output, "INFO: "+format+"\n", args...)
}

func (l *writerLogger) Warn(format string, args ...interface{}) {
	fmt.Fprintf(l.output, "WARN: "+format+"\n", args...)
}

func (l *writerLogger) Error(format string, args ...interface{}) {
	fmt.Fprintf(l.output, "ERROR: "+format+"\n", args...)
}

// globalLogger serves components constructed without an explicit logger
var globalLogger Logger = NewWriterLogger(os.Stderr)

// SetLogger replaces the process-wide fallback logger
func SetLogger(logger Logger) {
	if logger != nil {
		globalLogger = logger
	}
}

// GetLogger returns the process-wide fallback logger
func GetLogger() Logger {
	return globalLogger
}
