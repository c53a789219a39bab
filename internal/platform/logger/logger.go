// Package logger provides structured logging for the restoration server.
// Every chamber transition should be traceable through this.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/ttacon/chalk"
)

// Logger provides structured logging with context.
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// NewLogger creates a new logger instance writing to stdout/stderr.
// Prefixes are coloured when stdout is a terminal.
func NewLogger() *Logger {
	color := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	return newLogger(os.Stdout, os.Stderr, color)
}

// New creates a logger on arbitrary writers without colours. Useful in tests.
func New(out, errOut io.Writer) *Logger {
	return newLogger(out, errOut, false)
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, io.Discard)
}

func newLogger(out, errOut io.Writer, color bool) *Logger {
	info, warn, errp := "[CRYO-INFO] ", "[CRYO-WARN] ", "[CRYO-ERROR] "
	if color {
		info = chalk.Cyan.Color(info)
		warn = chalk.Yellow.Color(warn)
		errp = chalk.Red.Color(errp)
	}
	flags := log.Ldate | log.Ltime | log.Lshortfile
	return &Logger{
		infoLogger:  log.New(out, info, flags),
		warnLogger:  log.New(out, warn, flags),
		errorLogger: log.New(errOut, errp, flags),
	}
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.infoLogger.Output(2, msg)
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.infoLogger.Output(2, fmt.Sprintf(format, args...))
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.warnLogger.Output(2, msg)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.warnLogger.Output(2, fmt.Sprintf(format, args...))
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.errorLogger.Output(2, msg)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.errorLogger.Output(2, fmt.Sprintf(format, args...))
}

// Event logs a chamber event for operators.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.infoLogger.Output(2, fmt.Sprintf("[EVENT:%s] Actor:%s | %s", eventType, actorID, details))
}
