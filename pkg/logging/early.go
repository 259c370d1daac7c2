package logging

import (
	"fmt"
	"io"
	"os"
)

// EarlyLog prints plain lines before the zap logger is configured.
type EarlyLog struct {
	out    io.Writer
	errOut io.Writer
	exit   func(int)
}

func NewEarlyLog() *EarlyLog {
	return &EarlyLog{out: os.Stdout, errOut: os.Stderr, exit: os.Exit}
}

func (l *EarlyLog) Fatal(msg string, args ...interface{}) {
	l.write(l.errOut, "FATAL", msg, args...)
	l.exit(1)
}

func (l *EarlyLog) Error(msg string, args ...interface{}) {
	l.write(l.errOut, "ERROR", msg, args...)
}

func (l *EarlyLog) Warn(msg string, args ...interface{}) {
	l.write(l.errOut, "WARN", msg, args...)
}

func (l *EarlyLog) Info(msg string, args ...interface{}) {
	l.write(l.out, "INFO", msg, args...)
}

func (l *EarlyLog) write(w io.Writer, level, msg string, args ...interface{}) {
	fmt.Fprintf(w, level+": "+msg+"\n", args...)
}
