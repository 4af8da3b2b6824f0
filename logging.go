package sprender

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/muesli/termenv"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type DefaultLogger struct {
	mu      sync.Mutex
	debug   bool
	prefix  string
	out     *log.Logger
	err     *log.Logger
	outTerm *termenv.Output
	errTerm *termenv.Output
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewLoggerTo(os.Stdout, os.Stderr, prefix, debug)
}

// NewLoggerTo writes info and debug lines to out, warnings and errors to errOut.
// Level tags are coloured only when the writer is a terminal.
func NewLoggerTo(out, errOut io.Writer, prefix string, debug bool) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:   debug,
		prefix:  prefix,
		out:     log.New(out, "", flags),
		err:     log.New(errOut, "", flags),
		outTerm: termenv.NewOutput(out),
		errTerm: termenv.NewOutput(errOut),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) prefixf(term *termenv.Output, level string, color termenv.Color, format string, args ...any) string {
	tag := term.String(level).Foreground(color).Bold().String()
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s: %s", l.prefix, tag, fmt.Sprintf(format, args...))
	}
	return fmt.Sprintf("%s: %s", tag, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.out.Print(l.prefixf(l.outTerm, "DEBUG", termenv.ANSIBrightBlack, format, args...))
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Print(l.prefixf(l.outTerm, "INFO", termenv.ANSIBlue, format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.err.Print(l.prefixf(l.errTerm, "WARN", termenv.ANSIYellow, format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.err.Print(l.prefixf(l.errTerm, "ERROR", termenv.ANSIRed, format, args...))
}

type nopLogger struct{}

func NewNopLogger() Logger                             { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

// OrNop returns l, or a no-op logger when l is nil. Never returns nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}
