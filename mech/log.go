package mech

import (
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the sink the orchestrator reports capture arming and
// per-sample debug events to. It is optional and injected at construction,
// never a package-level singleton.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// noopLogger discards everything; used when no Logger is supplied.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// NewLogger wraps github.com/charmbracelet/log as a Logger, writing to the
// given stream (os.Stderr is the usual choice).
func NewLogger(w *os.File) Logger {
	return &charmLogger{l: charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "mech",
	})}
}

type charmLogger struct {
	l *charmlog.Logger
}

func (c *charmLogger) Debugf(format string, args ...any) { c.l.Debugf(format, args...) }
func (c *charmLogger) Infof(format string, args ...any)  { c.l.Infof(format, args...) }
func (c *charmLogger) Warnf(format string, args ...any)  { c.l.Warnf(format, args...) }
func (c *charmLogger) Errorf(format string, args ...any) { c.l.Errorf(format, args...) }
