package definition

import (
	"os"

	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
	"github.com/sirupsen/logrus"
)

// NewDefaultLogger builds the logger used when no Logger is supplied to the
// manager. It backs types.Logger with logrus instead of a bare stdlib
// wrapper, the way linkerd/linkerd2 and maxiofs/maxiofs do for their own
// services.
func NewDefaultLogger() *DefaultLogger {
	entry := logrus.NewEntry(logrus.New())
	entry.Logger.SetOutput(os.Stderr)
	entry.Logger.SetLevel(logrus.InfoLevel)
	return &DefaultLogger{entry: entry}
}

// DefaultLogger implements types.Logger on top of a logrus.Entry, so
// component loggers can be built with WithFields without losing the shape
// the core depends on.
type DefaultLogger struct {
	entry *logrus.Entry
}

// WithFields returns a derived logger carrying the given structured fields.
// The core logs through types.Logger only and does not call it.
func (l *DefaultLogger) WithFields(fields logrus.Fields) *DefaultLogger {
	return &DefaultLogger{entry: l.entry.WithFields(fields)}
}

func (l *DefaultLogger) Info(v ...interface{})                 { l.entry.Info(v...) }
func (l *DefaultLogger) Infof(format string, v ...interface{})  { l.entry.Infof(format, v...) }
func (l *DefaultLogger) Warn(v ...interface{})                 { l.entry.Warn(v...) }
func (l *DefaultLogger) Warnf(format string, v ...interface{})  { l.entry.Warnf(format, v...) }
func (l *DefaultLogger) Error(v ...interface{})                { l.entry.Error(v...) }
func (l *DefaultLogger) Errorf(format string, v ...interface{}) { l.entry.Errorf(format, v...) }
func (l *DefaultLogger) Debug(v ...interface{})                { l.entry.Debug(v...) }
func (l *DefaultLogger) Debugf(format string, v ...interface{}) { l.entry.Debugf(format, v...) }
func (l *DefaultLogger) Fatal(v ...interface{})                { l.entry.Fatal(v...) }
func (l *DefaultLogger) Fatalf(format string, v ...interface{}) { l.entry.Fatalf(format, v...) }
func (l *DefaultLogger) Panic(v ...interface{})                { l.entry.Panic(v...) }
func (l *DefaultLogger) Panicf(format string, v ...interface{}) { l.entry.Panicf(format, v...) }

func (l *DefaultLogger) ToggleDebug(value bool) bool {
	if value {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
	return value
}

var _ types.Logger = (*DefaultLogger)(nil)
