// Package logger adapts github.com/sirupsen/logrus to ports.Logger.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/rocketmq-go/consumer-engine/internal/ports"
)

// LogrusLogger implements ports.Logger on top of a logrus.Entry.
type LogrusLogger struct {
	entry *logrus.Entry
}

// New builds a LogrusLogger at the given level ("trace".."fatal") and
// format ("json" or "text").
func New(level, format string) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func toFields(fields []ports.Field) logrus.Fields {
	f := make(logrus.Fields, len(fields))
	for _, field := range fields {
		f[field.Key] = field.Value
	}
	return f
}

// Trace logs at trace level.
func (l *LogrusLogger) Trace(msg string, fields ...ports.Field) {
	l.entry.WithFields(toFields(fields)).Trace(msg)
}

// Debug logs at debug level.
func (l *LogrusLogger) Debug(msg string, fields ...ports.Field) {
	l.entry.WithFields(toFields(fields)).Debug(msg)
}

// Info logs at info level.
func (l *LogrusLogger) Info(msg string, fields ...ports.Field) {
	l.entry.WithFields(toFields(fields)).Info(msg)
}

// Warn logs at warn level.
func (l *LogrusLogger) Warn(msg string, fields ...ports.Field) {
	l.entry.WithFields(toFields(fields)).Warn(msg)
}

// Error logs at error level.
func (l *LogrusLogger) Error(msg string, fields ...ports.Field) {
	l.entry.WithFields(toFields(fields)).Error(msg)
}

// Fatal logs at fatal level and exits the process, matching logrus semantics.
func (l *LogrusLogger) Fatal(msg string, fields ...ports.Field) {
	l.entry.WithFields(toFields(fields)).Fatal(msg)
}

// WithFields returns a Logger with the given fields bound for every
// subsequent call.
func (l *LogrusLogger) WithFields(fields ...ports.Field) ports.Logger {
	return &LogrusLogger{entry: l.entry.WithFields(toFields(fields))}
}
