// Package logger provides structured logging for the coordinator.
//
// It wraps logrus to provide:
//   - Structured logging with JSON and text output
//   - Configurable log levels (debug, info, warn, error)
//   - Key/value field helpers for device context
//
// Example usage:
//
//	log, err := logger.New("info", "json")
//	if err != nil {
//		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
//	}
//	log.Info("Coordinator started")
//	log.WithHost("10.0.0.5").Warn("Update failed", "error", err)
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with convenience methods
type Logger struct {
	*logrus.Logger
}

// Entry is a logger carrying context fields
type Entry struct {
	*logrus.Entry
}

// New creates a new logger writing to stderr with specified level and format
func New(level, format string) (*Logger, error) {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter creates a new logger with custom output writer
func NewWithWriter(level, format string, out io.Writer) (*Logger, error) {
	log := logrus.New()

	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %s", level)
	}
	log.SetLevel(parsedLevel)
	log.SetOutput(out)

	switch format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	default:
		return nil, fmt.Errorf("invalid log format: %s (must be 'json' or 'text')", format)
	}

	return &Logger{log}, nil
}

// Discard returns a logger that drops everything, for optional dependencies.
func Discard() *Logger {
	log, _ := NewWithWriter("error", "text", io.Discard)
	return log
}

// WithError returns a logger entry with error context
func (l *Logger) WithError(err error) *Entry {
	return &Entry{l.Logger.WithField("error", err.Error())}
}

// WithHost returns a logger entry with thermostat host context
func (l *Logger) WithHost(host string) *Entry {
	return &Entry{l.Logger.WithField("host", host)}
}

// WithDevice returns a logger entry with device name and host context
func (l *Logger) WithDevice(name, host string) *Entry {
	return &Entry{l.Logger.WithFields(logrus.Fields{"device": name, "host": host})}
}

// WithComponent returns a logger entry tagged with the emitting component
func (l *Logger) WithComponent(component string) *Entry {
	return &Entry{l.Logger.WithField("component", component)}
}

// Info logs an info level message
func (l *Logger) Info(msg string, fields ...interface{}) {
	l.Logger.WithFields(toFields(fields)).Info(msg)
}

// Debug logs a debug level message
func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.Logger.WithFields(toFields(fields)).Debug(msg)
}

// Warn logs a warning level message
func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.Logger.WithFields(toFields(fields)).Warn(msg)
}

// Error logs an error level message
func (l *Logger) Error(msg string, fields ...interface{}) {
	l.Logger.WithFields(toFields(fields)).Error(msg)
}

// With adds key/value pairs to the entry
func (e *Entry) With(fields ...interface{}) *Entry {
	return &Entry{e.Entry.WithFields(toFields(fields))}
}

func (e *Entry) Info(msg string, fields ...interface{}) {
	e.Entry.WithFields(toFields(fields)).Info(msg)
}

func (e *Entry) Debug(msg string, fields ...interface{}) {
	e.Entry.WithFields(toFields(fields)).Debug(msg)
}

func (e *Entry) Warn(msg string, fields ...interface{}) {
	e.Entry.WithFields(toFields(fields)).Warn(msg)
}

func (e *Entry) Error(msg string, fields ...interface{}) {
	e.Entry.WithFields(toFields(fields)).Error(msg)
}

// toFields converts variadic key-value pairs to logrus.Fields
func toFields(args []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i < len(args)-1; i += 2 {
		key := fmt.Sprintf("%v", args[i])
		value := args[i+1]
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		fields[key] = value
	}
	return fields
}
