// Package logger provides structured logging for the brutalist application
package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Fields represents structured log fields
type Fields map[string]interface{}

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a new structured logger
func NewLogger(level logrus.Level) *Logger {
	logger := logrus.New()

	logger.SetLevel(level)

	// Use JSON formatter for structured logging in production
	if os.Getenv("ENV") == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	return &Logger{Logger: logger}
}

// ParseLevel maps a configured level name to a logrus level, falling back to Info.
func ParseLevel(name string) logrus.Level {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// WithReport adds report-specific fields to the logger
func (l *Logger) WithReport(reportID string) *logrus.Entry {
	return l.Logger.WithField("report_id", reportID)
}

// WithError adds error context to the logger
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}

// WithFields adds multiple fields to the logger
func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields(fields))
}

// LogExecution logs the start and end of a script execution
func (l *Logger) LogExecution(name string, fn func() error) error {
	start := time.Now()

	l.WithFields(Fields{
		"script": name,
		"action": "start",
	}).Info("Script execution started")

	err := fn()
	duration := time.Since(start)

	fields := Fields{
		"script":   name,
		"action":   "complete",
		"duration": duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.WithFields(fields).Error("Script execution failed")
	} else {
		l.WithFields(fields).Info("Script execution completed successfully")
	}

	return err
}

var defaultLogger = NewLogger(logrus.InfoLevel)

// Default returns the process-wide logger used by the CLI
func Default() *Logger {
	return defaultLogger
}

func Infof(format string, args ...interface{}) {
	defaultLogger.Infof(format, args...)
}

// WithFields returns an entry with the specified fields using the default logger
func WithFields(fields Fields) *logrus.Entry {
	return defaultLogger.WithFields(fields)
}
