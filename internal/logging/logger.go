// Package logging provides structured logging with configurable levels
package logging

import (
	"os"

	mainlogging "github.com/lakeshift/lakeshift/pkg/logging"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// DebugLevel is for detailed debugging information
	DebugLevel LogLevel = iota
	// InfoLevel is for general informational messages
	InfoLevel
	// WarnLevel is for warning messages that indicate potential problems
	WarnLevel
	// ErrorLevel is for error messages that indicate serious problems
	ErrorLevel
)

// Logger provides structured logging
type Logger struct {
	level      LogLevel
	prefix     string
	slogLogger *mainlogging.SlogLogger
}

// NewLogger creates a logger with the given prefix
func NewLogger(prefix string) *Logger {
	level := InfoLevel
	if os.Getenv("LAKESHIFT_DEBUG") == "true" || os.Getenv("LAKESHIFT_DEBUG") == "1" {
		level = DebugLevel
	}
	// Reduce verbosity during tests
	if os.Getenv("LAKESHIFT_TEST_MODE") == "true" {
		level = ErrorLevel
	}
	return &Logger{
		level:      level,
		prefix:     prefix,
		slogLogger: mainlogging.NewSlogLogger(prefix),
	}
}

// Debugf logs a debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.level <= DebugLevel {
		l.slogLogger.Debug(format, args...)
	}
}

// Infof logs an info message
func (l *Logger) Infof(format string, args ...interface{}) {
	if l.level <= InfoLevel {
		l.slogLogger.Info(format, args...)
	}
}

// Warnf logs a warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l.level <= WarnLevel {
		l.slogLogger.Warn(format, args...)
	}
}

// Errorf logs an error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.level <= ErrorLevel {
		l.slogLogger.Error(format, args...)
	}
}

// StepStart logs the start of a deployment step
func (l *Logger) StepStart(deploymentID, step string, current, total int) {
	l.slogLogger.StepStart(deploymentID, step, current, total)
}

// StepSuccess logs a completed deployment step
func (l *Logger) StepSuccess(deploymentID, step string) {
	l.slogLogger.StepSuccess(deploymentID, step)
}

// StepFailed logs a failed deployment step
func (l *Logger) StepFailed(deploymentID, step string, err error) {
	l.slogLogger.StepFailed(deploymentID, step, err)
}

// DeploymentSummary logs the outcome of a full deployment
func (l *Logger) DeploymentSummary(deploymentID string, completedSteps int, failed bool) {
	l.slogLogger.DeploymentSummary(deploymentID, completedSteps, failed)
}
