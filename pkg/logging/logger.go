// Package logging provides structured logging support for the Lakeshift application
package logging

import (
	"os"
	"strings"
)

// LogLevel represents the severity of a log message
type LogLevel int

// LogLevel constants represent the various log levels
const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger provides structured logging with a component prefix
type Logger struct {
	component  string
	level      LogLevel
	slogLogger *SlogLogger
}

// NewLogger creates a new logger for a specific component
func NewLogger(component string) *Logger {
	return &Logger{
		component:  component,
		level:      getLogLevel(),
		slogLogger: NewSlogLogger(component),
	}
}

// getLogLevel determines the current log level from environment
func getLogLevel() LogLevel {
	levelStr := strings.ToUpper(os.Getenv("LAKESHIFT_LOG_LEVEL"))
	switch levelStr {
	case "TRACE":
		return TRACE
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		if os.Getenv("LAKESHIFT_DEBUG") == "1" || strings.EqualFold(os.Getenv("LAKESHIFT_DEBUG"), "true") {
			return DEBUG
		}
		return INFO
	}
}

// Debug logs a formatted debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level <= DEBUG {
		l.slogLogger.Debug(format, args...)
	}
}

// Info logs a formatted info message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level <= INFO {
		l.slogLogger.Info(format, args...)
	}
}

// Warn logs a formatted warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level <= WARN {
		l.slogLogger.Warn(format, args...)
	}
}

// Error logs a formatted error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.slogLogger.Error(format, args...)
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
