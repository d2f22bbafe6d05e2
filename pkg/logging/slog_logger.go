package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// SlogLogger provides structured logging using slog
type SlogLogger struct {
	logger    *slog.Logger
	component string
}

// NewSlogLogger creates a new logger using slog backend
func NewSlogLogger(component string) *SlogLogger {
	handler := createHandler()
	logger := slog.New(handler)

	return &SlogLogger{
		logger:    logger,
		component: component,
	}
}

// createHandler creates an appropriate slog handler based on environment variables
func createHandler() slog.Handler {
	var output io.Writer = os.Stdout
	level := getLogLevelSlog()

	format := strings.ToUpper(os.Getenv("LAKESHIFT_LOG_FORMAT"))
	switch format {
	case "JSON":
		return slog.NewJSONHandler(output, &slog.HandlerOptions{
			Level:       level,
			AddSource:   false,
			ReplaceAttr: replaceAttr,
		})
	default:
		return slog.NewTextHandler(output, &slog.HandlerOptions{
			Level:       level,
			AddSource:   false,
			ReplaceAttr: replaceAttr,
		})
	}
}

// getLogLevelSlog determines the slog level from environment
func getLogLevelSlog() slog.Level {
	levelStr := strings.ToUpper(os.Getenv("LAKESHIFT_LOG_LEVEL"))
	switch levelStr {
	case "TRACE", "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// replaceAttr customizes attribute names and values
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		switch level {
		case slog.LevelDebug:
			return slog.Attr{Key: a.Key, Value: slog.StringValue("DEBUG")}
		case slog.LevelInfo:
			return slog.Attr{Key: a.Key, Value: slog.StringValue("INFO")}
		case slog.LevelWarn:
			return slog.Attr{Key: a.Key, Value: slog.StringValue("WARN")}
		case slog.LevelError:
			return slog.Attr{Key: a.Key, Value: slog.StringValue("ERROR")}
		}
	}
	return a
}

// Debug logs a formatted debug-level message
func (l *SlogLogger) Debug(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", l.component)
}

// Info logs a formatted info-level message
func (l *SlogLogger) Info(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...), "component", l.component)
}

// Warn logs a formatted warning-level message
func (l *SlogLogger) Warn(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", l.component)
}

// Error logs a formatted error-level message
func (l *SlogLogger) Error(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", l.component)
}

// StepStart logs the start of a deployment step
func (l *SlogLogger) StepStart(deploymentID, step string, current, total int) {
	l.logger.Info("Starting deployment step",
		"component", l.component,
		"deployment_id", deploymentID,
		"step", step,
		"current", current,
		"total", total)
}

// StepSuccess logs a completed deployment step
func (l *SlogLogger) StepSuccess(deploymentID, step string) {
	l.logger.Info("Deployment step completed",
		"component", l.component,
		"deployment_id", deploymentID,
		"step", step,
		"status", "completed")
}

// StepFailed logs a failed deployment step
func (l *SlogLogger) StepFailed(deploymentID, step string, err error) {
	l.logger.Error("Deployment step failed",
		"component", l.component,
		"deployment_id", deploymentID,
		"step", step,
		"status", "failed",
		"error", err)
}

// DeploymentSummary logs the outcome of a full deployment
func (l *SlogLogger) DeploymentSummary(deploymentID string, completedSteps int, failed bool) {
	if failed {
		l.logger.Warn("Deployment finished with errors",
			"component", l.component,
			"deployment_id", deploymentID,
			"steps_completed", completedSteps,
			"status", "failed")
	} else {
		l.logger.Info("Deployment completed successfully",
			"component", l.component,
			"deployment_id", deploymentID,
			"steps_completed", completedSteps,
			"status", "completed")
	}
}
