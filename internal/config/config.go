// Package config loads Lakeshift configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults for engine subprocess execution and cost accounting
const (
	DefaultEngineTimeout  = 300 * time.Second
	DefaultKillGraceWait  = 5 * time.Second
	DefaultComputeRate    = 2.0 // dollars per compute hour
	DefaultProjectPath    = "./transform-project"
	DefaultLedgerPath     = ".lakeshift/cost-ledger.json"
	DefaultHistoryPath    = ".lakeshift/deployment-history.json"
	DefaultFlagFilePath   = ".lakeshift/feature-flags.json"
	DefaultQueueCapacity  = 100
	DefaultWorkerPoolSize = 4
)

// Config holds runtime configuration for deployments and cost accounting
type Config struct {
	// ProjectPath is the root of the transformation project handed to engines
	ProjectPath string
	// EngineTimeout bounds each engine subprocess call
	EngineTimeout time.Duration
	// KillGraceWait is how long to wait after a graceful stop signal before
	// forcing a kill
	KillGraceWait time.Duration
	// ComputeRate is the hourly compute rate in dollars
	ComputeRate float64
	// LedgerPath is the local cost ledger file
	LedgerPath string
	// HistoryPath is the local deployment history file
	HistoryPath string
	// FlagFilePath is the feature flag file consumed by the engine factory
	FlagFilePath string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	cfg := &Config{
		ProjectPath:   DefaultProjectPath,
		EngineTimeout: DefaultEngineTimeout,
		KillGraceWait: DefaultKillGraceWait,
		ComputeRate:   DefaultComputeRate,
		LedgerPath:    DefaultLedgerPath,
		HistoryPath:   DefaultHistoryPath,
		FlagFilePath:  DefaultFlagFilePath,
	}

	if path := os.Getenv("LAKESHIFT_PROJECT_PATH"); path != "" {
		cfg.ProjectPath = path
	}
	if timeout := os.Getenv("LAKESHIFT_ENGINE_TIMEOUT"); timeout != "" {
		if duration, err := time.ParseDuration(timeout); err == nil {
			cfg.EngineTimeout = duration
		}
	}
	if rate := os.Getenv("LAKESHIFT_COMPUTE_RATE"); rate != "" {
		if parsed, err := strconv.ParseFloat(rate, 64); err == nil && parsed >= 0 {
			cfg.ComputeRate = parsed
		}
	}
	if path := os.Getenv("LAKESHIFT_LEDGER_PATH"); path != "" {
		cfg.LedgerPath = path
	}
	if path := os.Getenv("LAKESHIFT_HISTORY_PATH"); path != "" {
		cfg.HistoryPath = path
	}
	if path := os.Getenv("LAKESHIFT_FLAG_FILE"); path != "" {
		cfg.FlagFilePath = path
	}

	return cfg
}
