package interfaces

import "context"

// EngineResult is the uniform reply from a transformation engine call.
// Expected validation failures (failing tests, failing audits) come back as
// Success=false, never as a Go error; errors are reserved for subprocess and
// protocol failures.
type EngineResult struct {
	Success    bool   `json:"success"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
	Error      string `json:"error,omitempty"`
	TimedOut   bool   `json:"timeout,omitempty"`
}

// EngineAdapter is the uniform contract for one transformation backend.
// All orchestration logic is written against this interface; the factory
// returns an interface value so callers stay backend-agnostic.
type EngineAdapter interface {
	// Name returns the engine identifier (e.g. "sqlmesh", "dbt").
	Name() string

	// GetStatus is a cheap liveness/status probe against the backend.
	GetStatus(ctx context.Context) (*EngineResult, error)

	// Test runs the backend's model/unit tests. An empty selector runs all tests.
	Test(ctx context.Context, selector string) (*EngineResult, error)

	// Audit runs backend-native data-quality audits.
	Audit(ctx context.Context, selector string) (*EngineResult, error)

	// Diff describes pending schema/data changes versus the current state of
	// the environment.
	Diff(ctx context.Context, environment string) (*EngineResult, error)

	// Plan computes an execution plan without applying it. Plan output may
	// embed compute-cost hints.
	Plan(ctx context.Context, environment string, isProd bool) (*EngineResult, error)

	// Migrate applies the plan, atomically swapping the new state into the
	// environment.
	Migrate(ctx context.Context, environment string) (*EngineResult, error)

	// Run executes models in the environment. An empty model runs everything.
	Run(ctx context.Context, environment, model string) (*EngineResult, error)

	// ValidateInstallation confirms the backend executable is present and usable.
	ValidateInstallation(ctx context.Context) bool
}
