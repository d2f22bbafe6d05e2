// Package engine provides transformation-engine adapters and the factory that
// selects between them. Every backend is driven through the same subprocess
// protocol; the orchestrator only ever sees the EngineAdapter interface.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lakeshift/lakeshift/internal/engine/bridge"
	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/logging"
)

// ErrEngineDisabled is returned before any process is spawned when the
// engine's feature flag is off.
var ErrEngineDisabled = errors.New("engine is disabled by feature flag")

// installProbeTimeout bounds the installation validation probe
const installProbeTimeout = 10 * time.Second

// Adapter drives one transformation backend through the subprocess bridge
type Adapter struct {
	name    string
	bridge  *bridge.Bridge
	enabled bool
	logger  *logging.Logger
}

// AdapterConfig configures a backend adapter
type AdapterConfig struct {
	Name        string
	Executable  string
	ProjectPath string
	Timeout     time.Duration
	KillGrace   time.Duration
	Enabled     bool
}

// NewAdapter creates an adapter for one backend
func NewAdapter(cfg AdapterConfig) (*Adapter, error) {
	b, err := bridge.New(bridge.Config{
		Engine:      cfg.Name,
		Executable:  cfg.Executable,
		ProjectPath: cfg.ProjectPath,
		Timeout:     cfg.Timeout,
		KillGrace:   cfg.KillGrace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge for engine %s: %w", cfg.Name, err)
	}
	return &Adapter{
		name:    cfg.Name,
		bridge:  b,
		enabled: cfg.Enabled,
		logger:  logging.NewLogger("engine-" + cfg.Name),
	}, nil
}

// Name returns the engine identifier
func (a *Adapter) Name() string {
	return a.name
}

// execute gates every call on the feature flag before touching the bridge
func (a *Adapter) execute(ctx context.Context, req bridge.Request) (*interfaces.EngineResult, error) {
	if !a.enabled {
		return nil, fmt.Errorf("engine %s: %w", a.name, ErrEngineDisabled)
	}
	return a.bridge.Execute(ctx, req)
}

// GetStatus is a cheap liveness probe against the backend
func (a *Adapter) GetStatus(ctx context.Context) (*interfaces.EngineResult, error) {
	return a.execute(ctx, bridge.Request{Command: "status"})
}

// Test runs the backend's model/unit tests
func (a *Adapter) Test(ctx context.Context, selector string) (*interfaces.EngineResult, error) {
	req := bridge.Request{Command: "test"}
	if selector != "" {
		req.Args = []string{selector}
	}
	return a.execute(ctx, req)
}

// Audit runs backend-native data-quality audits
func (a *Adapter) Audit(ctx context.Context, selector string) (*interfaces.EngineResult, error) {
	req := bridge.Request{Command: "audit"}
	if selector != "" {
		req.Args = []string{selector}
	}
	return a.execute(ctx, req)
}

// Diff describes pending changes versus the environment's current state
func (a *Adapter) Diff(ctx context.Context, environment string) (*interfaces.EngineResult, error) {
	return a.execute(ctx, bridge.Request{
		Command: "diff",
		Options: map[string]interface{}{"environment": environment},
	})
}

// Plan computes an execution plan without applying it
func (a *Adapter) Plan(ctx context.Context, environment string, isProd bool) (*interfaces.EngineResult, error) {
	return a.execute(ctx, bridge.Request{
		Command: "plan",
		Options: map[string]interface{}{
			"environment": environment,
			"is_prod":     isProd,
		},
	})
}

// Migrate applies the plan, atomically swapping the new state into the
// environment
func (a *Adapter) Migrate(ctx context.Context, environment string) (*interfaces.EngineResult, error) {
	return a.execute(ctx, bridge.Request{
		Command: "migrate",
		Options: map[string]interface{}{"environment": environment},
	})
}

// Run executes models in the environment
func (a *Adapter) Run(ctx context.Context, environment, model string) (*interfaces.EngineResult, error) {
	req := bridge.Request{
		Command: "run",
		Options: map[string]interface{}{"environment": environment},
	}
	if model != "" {
		req.Args = []string{model}
	}
	return a.execute(ctx, req)
}

// ValidateInstallation confirms the backend executable is present and usable
func (a *Adapter) ValidateInstallation(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, installProbeTimeout)
	defer cancel()

	result, err := a.execute(probeCtx, bridge.Request{Command: "validate_installation"})
	if err != nil {
		a.logger.Debugf("installation probe for %s failed: %v", a.name, err)
		return false
	}
	return result.Success
}
