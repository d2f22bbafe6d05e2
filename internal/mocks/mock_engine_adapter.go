// Package mocks provides hand-rolled configurable mocks for the interfaces
// package, used by orchestrator, service, and handler tests.
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

// AdapterCall records one engine adapter invocation
type AdapterCall struct {
	Command     string
	Environment string
	Selector    string
	Model       string
	IsProd      bool
}

// MockEngineAdapter implements interfaces.EngineAdapter with scripted
// per-command results. Unscripted commands succeed with empty output.
type MockEngineAdapter struct {
	mu      sync.Mutex
	name    string
	results map[string]*interfaces.EngineResult
	errors  map[string]error
	calls   []AdapterCall

	// Installed controls ValidateInstallation; defaults to true.
	installed bool
}

// NewMockEngineAdapter creates a mock adapter that succeeds on every command
func NewMockEngineAdapter(name string) *MockEngineAdapter {
	return &MockEngineAdapter{
		name:      name,
		results:   make(map[string]*interfaces.EngineResult),
		errors:    make(map[string]error),
		installed: true,
	}
}

// ScriptResult sets the result for one command (status, test, audit, diff,
// plan, migrate, run).
func (m *MockEngineAdapter) ScriptResult(command string, result *interfaces.EngineResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[command] = result
}

// ScriptFailure makes a command come back as success=false with the given
// stderr, mirroring how expected validation failures surface.
func (m *MockEngineAdapter) ScriptFailure(command, stderr string) {
	m.ScriptResult(command, &interfaces.EngineResult{
		Success:    false,
		Stderr:     stderr,
		ReturnCode: 1,
	})
}

// ScriptError makes a command return a bridge-level error
func (m *MockEngineAdapter) ScriptError(command string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[command] = err
}

// SetInstalled configures ValidateInstallation
func (m *MockEngineAdapter) SetInstalled(installed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installed = installed
}

// Calls returns the recorded invocations in order
func (m *MockEngineAdapter) Calls() []AdapterCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]AdapterCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns how many times a command was invoked
func (m *MockEngineAdapter) CallCount(command string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, call := range m.calls {
		if call.Command == command {
			count++
		}
	}
	return count
}

func (m *MockEngineAdapter) invoke(call AdapterCall) (*interfaces.EngineResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)

	if err, ok := m.errors[call.Command]; ok {
		return nil, err
	}
	if result, ok := m.results[call.Command]; ok {
		copied := *result
		return &copied, nil
	}
	return &interfaces.EngineResult{
		Success: true,
		Stdout:  fmt.Sprintf("%s ok", call.Command),
	}, nil
}

// Name implements interfaces.EngineAdapter
func (m *MockEngineAdapter) Name() string { return m.name }

// GetStatus implements interfaces.EngineAdapter
func (m *MockEngineAdapter) GetStatus(_ context.Context) (*interfaces.EngineResult, error) {
	return m.invoke(AdapterCall{Command: "status"})
}

// Test implements interfaces.EngineAdapter
func (m *MockEngineAdapter) Test(_ context.Context, selector string) (*interfaces.EngineResult, error) {
	return m.invoke(AdapterCall{Command: "test", Selector: selector})
}

// Audit implements interfaces.EngineAdapter
func (m *MockEngineAdapter) Audit(_ context.Context, selector string) (*interfaces.EngineResult, error) {
	return m.invoke(AdapterCall{Command: "audit", Selector: selector})
}

// Diff implements interfaces.EngineAdapter
func (m *MockEngineAdapter) Diff(_ context.Context, environment string) (*interfaces.EngineResult, error) {
	return m.invoke(AdapterCall{Command: "diff", Environment: environment})
}

// Plan implements interfaces.EngineAdapter
func (m *MockEngineAdapter) Plan(_ context.Context, environment string, isProd bool) (*interfaces.EngineResult, error) {
	return m.invoke(AdapterCall{Command: "plan", Environment: environment, IsProd: isProd})
}

// Migrate implements interfaces.EngineAdapter
func (m *MockEngineAdapter) Migrate(_ context.Context, environment string) (*interfaces.EngineResult, error) {
	return m.invoke(AdapterCall{Command: "migrate", Environment: environment})
}

// Run implements interfaces.EngineAdapter
func (m *MockEngineAdapter) Run(_ context.Context, environment, model string) (*interfaces.EngineResult, error) {
	return m.invoke(AdapterCall{Command: "run", Environment: environment, Model: model})
}

// ValidateInstallation implements interfaces.EngineAdapter
func (m *MockEngineAdapter) ValidateInstallation(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installed
}
