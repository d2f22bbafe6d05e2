// Package executor connects the queue consumers to the orchestrator: it
// resolves the engine adapter for a dequeued deployment and runs the state
// machine. Both the embedded and distributed worker pools invoke it through
// the same function signature.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/lakeshift/lakeshift/internal/engine"
	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/logging"
	"github.com/lakeshift/lakeshift/internal/orchestrator"
)

// Executor runs dequeued deployments to a terminal state
type Executor struct {
	orchestrator *orchestrator.Orchestrator
	factory      *engine.Factory
	logger       *logging.Logger
}

// New creates an executor
func New(orch *orchestrator.Orchestrator, factory *engine.Factory) (*Executor, error) {
	if orch == nil {
		return nil, errors.New("orchestrator is required")
	}
	if factory == nil {
		return nil, errors.New("engine factory is required")
	}
	return &Executor{
		orchestrator: orch,
		factory:      factory,
		logger:       logging.NewLogger("executor"),
	}, nil
}

// Execute resolves the deployment's engine adapter and drives the state
// machine. The deployment is mutated in place to its terminal state; the
// returned error mirrors the deployment's failure cause.
func (e *Executor) Execute(ctx context.Context, dep *interfaces.Deployment) error {
	adapter, err := e.resolveAdapter(ctx, dep)
	if err != nil {
		cause := fmt.Errorf("no engine adapter available: %w", err)
		e.orchestrator.FailBeforeStart(ctx, dep, cause)
		return cause
	}
	return e.orchestrator.Execute(ctx, dep, adapter)
}

// resolveAdapter builds the adapter for the deployment's engine. The engine
// name was resolved when the request was accepted; an empty name falls back
// to the factory's full resolution chain.
func (e *Executor) resolveAdapter(ctx context.Context, dep *interfaces.Deployment) (interfaces.EngineAdapter, error) {
	if dep.Engine != "" {
		return e.factory.Create(ctx, dep.Engine)
	}

	e.logger.Debugf("deployment %s carries no engine, resolving from project", dep.ID)
	adapter, err := e.factory.Resolve(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	dep.Engine = adapter.Name()
	return adapter, nil
}
