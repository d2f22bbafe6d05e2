// Package interfaces defines the central contracts shared across Lakeshift
// components: engine adapters, deployment queue/tracker infrastructure, and
// the cost ledger.
package interfaces

import (
	"context"
	"time"
)

// DeploymentStatus represents the lifecycle state of a deployment
type DeploymentStatus string

// Deployment lifecycle states
const (
	DeploymentStatusQueued     DeploymentStatus = "queued"
	DeploymentStatusProcessing DeploymentStatus = "processing"
	DeploymentStatusCompleted  DeploymentStatus = "completed"
	DeploymentStatusFailed     DeploymentStatus = "failed"
	DeploymentStatusCanceled   DeploymentStatus = "canceled"
)

// IsTerminal reports whether the status is an end state. Terminal deployments
// admit no further transitions.
func (s DeploymentStatus) IsTerminal() bool {
	switch s {
	case DeploymentStatusCompleted, DeploymentStatusFailed, DeploymentStatusCanceled:
		return true
	}
	return false
}

// StepName identifies one stage of the deployment state machine
type StepName string

// Deployment state machine stages, in execution order. Rollback, when
// present, is always the last step.
const (
	StepPreValidation    StepName = "pre_validation"
	StepCreateShadow     StepName = "create_shadow"
	StepShadowValidation StepName = "shadow_validation"
	StepSafetyChecks     StepName = "safety_checks"
	StepAtomicSwap       StepName = "atomic_swap"
	StepPostValidation   StepName = "post_validation"
	StepRollback         StepName = "rollback"
)

// StepStatus is the terminal state of a single step
type StepStatus string

// Step outcomes
const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// Step records one named stage within a deployment. Steps are append-only
// during execution and appear in the order executed.
type Step struct {
	Name        StepName   `json:"name"`
	Status      StepStatus `json:"status"`
	Output      string     `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt time.Time  `json:"completedAt"`
}

// DeploymentRequest describes one requested promotion of a transformation
// project into an environment.
type DeploymentRequest struct {
	Environment    string                 `json:"environment"`
	Engine         string                 `json:"engine"`
	TargetSelector string                 `json:"target_selector,omitempty"`
	IsProd         bool                   `json:"is_prod"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Deployment is one attempt to promote a transformation project into an
// environment. It is owned exclusively by the orchestrator driving it and is
// never mutated after reaching a terminal state.
type Deployment struct {
	ID            string             `json:"id"`
	Environment   string             `json:"environment"`
	Engine        string             `json:"engine"`
	Request       *DeploymentRequest `json:"request,omitempty"`
	Steps         []Step             `json:"steps"`
	Status        DeploymentStatus   `json:"status,omitempty"`
	Error         string             `json:"error,omitempty"`
	RollbackError string             `json:"rollbackError,omitempty"`
	// AccountingError records a cost-ledger write failure for an otherwise
	// completed deployment; the run happened but was never billed.
	AccountingError string `json:"accountingError,omitempty"`
	// DataLossWarnings flags potential data loss detected in the diff for
	// audit purposes; they do not block the deployment by themselves.
	DataLossWarnings []string   `json:"dataLossWarnings,omitempty"`
	RequestID        string     `json:"requestId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// DurationMillis returns the deployment duration in milliseconds, or 0 when
// the deployment has not both started and completed.
func (d *Deployment) DurationMillis() int64 {
	if d.StartedAt == nil || d.CompletedAt == nil {
		return 0
	}
	return d.CompletedAt.Sub(*d.StartedAt).Milliseconds()
}

// DeploymentFilter restricts List results
type DeploymentFilter struct {
	Status        []DeploymentStatus
	Environment   string
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// QueueMetrics reports queue throughput and depth
type QueueMetrics struct {
	TotalEnqueued    int64
	TotalDequeued    int64
	CurrentDepth     int
	AverageWaitTime  time.Duration
	OldestDeployment time.Time
}

// DeploymentQueue accepts deployments for asynchronous execution
type DeploymentQueue interface {
	Enqueue(ctx context.Context, deployment *Deployment) error
	Cancel(ctx context.Context, deploymentID string) error
	GetMetrics() QueueMetrics
	Close()
}

// DeploymentTracker records the live state of deployments
type DeploymentTracker interface {
	Register(deployment *Deployment) error
	GetByID(deploymentID string) (*Deployment, error)
	GetStatus(deploymentID string) (*DeploymentStatus, error)
	SetStatus(deploymentID string, status DeploymentStatus) error
	SetResult(deploymentID string, result *Deployment) error
	List(filter DeploymentFilter) ([]*Deployment, error)
	Remove(deploymentID string) error
}

// WorkerPool processes queued deployments
type WorkerPool interface {
	Start()
	Stop(ctx context.Context) error
	GetWorkerCount() int
	GetQueuedCount() int
}

// HistoryStore persists terminal deployment records. Records are appended on
// completion and never mutated afterwards.
type HistoryStore interface {
	Append(ctx context.Context, deployment *Deployment) error
	Recent(ctx context.Context, limit int) ([]*Deployment, error)
}

// EnvironmentLease guards against two concurrent deployments targeting the
// same environment corrupting each other's shadow state.
type EnvironmentLease interface {
	// Acquire takes the lease for an environment on behalf of a deployment.
	// It fails fast when another deployment holds the lease.
	Acquire(ctx context.Context, environment, deploymentID string) (func(), error)
}
