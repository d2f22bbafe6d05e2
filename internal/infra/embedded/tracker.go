package embedded

import (
	"fmt"
	"sync"
	"time"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

// Tracker implements interfaces.DeploymentTracker with in-memory storage.
// Copies are stored and returned so callers never share mutable state with
// the tracker.
type Tracker struct {
	mu          sync.RWMutex
	deployments map[string]*interfaces.Deployment
}

// NewTracker creates an embedded deployment tracker
func NewTracker() *Tracker {
	return &Tracker{
		deployments: make(map[string]*interfaces.Deployment),
	}
}

// Register adds a new deployment to the tracker
func (t *Tracker) Register(deployment *interfaces.Deployment) error {
	if deployment == nil {
		return fmt.Errorf("deployment is nil")
	}
	if deployment.ID == "" {
		return fmt.Errorf("deployment ID is empty")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.deployments[deployment.ID]; exists {
		return fmt.Errorf("deployment %s already exists", deployment.ID)
	}
	t.deployments[deployment.ID] = copyDeployment(deployment)
	return nil
}

// GetByID returns a copy of a deployment by its ID
func (t *Tracker) GetByID(deploymentID string) (*interfaces.Deployment, error) {
	if deploymentID == "" {
		return nil, fmt.Errorf("deployment ID is empty")
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	deployment, exists := t.deployments[deploymentID]
	if !exists {
		return nil, fmt.Errorf("deployment %s not found", deploymentID)
	}
	return copyDeployment(deployment), nil
}

// GetStatus returns the status of a deployment
func (t *Tracker) GetStatus(deploymentID string) (*interfaces.DeploymentStatus, error) {
	if deploymentID == "" {
		return nil, fmt.Errorf("deployment ID is empty")
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	deployment, exists := t.deployments[deploymentID]
	if !exists {
		return nil, fmt.Errorf("deployment %s not found", deploymentID)
	}
	status := deployment.Status
	return &status, nil
}

// SetStatus updates the status of a deployment, stamping lifecycle timestamps
func (t *Tracker) SetStatus(deploymentID string, status interfaces.DeploymentStatus) error {
	if deploymentID == "" {
		return fmt.Errorf("deployment ID is empty")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	deployment, exists := t.deployments[deploymentID]
	if !exists {
		return fmt.Errorf("deployment %s not found", deploymentID)
	}
	if deployment.Status.IsTerminal() {
		return fmt.Errorf("deployment %s is already %s", deploymentID, deployment.Status)
	}

	deployment.Status = status

	now := time.Now().UTC()
	switch status {
	case interfaces.DeploymentStatusQueued:
	case interfaces.DeploymentStatusProcessing:
		if deployment.StartedAt == nil {
			deployment.StartedAt = &now
		}
	case interfaces.DeploymentStatusCompleted, interfaces.DeploymentStatusFailed, interfaces.DeploymentStatusCanceled:
		if deployment.CompletedAt == nil {
			deployment.CompletedAt = &now
		}
	}
	return nil
}

// SetResult replaces the tracked record with the orchestrator's terminal
// deployment, steps and all.
func (t *Tracker) SetResult(deploymentID string, result *interfaces.Deployment) error {
	if deploymentID == "" {
		return fmt.Errorf("deployment ID is empty")
	}
	if result == nil {
		return fmt.Errorf("result is nil")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, exists := t.deployments[deploymentID]
	if !exists {
		return fmt.Errorf("deployment %s not found", deploymentID)
	}
	if existing.Status == interfaces.DeploymentStatusCanceled {
		return fmt.Errorf("deployment %s is canceled", deploymentID)
	}
	t.deployments[deploymentID] = copyDeployment(result)
	return nil
}

// List returns copies of deployments matching the filter
func (t *Tracker) List(filter interfaces.DeploymentFilter) ([]*interfaces.Deployment, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var results []*interfaces.Deployment
	for _, deployment := range t.deployments {
		if matchesFilter(deployment, filter) {
			results = append(results, copyDeployment(deployment))
		}
	}
	return results, nil
}

// Remove deletes a deployment from the tracker
func (t *Tracker) Remove(deploymentID string) error {
	if deploymentID == "" {
		return fmt.Errorf("deployment ID is empty")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.deployments[deploymentID]; !exists {
		return fmt.Errorf("deployment %s not found", deploymentID)
	}
	delete(t.deployments, deploymentID)
	return nil
}

func matchesFilter(deployment *interfaces.Deployment, filter interfaces.DeploymentFilter) bool {
	if len(filter.Status) > 0 {
		matched := false
		for _, status := range filter.Status {
			if deployment.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if filter.Environment != "" && deployment.Environment != filter.Environment {
		return false
	}
	if !filter.CreatedAfter.IsZero() && deployment.CreatedAt.Before(filter.CreatedAfter) {
		return false
	}
	if !filter.CreatedBefore.IsZero() && deployment.CreatedAt.After(filter.CreatedBefore) {
		return false
	}
	return true
}

// copyDeployment makes a shallow copy with its own Steps and warnings slices
func copyDeployment(d *interfaces.Deployment) *interfaces.Deployment {
	c := *d
	if d.Steps != nil {
		c.Steps = make([]interfaces.Step, len(d.Steps))
		copy(c.Steps, d.Steps)
	}
	if d.DataLossWarnings != nil {
		c.DataLossWarnings = make([]string, len(d.DataLossWarnings))
		copy(c.DataLossWarnings, d.DataLossWarnings)
	}
	return &c
}
