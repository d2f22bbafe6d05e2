package deployment

import (
	"context"
	"errors"
	"fmt"

	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/logging"
	"github.com/lakeshift/lakeshift/internal/orchestrator"
)

// Service accepts deployment requests, registers them with the tracker, and
// hands them to the queue for asynchronous execution.
type Service struct {
	queue   interfaces.DeploymentQueue
	tracker interfaces.DeploymentTracker
	history interfaces.HistoryStore
	logger  *logging.Logger
}

// ServiceConfig holds the dependencies for the deployment service
type ServiceConfig struct {
	Queue   interfaces.DeploymentQueue
	Tracker interfaces.DeploymentTracker
	History interfaces.HistoryStore
}

// NewService creates a deployment service
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queue == nil {
		return nil, errors.New("deployment queue is required")
	}
	if cfg.Tracker == nil {
		return nil, errors.New("deployment tracker is required")
	}
	return &Service{
		queue:   cfg.Queue,
		tracker: cfg.Tracker,
		history: cfg.History,
		logger:  logging.NewLogger("deployment-service"),
	}, nil
}

// CreateDeployment validates the request, registers a new queued deployment,
// and enqueues it. Tracker registration happens first so a status query never
// races the queue.
func (s *Service) CreateDeployment(ctx context.Context, request *interfaces.DeploymentRequest) (*interfaces.Deployment, error) {
	if request == nil {
		return nil, ErrInvalidRequest
	}
	if request.Environment == "" {
		return nil, ErrEnvironmentRequired
	}

	dep := orchestrator.NewDeployment(request)

	if request.Metadata != nil {
		if requestID, ok := request.Metadata[interfaces.MetadataKeyRequestID].(string); ok && requestID != "" {
			dep.RequestID = requestID
		}
	}

	if err := s.tracker.Register(dep); err != nil {
		return nil, fmt.Errorf("failed to register deployment: %w", err)
	}
	if err := s.queue.Enqueue(ctx, dep); err != nil {
		// Roll the registration back so the failed create leaves no trace
		if removeErr := s.tracker.Remove(dep.ID); removeErr != nil {
			s.logger.Warnf("failed to remove deployment %s after enqueue failure: %v", dep.ID, removeErr)
		}
		return nil, fmt.Errorf("failed to enqueue deployment: %w", err)
	}

	s.logger.Infof("created deployment %s: environment=%s engine=%s", dep.ID, dep.Environment, dep.Engine)
	return dep, nil
}

// GetDeploymentByID retrieves a deployment by its ID
func (s *Service) GetDeploymentByID(deploymentID string) (*interfaces.Deployment, error) {
	if deploymentID == "" {
		return nil, ErrInvalidRequest
	}

	dep, err := s.tracker.GetByID(deploymentID)
	if err != nil {
		return nil, ErrDeploymentNotFound
	}
	return dep, nil
}

// GetDeploymentStatus returns the current status of a deployment
func (s *Service) GetDeploymentStatus(deploymentID string) (*interfaces.DeploymentStatus, error) {
	if deploymentID == "" {
		return nil, ErrInvalidRequest
	}

	status, err := s.tracker.GetStatus(deploymentID)
	if err != nil {
		return nil, ErrDeploymentNotFound
	}
	return status, nil
}

// ListDeployments returns deployments matching the filter criteria
func (s *Service) ListDeployments(filter interfaces.DeploymentFilter) ([]*interfaces.Deployment, error) {
	deployments, err := s.tracker.List(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	return deployments, nil
}

// CancelDeployment removes a still-queued deployment. Deployments already
// processing or terminal cannot be canceled.
func (s *Service) CancelDeployment(ctx context.Context, deploymentID string) error {
	if deploymentID == "" {
		return ErrInvalidRequest
	}

	status, err := s.tracker.GetStatus(deploymentID)
	if err != nil {
		return ErrDeploymentNotFound
	}

	switch *status {
	case interfaces.DeploymentStatusQueued:
	case interfaces.DeploymentStatusProcessing:
		return ErrDeploymentInProgress
	default:
		return ErrDeploymentTerminal
	}

	if err := s.queue.Cancel(ctx, deploymentID); err != nil {
		return fmt.Errorf("failed to cancel deployment: %w", err)
	}
	if err := s.tracker.SetStatus(deploymentID, interfaces.DeploymentStatusCanceled); err != nil {
		return fmt.Errorf("failed to mark deployment canceled: %w", err)
	}
	return nil
}

// RecentHistory returns the most recent terminal deployment records
func (s *Service) RecentHistory(ctx context.Context, limit int) ([]*interfaces.Deployment, error) {
	if s.history == nil {
		return []*interfaces.Deployment{}, nil
	}
	records, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment history: %w", err)
	}
	return records, nil
}

// QueueMetrics exposes queue throughput for monitoring endpoints
func (s *Service) QueueMetrics() interfaces.QueueMetrics {
	return s.queue.GetMetrics()
}
