package distributed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/pkg/logging"
)

// DeploymentExecutor runs one deployment to a terminal state
type DeploymentExecutor func(ctx context.Context, deployment *interfaces.Deployment) error

// WorkerPool implements interfaces.WorkerPool using an asynq server
type WorkerPool struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	tracker     *Tracker
	executor    DeploymentExecutor
	redisOpt    asynq.RedisConnOpt
	logger      *logging.Logger
	concurrency int
}

// WorkerPoolConfig configures the distributed worker pool
type WorkerPoolConfig struct {
	RedisURL    string
	Tracker     *Tracker
	Executor    DeploymentExecutor
	Concurrency int
}

// NewWorkerPool creates a distributed worker pool
func NewWorkerPool(config WorkerPoolConfig) (*WorkerPool, error) {
	if config.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	if config.Tracker == nil {
		return nil, fmt.Errorf("tracker is required")
	}
	if config.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}

	redisOpt, err := asynq.ParseRedisURI(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: config.Concurrency,
		Queues: map[string]int{
			queueName: 3,
			"default": 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logging.NewLogger("distributed-worker").Error("error processing task %s: %v", task.Type(), err)
		}),
	})

	pool := &WorkerPool{
		server:      server,
		mux:         asynq.NewServeMux(),
		tracker:     config.Tracker,
		executor:    config.Executor,
		redisOpt:    redisOpt,
		concurrency: config.Concurrency,
		logger:      logging.NewLogger("distributed-worker"),
	}
	pool.mux.HandleFunc(TaskTypeDeployment, pool.handleDeploymentTask)
	return pool, nil
}

// Start begins processing deployment tasks
func (p *WorkerPool) Start() {
	go func() {
		if err := p.server.Start(p.mux); err != nil {
			p.logger.Error("failed to start asynq server: %v", err)
		}
	}()
}

// Stop gracefully stops the worker pool, honoring the context deadline
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.server.Shutdown()

	done := make(chan struct{})
	go func() {
		p.server.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop timeout: %w", ctx.Err())
	}
}

// handleDeploymentTask deserializes and executes one deployment task. The
// executor drives the deployment to a terminal state; the terminal record is
// written back regardless of outcome. A returned error would trigger asynq's
// retry machinery, so failures are absorbed here.
func (p *WorkerPool) handleDeploymentTask(ctx context.Context, task *asynq.Task) error {
	var deployment interfaces.Deployment
	if err := json.Unmarshal(task.Payload(), &deployment); err != nil {
		return fmt.Errorf("failed to unmarshal deployment: %w", err)
	}

	// Cancellation can land after the task was enqueued; the tracker decides
	// whether the deployment may still run.
	status, err := p.tracker.GetStatus(deployment.ID)
	if err != nil {
		p.logger.Error("failed to read status for deployment %s: %v", deployment.ID, err)
		return nil
	}
	if *status != interfaces.DeploymentStatusQueued {
		p.logger.Info("skipping deployment %s: status is %s", deployment.ID, *status)
		return nil
	}

	if err := p.tracker.SetStatus(deployment.ID, interfaces.DeploymentStatusProcessing); err != nil {
		p.logger.Error("failed to update status to processing: %v", err)
		return nil
	}

	if execErr := p.executor(ctx, &deployment); execErr != nil {
		p.logger.Error("deployment %s failed: %v", deployment.ID, execErr)
	}

	if err := p.tracker.SetResult(deployment.ID, &deployment); err != nil {
		p.logger.Error("failed to store result for deployment %s: %v", deployment.ID, err)
	}
	return nil
}

// GetWorkerCount returns the configured concurrency
func (p *WorkerPool) GetWorkerCount() int {
	return p.concurrency
}

// GetQueuedCount returns the current queue depth
func (p *WorkerPool) GetQueuedCount() int {
	inspector := asynq.NewInspector(p.redisOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			p.logger.Warn("failed to close inspector: %v", err)
		}
	}()

	info, err := inspector.GetQueueInfo(queueName)
	if err != nil {
		return 0
	}
	return info.Size
}
