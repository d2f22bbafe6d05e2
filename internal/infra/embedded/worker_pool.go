package embedded

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"

	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/pkg/logging"
)

// DeploymentExecutor runs one deployment to a terminal state
type DeploymentExecutor func(ctx context.Context, deployment *interfaces.Deployment) error

// WorkerPool implements interfaces.WorkerPool over gammazero/workerpool
type WorkerPool struct {
	pool     *workerpool.WorkerPool
	queue    *Queue
	tracker  *Tracker
	executor DeploymentExecutor
	logger   *logging.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// WorkerPoolConfig configures the embedded worker pool
type WorkerPoolConfig struct {
	Workers  int
	Queue    *Queue
	Tracker  *Tracker
	Executor DeploymentExecutor
}

// NewWorkerPool creates an embedded worker pool
func NewWorkerPool(config WorkerPoolConfig) (*WorkerPool, error) {
	if config.Queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if config.Tracker == nil {
		return nil, fmt.Errorf("tracker is required")
	}
	if config.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		pool:     workerpool.New(config.Workers),
		queue:    config.Queue,
		tracker:  config.Tracker,
		executor: config.Executor,
		logger:   logging.NewLogger("embedded-worker"),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins processing deployments from the queue
func (p *WorkerPool) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.processLoop()
}

// Stop gracefully stops the worker pool, honoring the context deadline
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("stop timeout: %w", ctx.Err())
	}

	p.pool.StopWait()
	return nil
}

// processLoop continuously dequeues and dispatches deployments
func (p *WorkerPool) processLoop() {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker pool process loop panicked: %v", r)
		}
	}()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
			deployment, err := p.queue.Dequeue(p.ctx)
			if err != nil {
				if p.ctx.Err() != nil {
					return
				}
				continue
			}
			p.pool.Submit(func() {
				p.processDeployment(deployment)
			})
		}
	}
}

// processDeployment runs one deployment and records its terminal state
func (p *WorkerPool) processDeployment(deployment *interfaces.Deployment) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker panic while processing deployment %s: %v", deployment.ID, r)
			deployment.Status = interfaces.DeploymentStatusFailed
			deployment.Error = fmt.Sprintf("panic during execution: %v", r)
			if err := p.tracker.SetResult(deployment.ID, deployment); err != nil {
				p.logger.Error("failed to record result after panic: %v", err)
			}
		}
	}()

	// A deployment canceled while it sat in the queue channel is still
	// delivered by Dequeue; the tracker is the authority on whether it may run.
	status, err := p.tracker.GetStatus(deployment.ID)
	if err != nil {
		p.logger.Error("failed to read status for deployment %s: %v", deployment.ID, err)
		return
	}
	if *status != interfaces.DeploymentStatusQueued {
		p.logger.Info("skipping deployment %s: status is %s", deployment.ID, *status)
		return
	}

	if err := p.tracker.SetStatus(deployment.ID, interfaces.DeploymentStatusProcessing); err != nil {
		p.logger.Error("failed to update status to processing: %v", err)
		return
	}

	// The executor drives the deployment to a terminal state and mutates it
	// in place; the error mirrors deployment.Error.
	if execErr := p.executor(p.ctx, deployment); execErr != nil {
		p.logger.Error("deployment %s failed: %v", deployment.ID, execErr)
	}

	if err := p.tracker.SetResult(deployment.ID, deployment); err != nil {
		p.logger.Error("failed to record result for deployment %s: %v", deployment.ID, err)
	}
}

// GetWorkerCount returns the configured worker count
func (p *WorkerPool) GetWorkerCount() int {
	return p.pool.Size()
}

// GetQueuedCount returns the number of tasks waiting inside the pool
func (p *WorkerPool) GetQueuedCount() int {
	return p.pool.WaitingQueueSize()
}
