// Package embedded provides the in-process infrastructure used when
// Lakeshift runs as a single node: a channel-backed deployment queue, an
// in-memory tracker, and a worker pool.
package embedded

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

// Queue implements interfaces.DeploymentQueue using a buffered Go channel
type Queue struct {
	mu          sync.RWMutex
	deployments chan *interfaces.Deployment
	cancelMap   map[string]context.CancelFunc
	closed      bool
	closeOnce   sync.Once

	totalEnqueued  int64
	totalDequeued  int64
	oldestEnqueued time.Time
	totalWaitTime  time.Duration
}

// NewQueue creates an embedded deployment queue
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 100
	}
	return &Queue{
		deployments: make(chan *interfaces.Deployment, capacity),
		cancelMap:   make(map[string]context.CancelFunc),
	}
}

// Enqueue adds a deployment to the queue without blocking; a full queue is an
// error, not a wait.
func (q *Queue) Enqueue(ctx context.Context, deployment *interfaces.Deployment) error {
	if deployment == nil {
		return fmt.Errorf("deployment is nil")
	}
	if deployment.ID == "" {
		return fmt.Errorf("deployment ID is empty")
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue is closed")
	}
	if err := ctx.Err(); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("enqueue canceled: %w", err)
	}

	deployCtx, cancel := context.WithCancel(ctx)
	q.cancelMap[deployment.ID] = cancel
	q.mu.Unlock()

	select {
	case q.deployments <- deployment:
		q.mu.Lock()
		q.totalEnqueued++
		if q.oldestEnqueued.IsZero() || len(q.deployments) == 1 {
			q.oldestEnqueued = time.Now()
		}
		q.mu.Unlock()
		return nil
	case <-deployCtx.Done():
		q.mu.Lock()
		delete(q.cancelMap, deployment.ID)
		q.mu.Unlock()
		return fmt.Errorf("enqueue canceled: %w", deployCtx.Err())
	default:
		q.mu.Lock()
		delete(q.cancelMap, deployment.ID)
		q.mu.Unlock()
		return fmt.Errorf("queue is full")
	}
}

// Cancel cancels a deployment still waiting in the queue
func (q *Queue) Cancel(_ context.Context, deploymentID string) error {
	if deploymentID == "" {
		return fmt.Errorf("deployment ID is empty")
	}

	q.mu.Lock()
	cancel, exists := q.cancelMap[deploymentID]
	if !exists {
		q.mu.Unlock()
		return fmt.Errorf("deployment %s not found in queue", deploymentID)
	}
	delete(q.cancelMap, deploymentID)
	q.mu.Unlock()

	cancel()
	return nil
}

// Dequeue retrieves the next deployment; used by the worker pool
func (q *Queue) Dequeue(ctx context.Context) (*interfaces.Deployment, error) {
	select {
	case deployment := <-q.deployments:
		if deployment == nil {
			return nil, fmt.Errorf("queue is closed")
		}

		q.mu.Lock()
		q.totalDequeued++
		if !deployment.CreatedAt.IsZero() {
			q.totalWaitTime += time.Since(deployment.CreatedAt)
		}
		if len(q.deployments) == 0 {
			q.oldestEnqueued = time.Time{}
		}
		delete(q.cancelMap, deployment.ID)
		q.mu.Unlock()

		return deployment, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("context canceled: %w", ctx.Err())
	}
}

// Close closes the queue and cancels everything still waiting
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		defer q.mu.Unlock()

		q.closed = true
		close(q.deployments)

		for _, cancel := range q.cancelMap {
			cancel()
		}
		q.cancelMap = make(map[string]context.CancelFunc)
	})
}

// Size returns the current queue depth
func (q *Queue) Size() int {
	return len(q.deployments)
}

// Capacity returns the queue capacity
func (q *Queue) Capacity() int {
	return cap(q.deployments)
}

// GetMetrics returns queue throughput metrics
func (q *Queue) GetMetrics() interfaces.QueueMetrics {
	q.mu.RLock()
	defer q.mu.RUnlock()

	metrics := interfaces.QueueMetrics{
		TotalEnqueued:    q.totalEnqueued,
		TotalDequeued:    q.totalDequeued,
		CurrentDepth:     len(q.deployments),
		OldestDeployment: q.oldestEnqueued,
	}
	if q.totalDequeued > 0 {
		metrics.AverageWaitTime = q.totalWaitTime / time.Duration(q.totalDequeued)
	}
	return metrics
}
