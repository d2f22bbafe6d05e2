// Package distributed provides Redis-backed infrastructure for multi-node
// Lakeshift deployments: an asynq queue, a Redis tracker, and an asynq worker
// pool.
package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/pkg/logging"
)

// TaskTypeDeployment is the asynq task type for deployment execution
const TaskTypeDeployment = "deployment:process"

// queueName is the asynq queue deployments are routed to
const queueName = "deployments"

// Queue implements interfaces.DeploymentQueue over asynq
type Queue struct {
	client   *asynq.Client
	redisOpt asynq.RedisConnOpt
	logger   *logging.Logger
}

// NewQueue creates a distributed deployment queue from a Redis URL
func NewQueue(redisURL string) (*Queue, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &Queue{
		client:   asynq.NewClient(redisOpt),
		redisOpt: redisOpt,
		logger:   logging.NewLogger("distributed-queue"),
	}, nil
}

// Enqueue serializes the deployment and submits it as an asynq task. Tasks
// carry the deployment ID so cancellation and inspection can find them.
func (q *Queue) Enqueue(ctx context.Context, deployment *interfaces.Deployment) error {
	if deployment == nil {
		return fmt.Errorf("deployment is nil")
	}
	if deployment.ID == "" {
		return fmt.Errorf("deployment ID is empty")
	}

	payload, err := json.Marshal(deployment)
	if err != nil {
		return fmt.Errorf("failed to marshal deployment: %w", err)
	}

	// The state machine has no internal retry loop; a failed deployment is
	// retried by creating a new one, so tasks never retry either.
	task := asynq.NewTask(TaskTypeDeployment, payload,
		asynq.TaskID(deployment.ID),
		asynq.Queue(queueName),
		asynq.MaxRetry(0),
	)

	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue deployment: %w", err)
	}

	q.logger.Info("enqueued deployment %s, task ID: %s", deployment.ID, info.ID)
	return nil
}

// Cancel removes a deployment still waiting in the queue. Tasks already
// processing cannot be canceled from here.
func (q *Queue) Cancel(_ context.Context, deploymentID string) error {
	if deploymentID == "" {
		return fmt.Errorf("deployment ID is empty")
	}

	inspector := asynq.NewInspector(q.redisOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			q.logger.Warn("failed to close inspector during cancel: %v", err)
		}
	}()

	if err := inspector.DeleteTask(queueName, deploymentID); err == nil {
		return nil
	}
	return fmt.Errorf("deployment %s not found in queue or already processing", deploymentID)
}

// GetMetrics reads queue metrics through the asynq inspector
func (q *Queue) GetMetrics() interfaces.QueueMetrics {
	inspector := asynq.NewInspector(q.redisOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			q.logger.Warn("failed to close inspector: %v", err)
		}
	}()

	info, err := inspector.GetQueueInfo(queueName)
	if err != nil {
		q.logger.Error("failed to get queue info: %v", err)
		return interfaces.QueueMetrics{}
	}

	var oldest time.Time
	if info.Size > 0 {
		tasks, err := inspector.ListPendingTasks(queueName, asynq.PageSize(1))
		if err == nil && len(tasks) > 0 {
			oldest = tasks[0].NextProcessAt
		}
	}

	return interfaces.QueueMetrics{
		TotalEnqueued:    int64(info.Processed + info.Size + info.Active),
		TotalDequeued:    int64(info.Processed),
		CurrentDepth:     info.Size,
		AverageWaitTime:  info.Latency,
		OldestDeployment: oldest,
	}
}

// RedisOpt exposes the connection options so the tracker and worker pool can
// share the same Redis connection settings.
func (q *Queue) RedisOpt() asynq.RedisConnOpt {
	return q.redisOpt
}

// Close closes the underlying asynq client
func (q *Queue) Close() {
	if err := q.client.Close(); err != nil {
		q.logger.Error("failed to close asynq client: %v", err)
	}
}
