package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

// trackerTTL bounds how long deployment records live in Redis
const trackerTTL = 7 * 24 * time.Hour

// Tracker implements interfaces.DeploymentTracker using Redis. Each
// deployment is one JSON value; a parallel status key allows cheap status
// polling without deserializing the whole record.
type Tracker struct {
	redis redis.UniversalClient
}

// NewTracker creates a Redis-backed deployment tracker sharing the queue's
// connection settings.
func NewTracker(redisOpt asynq.RedisConnOpt) (*Tracker, error) {
	var client redis.UniversalClient
	switch opt := redisOpt.(type) {
	case *asynq.RedisClientOpt:
		client = redis.NewClient(&redis.Options{
			Addr:     opt.Addr,
			Username: opt.Username,
			Password: opt.Password,
			DB:       opt.DB,
		})
	case asynq.RedisClientOpt:
		client = redis.NewClient(&redis.Options{
			Addr:     opt.Addr,
			Username: opt.Username,
			Password: opt.Password,
			DB:       opt.DB,
		})
	case *asynq.RedisClusterClientOpt:
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    opt.Addrs,
			Username: opt.Username,
			Password: opt.Password,
		})
	default:
		return nil, fmt.Errorf("unsupported redis connection type %T", redisOpt)
	}
	return &Tracker{redis: client}, nil
}

func deploymentKey(id string) string {
	return "lakeshift:deployment:" + id
}

func statusKey(id string) string {
	return "lakeshift:deployment:" + id + ":status"
}

// Register stores a new deployment record
func (t *Tracker) Register(deployment *interfaces.Deployment) error {
	if deployment == nil {
		return fmt.Errorf("deployment is nil")
	}
	if deployment.ID == "" {
		return fmt.Errorf("deployment ID is empty")
	}

	data, err := json.Marshal(deployment)
	if err != nil {
		return fmt.Errorf("failed to marshal deployment: %w", err)
	}

	ctx := context.Background()
	if err := t.redis.Set(ctx, deploymentKey(deployment.ID), data, trackerTTL).Err(); err != nil {
		return fmt.Errorf("failed to store deployment: %w", err)
	}
	if err := t.redis.Set(ctx, statusKey(deployment.ID), string(deployment.Status), trackerTTL).Err(); err != nil {
		return fmt.Errorf("failed to store status: %w", err)
	}
	return nil
}

// GetByID returns a deployment by its ID
func (t *Tracker) GetByID(deploymentID string) (*interfaces.Deployment, error) {
	if deploymentID == "" {
		return nil, fmt.Errorf("deployment ID is empty")
	}

	ctx := context.Background()
	data, err := t.redis.Get(ctx, deploymentKey(deploymentID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("deployment %s not found", deploymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}

	var deployment interfaces.Deployment
	if err := json.Unmarshal([]byte(data), &deployment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deployment: %w", err)
	}
	return &deployment, nil
}

// GetStatus returns the status of a deployment from the fast-path status key
func (t *Tracker) GetStatus(deploymentID string) (*interfaces.DeploymentStatus, error) {
	if deploymentID == "" {
		return nil, fmt.Errorf("deployment ID is empty")
	}

	ctx := context.Background()
	statusStr, err := t.redis.Get(ctx, statusKey(deploymentID)).Result()
	if err == nil {
		status := interfaces.DeploymentStatus(statusStr)
		return &status, nil
	}

	deployment, err := t.GetByID(deploymentID)
	if err != nil {
		return nil, err
	}
	status := deployment.Status
	return &status, nil
}

// SetStatus updates the status of a deployment
func (t *Tracker) SetStatus(deploymentID string, status interfaces.DeploymentStatus) error {
	if deploymentID == "" {
		return fmt.Errorf("deployment ID is empty")
	}

	deployment, err := t.GetByID(deploymentID)
	if err != nil {
		return err
	}
	if deployment.Status.IsTerminal() {
		return fmt.Errorf("deployment %s is already %s", deploymentID, deployment.Status)
	}

	deployment.Status = status
	now := time.Now().UTC()
	switch status {
	case interfaces.DeploymentStatusProcessing:
		if deployment.StartedAt == nil {
			deployment.StartedAt = &now
		}
	case interfaces.DeploymentStatusCompleted, interfaces.DeploymentStatusFailed, interfaces.DeploymentStatusCanceled:
		if deployment.CompletedAt == nil {
			deployment.CompletedAt = &now
		}
	case interfaces.DeploymentStatusQueued:
	}

	return t.write(deployment)
}

// SetResult replaces the tracked record with the terminal deployment
func (t *Tracker) SetResult(deploymentID string, result *interfaces.Deployment) error {
	if deploymentID == "" {
		return fmt.Errorf("deployment ID is empty")
	}
	if result == nil {
		return fmt.Errorf("result is nil")
	}

	if current, err := t.GetStatus(deploymentID); err == nil && *current == interfaces.DeploymentStatusCanceled {
		return fmt.Errorf("deployment %s is canceled", deploymentID)
	}
	return t.write(result)
}

func (t *Tracker) write(deployment *interfaces.Deployment) error {
	data, err := json.Marshal(deployment)
	if err != nil {
		return fmt.Errorf("failed to marshal deployment: %w", err)
	}

	ctx := context.Background()
	if err := t.redis.Set(ctx, deploymentKey(deployment.ID), data, trackerTTL).Err(); err != nil {
		return fmt.Errorf("failed to store deployment: %w", err)
	}
	if err := t.redis.Set(ctx, statusKey(deployment.ID), string(deployment.Status), trackerTTL).Err(); err != nil {
		return fmt.Errorf("failed to store status: %w", err)
	}
	return nil
}

// List scans deployment keys and returns records matching the filter. SCAN
// keeps this safe on shared Redis instances; the result set is bounded by the
// tracker TTL.
func (t *Tracker) List(filter interfaces.DeploymentFilter) ([]*interfaces.Deployment, error) {
	ctx := context.Background()
	var results []*interfaces.Deployment

	iter := t.redis.Scan(ctx, 0, "lakeshift:deployment:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if len(key) > 7 && key[len(key)-7:] == ":status" {
			continue
		}

		data, err := t.redis.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		var deployment interfaces.Deployment
		if err := json.Unmarshal([]byte(data), &deployment); err != nil {
			continue
		}
		if matchesFilter(&deployment, filter) {
			results = append(results, &deployment)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan deployments: %w", err)
	}
	return results, nil
}

// Remove deletes a deployment record
func (t *Tracker) Remove(deploymentID string) error {
	if deploymentID == "" {
		return fmt.Errorf("deployment ID is empty")
	}

	ctx := context.Background()
	deleted, err := t.redis.Del(ctx, deploymentKey(deploymentID), statusKey(deploymentID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete deployment: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("deployment %s not found", deploymentID)
	}
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
