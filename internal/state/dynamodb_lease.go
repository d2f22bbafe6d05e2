package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/lakeshift/lakeshift/internal/logging"
)

// DynamoDBLeaseConfig configures the distributed environment lease
type DynamoDBLeaseConfig struct {
	TableName string        `json:"table_name"`
	Region    string        `json:"region"`
	Endpoint  string        `json:"endpoint,omitempty"`
	TTL       time.Duration `json:"ttl"`
}

// DynamoDBLease implements the environment lease across processes using a
// conditional put on an environment-keyed item. The TTL attribute lets
// DynamoDB reap leases orphaned by a crashed worker.
type DynamoDBLease struct {
	client  *dynamodb.Client
	cfg     DynamoDBLeaseConfig
	ownerID string
	logger  *logging.Logger
}

// NewDynamoDBLease creates the distributed lease and ensures its table exists
func NewDynamoDBLease(ctx context.Context, cfg DynamoDBLeaseConfig) (*DynamoDBLease, error) {
	if cfg.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = 15 * time.Minute
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	lease := &DynamoDBLease{
		client:  newDynamoDBClient(awsCfg, cfg.Endpoint),
		cfg:     cfg,
		ownerID: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		logger:  logging.NewLogger("env-lease"),
	}
	if err := lease.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure lease table exists: %w", err)
	}
	return lease, nil
}

func (l *DynamoDBLease) ensureTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := l.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(l.cfg.TableName),
	})
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table: %w", err)
	}

	_, err = l.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(l.cfg.TableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("Environment"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("Environment"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create lease table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(l.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(l.cfg.TableName),
	}, 5*time.Minute); err != nil {
		return fmt.Errorf("timeout waiting for lease table to become active: %w", err)
	}

	_, err = l.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(l.cfg.TableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String("TTL"),
			Enabled:       aws.Bool(true),
		},
	})
	_ = err // TTL may already be enabled, or the endpoint is LocalStack

	return nil
}

// Acquire takes the environment lease with a conditional put. It fails fast
// when a live lease exists; expired items lose the condition and are
// overwritten.
func (l *DynamoDBLease) Acquire(ctx context.Context, environment, deploymentID string) (func(), error) {
	now := time.Now()
	expiry := now.Add(l.cfg.TTL).Unix()

	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.cfg.TableName),
		Item: map[string]types.AttributeValue{
			"Environment":  &types.AttributeValueMemberS{Value: environment},
			"DeploymentID": &types.AttributeValueMemberS{Value: deploymentID},
			"Owner":        &types.AttributeValueMemberS{Value: l.ownerID},
			"AcquiredAt":   &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
			"TTL":          &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiry)},
		},
		ConditionExpression: aws.String("attribute_not_exists(Environment) OR #ttl < :now"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "TTL",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil, fmt.Errorf("lease for environment %s is held by another deployment", environment)
		}
		return nil, fmt.Errorf("failed to acquire lease for environment %s: %w", environment, err)
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := l.client.DeleteItem(releaseCtx, &dynamodb.DeleteItemInput{
			TableName: aws.String(l.cfg.TableName),
			Key: map[string]types.AttributeValue{
				"Environment": &types.AttributeValueMemberS{Value: environment},
			},
			ConditionExpression: aws.String("DeploymentID = :dep"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":dep": &types.AttributeValueMemberS{Value: deploymentID},
			},
		})
		if err != nil {
			l.logger.Warnf("failed to release lease for environment %s: %v", environment, err)
		}
	}
	return release, nil
}
