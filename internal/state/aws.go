// Package state provides the persistence backends for the cost ledger,
// deployment history, and environment leases. Local file stores cover
// single-node setups; S3 and DynamoDB variants back distributed deployments.
package state

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// isLocalEndpoint reports whether the endpoint points at LocalStack or a test
// environment, where static dummy credentials are expected.
func isLocalEndpoint(endpoint string) bool {
	if endpoint != "" {
		lower := strings.ToLower(endpoint)
		if strings.Contains(lower, "localstack") || strings.Contains(lower, "localhost") || strings.Contains(lower, "127.0.0.1") {
			return true
		}
	}
	if os.Getenv("LAKESHIFT_USE_LOCALSTACK") == "true" || os.Getenv("LOCALSTACK_ENDPOINT") != "" {
		return true
	}
	return strings.HasSuffix(os.Args[0], ".test")
}

// loadAWSConfig loads AWS configuration for a region and optional custom
// endpoint. LocalStack endpoints get static test credentials.
func loadAWSConfig(ctx context.Context, region, endpoint string) (aws.Config, error) {
	options := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if isLocalEndpoint(endpoint) {
		options = append(options,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
		)
	}

	cfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// newS3Client creates an S3 client, applying the custom endpoint when set.
// Path-style addressing is required for LocalStack.
func newS3Client(awsCfg aws.Config, endpoint string) *s3.Client {
	if endpoint != "" {
		return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg)
}

// newDynamoDBClient creates a DynamoDB client with an optional custom endpoint
func newDynamoDBClient(awsCfg aws.Config, endpoint string) *dynamodb.Client {
	if endpoint != "" {
		return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return dynamodb.NewFromConfig(awsCfg)
}
