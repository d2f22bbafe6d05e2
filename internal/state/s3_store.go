package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

const s3OpTimeout = 30 * time.Second

// S3StoreConfig configures the S3-backed ledger and history stores.
// Credentials come from the standard AWS chain; Endpoint supports LocalStack.
type S3StoreConfig struct {
	Bucket   string `json:"bucket"`
	Region   string `json:"region"`
	Prefix   string `json:"prefix,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// S3Store holds the shared client for the S3-backed document stores
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates the shared S3 store and ensures the bucket exists
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	store := &S3Store{
		client: newS3Client(awsCfg, cfg.Endpoint),
		bucket: cfg.Bucket,
		prefix: strings.TrimSuffix(cfg.Prefix, "/"),
	}
	if err := store.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *S3Store) ensureBucket(ctx context.Context, region string) error {
	ctx, cancel := context.WithTimeout(ctx, s3OpTimeout)
	defer cancel()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) || strings.Contains(err.Error(), "NotFound") {
		_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(s.bucket),
			CreateBucketConfiguration: &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(region),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 bucket %s: %w", s.bucket, err)
		}
		return nil
	}
	return fmt.Errorf("failed to access S3 bucket %s: %w", s.bucket, err)
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// getDocument fetches and decodes one JSON object; found=false when absent
func (s *S3Store) getDocument(ctx context.Context, key string, out interface{}) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s3OpTimeout)
	defer cancel()

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to parse s3://%s/%s: %w", s.bucket, key, err)
	}
	return true, nil
}

// putDocument encodes and writes one JSON object
func (s *S3Store) putDocument(ctx context.Context, key string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document for %s: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s3OpTimeout)
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// S3LedgerStore persists the cost ledger as one JSON object in S3
type S3LedgerStore struct {
	store *S3Store
}

// NewS3LedgerStore creates the ledger view over a shared S3 store
func NewS3LedgerStore(store *S3Store) *S3LedgerStore {
	return &S3LedgerStore{store: store}
}

const ledgerKey = "cost/ledger.json"

// Load reads the full ledger; an absent object yields a fresh empty ledger
func (s *S3LedgerStore) Load(ctx context.Context) (*interfaces.Ledger, error) {
	var ledger interfaces.Ledger
	found, err := s.store.getDocument(ctx, s.store.key(ledgerKey), &ledger)
	if err != nil {
		return nil, err
	}
	if !found {
		return &interfaces.Ledger{
			Executions: []interfaces.ExecutionRecord{},
			CreatedAt:  time.Now().UTC(),
		}, nil
	}
	return &ledger, nil
}

// Append adds one record and writes the ledger back. Last-writer-wins; cost
// accounting in distributed mode funnels through a single worker process.
func (s *S3LedgerStore) Append(ctx context.Context, record interfaces.ExecutionRecord) error {
	ledger, err := s.Load(ctx)
	if err != nil {
		return err
	}
	ledger.Executions = append(ledger.Executions, record)
	ledger.Aggregates = aggregate(ledger.Executions)
	return s.store.putDocument(ctx, s.store.key(ledgerKey), ledger)
}

// S3HistoryStore persists terminal deployment records in S3
type S3HistoryStore struct {
	store *S3Store
}

// NewS3HistoryStore creates the history view over a shared S3 store
func NewS3HistoryStore(store *S3Store) *S3HistoryStore {
	return &S3HistoryStore{store: store}
}

const historyKey = "deployments/history.json"

// Append persists one terminal deployment record
func (s *S3HistoryStore) Append(ctx context.Context, deployment *interfaces.Deployment) error {
	var records []*interfaces.Deployment
	if _, err := s.store.getDocument(ctx, s.store.key(historyKey), &records); err != nil {
		return err
	}
	records = append(records, deployment)
	return s.store.putDocument(ctx, s.store.key(historyKey), records)
}

// Recent returns up to limit records, most recent first
func (s *S3HistoryStore) Recent(ctx context.Context, limit int) ([]*interfaces.Deployment, error) {
	var records []*interfaces.Deployment
	if _, err := s.store.getDocument(ctx, s.store.key(historyKey), &records); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = interfaces.DefaultHistoryLimit
	}

	recent := make([]*interfaces.Deployment, 0, limit)
	for i := len(records) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, records[i])
	}
	return recent, nil
}
