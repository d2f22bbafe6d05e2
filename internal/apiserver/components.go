package apiserver

import (
	"context"
	"fmt"
	"os"

	"github.com/lakeshift/lakeshift/internal/config"
	"github.com/lakeshift/lakeshift/internal/cost"
	"github.com/lakeshift/lakeshift/internal/deployment"
	"github.com/lakeshift/lakeshift/internal/engine"
	"github.com/lakeshift/lakeshift/internal/executor"
	"github.com/lakeshift/lakeshift/internal/infra/distributed"
	"github.com/lakeshift/lakeshift/internal/infra/embedded"
	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/orchestrator"
	"github.com/lakeshift/lakeshift/internal/state"
)

// BuildComponents assembles the full component graph for the selected queue
// backend. The embedded backend keeps everything in-process with file-backed
// persistence; the distributed backend uses Redis for queue/tracker and can
// use S3 and DynamoDB for persistence and leasing.
func BuildComponents(ctx context.Context, serverCfg *config.ServerConfig, appCfg *config.Config) (Components, error) {
	flags, err := engine.LoadFeatureFlags(appCfg.FlagFilePath)
	if err != nil {
		return Components{}, fmt.Errorf("failed to load feature flags: %w", err)
	}

	factory, err := engine.NewFactory(engine.FactoryConfig{
		Flags:            flags,
		ProjectPath:      appCfg.ProjectPath,
		Timeout:          appCfg.EngineTimeout,
		KillGrace:        appCfg.KillGraceWait,
		AllowInteractive: serverCfg.AllowInteractiveEngine,
	})
	if err != nil {
		return Components{}, fmt.Errorf("failed to create engine factory: %w", err)
	}

	ledgerStore, historyStore, err := buildStores(ctx, appCfg)
	if err != nil {
		return Components{}, err
	}
	costs := cost.NewTracker(ledgerStore, appCfg.ComputeRate)

	lease, err := buildLease(ctx)
	if err != nil {
		return Components{}, err
	}

	orch := orchestrator.New(orchestrator.Config{
		Lease:   lease,
		Costs:   costs,
		History: historyStore,
	})
	exec, err := executor.New(orch, factory)
	if err != nil {
		return Components{}, err
	}

	queue, tracker, workerPool, err := buildQueueBackend(serverCfg, exec)
	if err != nil {
		return Components{}, err
	}

	service, err := deployment.NewService(deployment.ServiceConfig{
		Queue:   queue,
		Tracker: tracker,
		History: historyStore,
	})
	if err != nil {
		return Components{}, fmt.Errorf("failed to create deployment service: %w", err)
	}

	return Components{
		Queue:      queue,
		Tracker:    tracker,
		WorkerPool: workerPool,
		Service:    service,
		Costs:      costs,
		Factory:    factory,
	}, nil
}

// buildStores selects S3-backed stores when a bucket is configured, local
// files otherwise.
func buildStores(ctx context.Context, appCfg *config.Config) (interfaces.LedgerStore, interfaces.HistoryStore, error) {
	if bucket := os.Getenv("LAKESHIFT_S3_BUCKET"); bucket != "" {
		store, err := state.NewS3Store(ctx, state.S3StoreConfig{
			Bucket:   bucket,
			Region:   os.Getenv("LAKESHIFT_AWS_REGION"),
			Prefix:   os.Getenv("LAKESHIFT_S3_PREFIX"),
			Endpoint: os.Getenv("LAKESHIFT_S3_ENDPOINT"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create S3 store: %w", err)
		}
		return state.NewS3LedgerStore(store), state.NewS3HistoryStore(store), nil
	}

	ledger, err := state.NewFileLedgerStore(appCfg.LedgerPath)
	if err != nil {
		return nil, nil, err
	}
	history, err := state.NewFileHistoryStore(appCfg.HistoryPath)
	if err != nil {
		return nil, nil, err
	}
	return ledger, history, nil
}

// buildLease selects the DynamoDB lease when a table is configured, an
// in-process lease otherwise.
func buildLease(ctx context.Context) (interfaces.EnvironmentLease, error) {
	table := os.Getenv("LAKESHIFT_LEASE_TABLE")
	if table == "" {
		return state.NewMemoryLease(), nil
	}

	lease, err := state.NewDynamoDBLease(ctx, state.DynamoDBLeaseConfig{
		TableName: table,
		Region:    os.Getenv("LAKESHIFT_AWS_REGION"),
		Endpoint:  os.Getenv("LAKESHIFT_DYNAMODB_ENDPOINT"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB lease: %w", err)
	}
	return lease, nil
}

// buildQueueBackend wires the queue, tracker, and worker pool for the
// configured backend.
func buildQueueBackend(serverCfg *config.ServerConfig, exec *executor.Executor) (interfaces.DeploymentQueue, interfaces.DeploymentTracker, interfaces.WorkerPool, error) {
	switch serverCfg.QueueBackend {
	case config.QueueBackendDistributed:
		queue, err := distributed.NewQueue(serverCfg.RedisURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create distributed queue: %w", err)
		}
		tracker, err := distributed.NewTracker(queue.RedisOpt())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create distributed tracker: %w", err)
		}
		workerPool, err := distributed.NewWorkerPool(distributed.WorkerPoolConfig{
			RedisURL:    serverCfg.RedisURL,
			Tracker:     tracker,
			Executor:    exec.Execute,
			Concurrency: serverCfg.WorkerPoolSize,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create distributed worker pool: %w", err)
		}
		return queue, tracker, workerPool, nil

	default:
		queue := embedded.NewQueue(serverCfg.QueueCapacity)
		tracker := embedded.NewTracker()
		workerPool, err := embedded.NewWorkerPool(embedded.WorkerPoolConfig{
			Workers:  serverCfg.WorkerPoolSize,
			Queue:    queue,
			Tracker:  tracker,
			Executor: exec.Execute,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create embedded worker pool: %w", err)
		}
		return queue, tracker, workerPool, nil
	}
}
