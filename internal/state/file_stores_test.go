package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

func TestFileLedgerStore(t *testing.T) {
	t.Parallel()

	t.Run("requires a path", func(t *testing.T) {
		t.Parallel()
		_, err := NewFileLedgerStore("")
		require.Error(t, err)
	})

	t.Run("missing file loads as a fresh ledger", func(t *testing.T) {
		t.Parallel()
		store, err := NewFileLedgerStore(filepath.Join(t.TempDir(), "ledger.json"))
		require.NoError(t, err)

		ledger, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, ledger.Executions)
		assert.Zero(t, ledger.Aggregates.TotalExecutions)
	})

	t.Run("append persists records and aggregates", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nested", "ledger.json")
		store, err := NewFileLedgerStore(path)
		require.NoError(t, err)
		ctx := context.Background()

		require.NoError(t, store.Append(ctx, interfaces.ExecutionRecord{
			Timestamp:           time.Now().UTC(),
			Environment:         "dev",
			IsVirtual:           true,
			VirtualComputeHours: 3,
			SavedCost:           6,
		}))
		require.NoError(t, store.Append(ctx, interfaces.ExecutionRecord{
			Timestamp:            time.Now().UTC(),
			Environment:          "prod",
			PhysicalComputeHours: 2,
			Cost:                 4,
		}))

		// A second store over the same file sees the same state.
		reopened, err := NewFileLedgerStore(path)
		require.NoError(t, err)
		ledger, err := reopened.Load(ctx)
		require.NoError(t, err)

		require.Len(t, ledger.Executions, 2)
		assert.Equal(t, "dev", ledger.Executions[0].Environment)
		assert.Equal(t, 2, ledger.Aggregates.TotalExecutions)
		assert.Equal(t, 3.0, ledger.Aggregates.VirtualComputeHours)
		assert.Equal(t, 2.0, ledger.Aggregates.PhysicalComputeHours)
		assert.Equal(t, 4.0, ledger.Aggregates.TotalCost)
		assert.Equal(t, 6.0, ledger.Aggregates.TotalSavedCost)
	})

	t.Run("corrupt file is an error", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "ledger.json")
		require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

		store, err := NewFileLedgerStore(path)
		require.NoError(t, err)
		_, err = store.Load(context.Background())
		require.Error(t, err)
	})
}

func TestFileHistoryStore(t *testing.T) {
	t.Parallel()

	newDeployment := func(id string) *interfaces.Deployment {
		return &interfaces.Deployment{
			ID:          id,
			Environment: "staging",
			Status:      interfaces.DeploymentStatusCompleted,
			CreatedAt:   time.Now().UTC(),
		}
	}

	t.Run("recent returns newest first", func(t *testing.T) {
		t.Parallel()
		store, err := NewFileHistoryStore(filepath.Join(t.TempDir(), "history.json"))
		require.NoError(t, err)
		ctx := context.Background()

		for _, id := range []string{"deploy-a", "deploy-b", "deploy-c"} {
			require.NoError(t, store.Append(ctx, newDeployment(id)))
		}

		recent, err := store.Recent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "deploy-c", recent[0].ID)
		assert.Equal(t, "deploy-b", recent[1].ID)
	})

	t.Run("zero limit uses the default", func(t *testing.T) {
		t.Parallel()
		store, err := NewFileHistoryStore(filepath.Join(t.TempDir(), "history.json"))
		require.NoError(t, err)
		ctx := context.Background()

		for i := 0; i < interfaces.DefaultHistoryLimit+5; i++ {
			require.NoError(t, store.Append(ctx, newDeployment(fmt.Sprintf("deploy-%d", i))))
		}

		recent, err := store.Recent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, recent, interfaces.DefaultHistoryLimit)
	})

	t.Run("empty store yields no records", func(t *testing.T) {
		t.Parallel()
		store, err := NewFileHistoryStore(filepath.Join(t.TempDir(), "history.json"))
		require.NoError(t, err)

		recent, err := store.Recent(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, recent)
	})

	t.Run("records survive reopen with steps intact", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "history.json")
		store, err := NewFileHistoryStore(path)
		require.NoError(t, err)
		ctx := context.Background()

		dep := newDeployment("deploy-full")
		dep.Steps = []interfaces.Step{{
			Name:   interfaces.StepPreValidation,
			Status: interfaces.StepStatusCompleted,
		}}
		dep.DataLossWarnings = []string{"potential data loss: diff contains DELETE"}
		require.NoError(t, store.Append(ctx, dep))

		reopened, err := NewFileHistoryStore(path)
		require.NoError(t, err)
		recent, err := reopened.Recent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, "deploy-full", recent[0].ID)
		require.Len(t, recent[0].Steps, 1)
		assert.Equal(t, interfaces.StepPreValidation, recent[0].Steps[0].Name)
		assert.Len(t, recent[0].DataLossWarnings, 1)
	})
}

func TestMemoryLease(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("acquire then release then reacquire", func(t *testing.T) {
		t.Parallel()
		lease := NewMemoryLease()

		release, err := lease.Acquire(ctx, "prod", "deploy-1")
		require.NoError(t, err)

		_, err = lease.Acquire(ctx, "prod", "deploy-2")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deploy-1")

		release()
		_, err = lease.Acquire(ctx, "prod", "deploy-2")
		require.NoError(t, err)
	})

	t.Run("different environments do not conflict", func(t *testing.T) {
		t.Parallel()
		lease := NewMemoryLease()

		_, err := lease.Acquire(ctx, "prod", "deploy-1")
		require.NoError(t, err)
		_, err = lease.Acquire(ctx, "staging", "deploy-2")
		require.NoError(t, err)
	})

	t.Run("release is idempotent", func(t *testing.T) {
		t.Parallel()
		lease := NewMemoryLease()

		release1, err := lease.Acquire(ctx, "prod", "deploy-1")
		require.NoError(t, err)
		release1()
		release2, err := lease.Acquire(ctx, "prod", "deploy-2")
		require.NoError(t, err)

		// The stale release must not evict the new holder.
		release1()
		_, err = lease.Acquire(ctx, "prod", "deploy-3")
		require.Error(t, err)

		release2()
		_, err = lease.Acquire(ctx, "prod", "deploy-3")
		require.NoError(t, err)
	})
}
