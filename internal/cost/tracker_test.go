package cost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/mocks"
)

func TestIsVirtualEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		environment string
		virtual     bool
	}{
		{"dev", true},
		{"DEV", true},
		{"feature-login", true},
		{"feature/payments", true},
		{"FEATURE-123", true},
		{"prod", false},
		{"staging", false},
		{"development", false},
		{"my-feature", false},
		{"", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.environment, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.virtual, IsVirtualEnvironment(tt.environment))
		})
	}
}

func TestTrackExecution_ClassifiesVirtualAndPhysical(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockLedgerStore()
	tracker := NewTracker(store, 2.0)
	ctx := context.Background()

	virtual, err := tracker.TrackExecution(ctx, "dev", interfaces.ExecutionUsage{ComputeHours: 10})
	require.NoError(t, err)
	assert.True(t, virtual.IsVirtual)
	assert.Equal(t, 10.0, virtual.VirtualComputeHours)
	assert.Equal(t, 0.0, virtual.PhysicalComputeHours)
	assert.Equal(t, 20.0, virtual.SavedCost)
	assert.Equal(t, 0.0, virtual.Cost)

	physical, err := tracker.TrackExecution(ctx, "prod", interfaces.ExecutionUsage{ComputeHours: 5, DeploymentID: "deploy-x", Engine: "sqlmesh"})
	require.NoError(t, err)
	assert.False(t, physical.IsVirtual)
	assert.Equal(t, 5.0, physical.PhysicalComputeHours)
	assert.Equal(t, 0.0, physical.VirtualComputeHours)
	assert.Equal(t, 10.0, physical.Cost)
	assert.Equal(t, 0.0, physical.SavedCost)
	assert.Equal(t, "deploy-x", physical.DeploymentID)
	assert.Equal(t, "sqlmesh", physical.Engine)

	assert.Len(t, store.Records(), 2)
}

func TestTrackExecution_StorageErrorPropagates(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockLedgerStore()
	store.SetAppendError(errors.New("disk full"))
	tracker := NewTracker(store, 2.0)

	_, err := tracker.TrackExecution(context.Background(), "dev", interfaces.ExecutionUsage{ComputeHours: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestCalculateSavings(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	store := mocks.NewMockLedgerStore()
	tracker := NewTracker(store, 2.0, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	// 10h virtual + 15h virtual = $50 saved; 5h physical = $10 spent.
	// Savings percentage: 50/(10+50)*100 = 83.3.
	_, err := tracker.TrackExecution(ctx, "dev", interfaces.ExecutionUsage{ComputeHours: 10})
	require.NoError(t, err)
	_, err = tracker.TrackExecution(ctx, "prod", interfaces.ExecutionUsage{ComputeHours: 5})
	require.NoError(t, err)
	_, err = tracker.TrackExecution(ctx, "feature-search", interfaces.ExecutionUsage{ComputeHours: 15})
	require.NoError(t, err)

	// An execution from last quarter must fall outside the month window.
	store.Seed(interfaces.ExecutionRecord{
		Timestamp:            now.Add(-45 * 24 * time.Hour),
		Environment:          "prod",
		PhysicalComputeHours: 100,
		Cost:                 200,
	})

	metrics, err := tracker.CalculateSavings(ctx, interfaces.PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, interfaces.PeriodMonth, metrics.Period)
	assert.Equal(t, 3, metrics.ExecutionCount)
	assert.Equal(t, 5.0, metrics.PhysicalComputeHours)
	assert.Equal(t, 25.0, metrics.VirtualComputeHours)
	assert.Equal(t, 10.0, metrics.Cost)
	assert.Equal(t, 50.0, metrics.SavedCost)
	assert.Equal(t, 60.0, metrics.PotentialCost)
	assert.Equal(t, 83.3, metrics.SavingsPercentage)

	// The quarter window picks up the older record as well.
	quarterly, err := tracker.CalculateSavings(ctx, interfaces.PeriodQuarter)
	require.NoError(t, err)
	assert.Equal(t, 4, quarterly.ExecutionCount)
	assert.Equal(t, 105.0, quarterly.PhysicalComputeHours)

	// Aggregation is read-only: repeating it yields identical results.
	again, err := tracker.CalculateSavings(ctx, interfaces.PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, metrics, again)
}

func TestCalculateSavings_EmptyLedger(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(mocks.NewMockLedgerStore(), 2.0)
	metrics, err := tracker.CalculateSavings(context.Background(), interfaces.PeriodMonth)
	require.NoError(t, err)

	assert.Equal(t, 0, metrics.ExecutionCount)
	assert.Equal(t, 0.0, metrics.SavingsPercentage)
	assert.Equal(t, 0.0, metrics.PotentialCost)
}

func TestCalculateSavings_UnknownPeriod(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(mocks.NewMockLedgerStore(), 2.0)
	_, err := tracker.CalculateSavings(context.Background(), interfaces.SavingsPeriod("year"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown savings period")
}

func TestGenerateRecommendations(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(mocks.NewMockLedgerStore(), 2.0)

	t.Run("low savings suggests virtual environments", func(t *testing.T) {
		t.Parallel()
		recs := tracker.GenerateRecommendations(&interfaces.PeriodMetrics{SavingsPercentage: 10})
		require.Len(t, recs, 1)
		assert.Contains(t, recs[0], "virtual environments")
	})

	t.Run("heavy physical usage is flagged", func(t *testing.T) {
		t.Parallel()
		recs := tracker.GenerateRecommendations(&interfaces.PeriodMetrics{
			SavingsPercentage:    40,
			PhysicalComputeHours: 150,
		})
		require.Len(t, recs, 1)
		assert.Contains(t, recs[0], "150.0 hours")
	})

	t.Run("high savings is acknowledged", func(t *testing.T) {
		t.Parallel()
		recs := tracker.GenerateRecommendations(&interfaces.PeriodMetrics{SavingsPercentage: 83.3})
		require.Len(t, recs, 1)
		assert.Contains(t, recs[0], "83.3%")
	})

	t.Run("middling metrics yield nothing", func(t *testing.T) {
		t.Parallel()
		recs := tracker.GenerateRecommendations(&interfaces.PeriodMetrics{
			SavingsPercentage:    40,
			PhysicalComputeHours: 50,
		})
		assert.Empty(t, recs)
	})
}

func TestCalculateROI(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	newTrackerWithQuarterlySavings := func(saved float64) *Tracker {
		store := mocks.NewMockLedgerStore()
		if saved > 0 {
			store.Seed(interfaces.ExecutionRecord{
				Timestamp:           now.Add(-24 * time.Hour),
				Environment:         "dev",
				IsVirtual:           true,
				VirtualComputeHours: saved / 2.0,
				SavedCost:           saved,
			})
		}
		return NewTracker(store, 2.0, WithClock(func() time.Time { return now }))
	}

	t.Run("pays back within a year", func(t *testing.T) {
		t.Parallel()
		tracker := newTrackerWithQuarterlySavings(3000)

		report, err := tracker.CalculateROI(context.Background(), 10000)
		require.NoError(t, err)
		assert.Equal(t, 3000.0, report.QuarterlySavings)
		assert.Equal(t, 12000.0, report.YearlySavings)
		assert.Equal(t, "20.0", report.ROI)
		assert.Equal(t, "10.0", report.PaybackPeriodMonths)
		assert.True(t, report.BreakEven)
	})

	t.Run("does not pay back within a year", func(t *testing.T) {
		t.Parallel()
		tracker := newTrackerWithQuarterlySavings(3000)

		report, err := tracker.CalculateROI(context.Background(), 50000)
		require.NoError(t, err)
		assert.Equal(t, "-76.0", report.ROI)
		assert.Equal(t, "50.0", report.PaybackPeriodMonths)
		assert.False(t, report.BreakEven)
	})

	t.Run("zero savings never breaks even", func(t *testing.T) {
		t.Parallel()
		tracker := newTrackerWithQuarterlySavings(0)

		report, err := tracker.CalculateROI(context.Background(), 10000)
		require.NoError(t, err)
		assert.Equal(t, "-100.0", report.ROI)
		assert.Equal(t, "0.0", report.PaybackPeriodMonths)
		assert.False(t, report.BreakEven)
	})

	t.Run("non-positive implementation cost is rejected", func(t *testing.T) {
		t.Parallel()
		tracker := newTrackerWithQuarterlySavings(3000)

		_, err := tracker.CalculateROI(context.Background(), 0)
		require.Error(t, err)
		_, err = tracker.CalculateROI(context.Background(), -5)
		require.Error(t, err)
	})
}

func TestGetEnvironmentBreakdown(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockLedgerStore()
	tracker := NewTracker(store, 2.0)
	ctx := context.Background()

	_, err := tracker.TrackExecution(ctx, "dev", interfaces.ExecutionUsage{ComputeHours: 3})
	require.NoError(t, err)
	_, err = tracker.TrackExecution(ctx, "dev", interfaces.ExecutionUsage{ComputeHours: 2})
	require.NoError(t, err)
	_, err = tracker.TrackExecution(ctx, "prod", interfaces.ExecutionUsage{ComputeHours: 4})
	require.NoError(t, err)

	breakdown, err := tracker.GetEnvironmentBreakdown(ctx)
	require.NoError(t, err)
	require.Len(t, breakdown, 2)

	assert.Equal(t, 2, breakdown["dev"].Count)
	assert.Equal(t, 5.0, breakdown["dev"].ComputeHours)
	assert.Equal(t, 10.0, breakdown["dev"].SavedCost)
	assert.Equal(t, 0.0, breakdown["dev"].Cost)

	assert.Equal(t, 1, breakdown["prod"].Count)
	assert.Equal(t, 8.0, breakdown["prod"].Cost)
}

func TestNewTracker_RateFallback(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(mocks.NewMockLedgerStore(), 0)
	record, err := tracker.TrackExecution(context.Background(), "prod", interfaces.ExecutionUsage{ComputeHours: 1})
	require.NoError(t, err)
	assert.Equal(t, DefaultComputeRate, record.Cost)
}
