// Package cost implements compute-cost accounting: classification of
// executions as virtual or physical, the savings and ROI arithmetic derived
// from the ledger, and rule-based recommendations.
package cost

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/logging"
)

// DefaultComputeRate is the hourly compute rate used when none is configured
const DefaultComputeRate = 2.0

// Tracker is the sole writer of the cost ledger and the sole reader for
// derived metrics.
type Tracker struct {
	store  interfaces.LedgerStore
	rate   float64
	now    func() time.Time
	logger *logging.Logger
}

// TrackerOption customizes a Tracker
type TrackerOption func(*Tracker)

// WithClock overrides the wall clock, for deterministic period boundaries in
// tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a cost tracker over a ledger store. A non-positive rate
// falls back to the default.
func NewTracker(store interfaces.LedgerStore, ratePerHour float64, opts ...TrackerOption) *Tracker {
	if ratePerHour <= 0 {
		ratePerHour = DefaultComputeRate
	}
	t := &Tracker{
		store:  store,
		rate:   ratePerHour,
		now:    time.Now,
		logger: logging.NewLogger("cost-tracker"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsVirtualEnvironment reports whether an environment's compute is unbilled.
// dev and feature-branch environments are virtual; everything else, staging
// and prod included, is physical.
func IsVirtualEnvironment(name string) bool {
	lower := strings.ToLower(name)
	return lower == "dev" || strings.HasPrefix(lower, "feature")
}

// TrackExecution classifies the environment, writes one execution record, and
// returns it. Storage errors propagate; accounting data is never silently
// dropped.
func (t *Tracker) TrackExecution(ctx context.Context, environment string, usage interfaces.ExecutionUsage) (*interfaces.ExecutionRecord, error) {
	record := interfaces.ExecutionRecord{
		Timestamp:    t.now().UTC(),
		Environment:  environment,
		DeploymentID: usage.DeploymentID,
		Engine:       usage.Engine,
		IsVirtual:    IsVirtualEnvironment(environment),
	}
	if record.IsVirtual {
		record.VirtualComputeHours = usage.ComputeHours
		record.SavedCost = usage.ComputeHours * t.rate
	} else {
		record.PhysicalComputeHours = usage.ComputeHours
		record.Cost = usage.ComputeHours * t.rate
	}

	if err := t.store.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to append execution record: %w", err)
	}

	t.logger.Debugf("tracked execution: environment=%s virtual=%t hours=%.2f",
		environment, record.IsVirtual, usage.ComputeHours)
	return &record, nil
}

// periodWindow returns the start of the aggregation window for a period
func (t *Tracker) periodWindow(period interfaces.SavingsPeriod) (time.Time, error) {
	switch period {
	case interfaces.PeriodMonth:
		return t.now().Add(-30 * 24 * time.Hour), nil
	case interfaces.PeriodQuarter:
		return t.now().Add(-90 * 24 * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unknown savings period %q", period)
	}
}

// CalculateSavings aggregates ledger records whose timestamp falls within the
// period window. The result is deterministic for a fixed ledger and clock.
func (t *Tracker) CalculateSavings(ctx context.Context, period interfaces.SavingsPeriod) (*interfaces.PeriodMetrics, error) {
	since, err := t.periodWindow(period)
	if err != nil {
		return nil, err
	}

	ledger, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost ledger: %w", err)
	}

	metrics := &interfaces.PeriodMetrics{Period: period}
	for _, record := range ledger.Executions {
		if record.Timestamp.Before(since) {
			continue
		}
		metrics.ExecutionCount++
		metrics.PhysicalComputeHours += record.PhysicalComputeHours
		metrics.VirtualComputeHours += record.VirtualComputeHours
		metrics.Cost += record.Cost
		metrics.SavedCost += record.SavedCost
	}

	metrics.PotentialCost = (metrics.PhysicalComputeHours + metrics.VirtualComputeHours) * t.rate
	if total := metrics.Cost + metrics.SavedCost; total > 0 {
		metrics.SavingsPercentage = roundOne(metrics.SavedCost / total * 100)
	}
	return metrics, nil
}

// GenerateRecommendations produces advisory strings from period metrics
func (t *Tracker) GenerateRecommendations(metrics *interfaces.PeriodMetrics) []string {
	var recommendations []string

	if metrics.SavingsPercentage < 30 {
		recommendations = append(recommendations,
			"Savings are below 30%: shift more development and preview workloads to virtual environments (dev, feature branches) to avoid billed compute.")
	}
	if metrics.PhysicalComputeHours > 100 {
		recommendations = append(recommendations,
			fmt.Sprintf("Physical compute usage is high (%.1f hours this period): review whether staging runs can be replaced by virtual validation.", metrics.PhysicalComputeHours))
	}
	if metrics.SavingsPercentage >= 50 {
		recommendations = append(recommendations,
			fmt.Sprintf("Virtual environments are saving %.1f%% of potential compute cost. Keep routing validation work through them.", metrics.SavingsPercentage))
	}
	return recommendations
}

// CalculateROI derives return on investment from quarterly savings. With zero
// savings the investment never pays back: ROI is -100.0 and breakEven false.
func (t *Tracker) CalculateROI(ctx context.Context, implementationCost float64) (*interfaces.ROIReport, error) {
	if implementationCost <= 0 {
		return nil, fmt.Errorf("implementation cost must be positive, got %.2f", implementationCost)
	}

	quarterly, err := t.CalculateSavings(ctx, interfaces.PeriodQuarter)
	if err != nil {
		return nil, err
	}

	report := &interfaces.ROIReport{
		ImplementationCost: implementationCost,
		QuarterlySavings:   quarterly.SavedCost,
		YearlySavings:      quarterly.SavedCost * 4,
	}
	report.ROI = formatOne((report.YearlySavings - implementationCost) / implementationCost * 100)

	if report.YearlySavings > 0 {
		payback := implementationCost / (report.YearlySavings / 12)
		report.PaybackPeriodMonths = formatOne(payback)
		report.BreakEven = payback <= 12
	} else {
		report.PaybackPeriodMonths = formatOne(0)
		report.BreakEven = false
	}
	return report, nil
}

// GetEnvironmentBreakdown groups the full ledger by environment
func (t *Tracker) GetEnvironmentBreakdown(ctx context.Context) (map[string]interfaces.EnvironmentUsage, error) {
	ledger, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost ledger: %w", err)
	}

	breakdown := make(map[string]interfaces.EnvironmentUsage)
	for _, record := range ledger.Executions {
		usage := breakdown[record.Environment]
		usage.Count++
		usage.ComputeHours += record.PhysicalComputeHours + record.VirtualComputeHours
		usage.Cost += record.Cost
		usage.SavedCost += record.SavedCost
		breakdown[record.Environment] = usage
	}
	return breakdown, nil
}

func roundOne(v float64) float64 {
	return math.Round(v*10) / 10
}

func formatOne(v float64) string {
	return strconv.FormatFloat(roundOne(v), 'f', 1, 64)
}
