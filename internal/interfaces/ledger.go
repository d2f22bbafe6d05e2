package interfaces

import (
	"context"
	"time"
)

// ExecutionRecord is one accounted unit of compute in the cost ledger.
// Exactly one of PhysicalComputeHours/VirtualComputeHours is non-zero per
// record.
type ExecutionRecord struct {
	Timestamp            time.Time `json:"timestamp"`
	Environment          string    `json:"environment"`
	DeploymentID         string    `json:"deploymentId,omitempty"`
	Engine               string    `json:"engine,omitempty"`
	IsVirtual            bool      `json:"isVirtual"`
	PhysicalComputeHours float64   `json:"physicalComputeHours"`
	VirtualComputeHours  float64   `json:"virtualComputeHours"`
	Cost                 float64   `json:"cost"`
	SavedCost            float64   `json:"savedCost"`
}

// LedgerAggregates holds running totals over the whole ledger
type LedgerAggregates struct {
	TotalExecutions      int       `json:"totalExecutions"`
	PhysicalComputeHours float64   `json:"physicalComputeHours"`
	VirtualComputeHours  float64   `json:"virtualComputeHours"`
	TotalCost            float64   `json:"totalCost"`
	TotalSavedCost       float64   `json:"totalSavedCost"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Ledger is the persisted cost ledger document
type Ledger struct {
	Executions []ExecutionRecord `json:"executions"`
	Aggregates LedgerAggregates  `json:"aggregates"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// LedgerStore persists the cost ledger. The ledger is append-only: writers
// append records, readers load the full document for period-filtered
// aggregation. I/O errors propagate to the caller uncaught.
type LedgerStore interface {
	Load(ctx context.Context) (*Ledger, error)
	Append(ctx context.Context, record ExecutionRecord) error
}

// SavingsPeriod selects the aggregation window for savings calculations
type SavingsPeriod string

// Supported savings periods
const (
	PeriodMonth   SavingsPeriod = "month"   // last 30 days
	PeriodQuarter SavingsPeriod = "quarter" // last 90 days
)

// PeriodMetrics is a period-filtered aggregate over the ledger
type PeriodMetrics struct {
	Period               SavingsPeriod `json:"period"`
	ExecutionCount       int           `json:"executionCount"`
	PhysicalComputeHours float64       `json:"physicalComputeHours"`
	VirtualComputeHours  float64       `json:"virtualComputeHours"`
	Cost                 float64       `json:"cost"`
	SavedCost            float64       `json:"savedCost"`
	PotentialCost        float64       `json:"potentialCost"`
	// SavingsPercentage is savedCost/(cost+savedCost)*100 rounded to one
	// decimal, 0 when the denominator is 0.
	SavingsPercentage float64 `json:"savingsPercentage"`
}

// ROIReport summarizes return on investment derived from quarterly savings
type ROIReport struct {
	ImplementationCost  float64 `json:"implementationCost"`
	QuarterlySavings    float64 `json:"quarterlySavings"`
	YearlySavings       float64 `json:"yearlySavings"`
	ROI                 string  `json:"roi"`
	PaybackPeriodMonths string  `json:"paybackPeriodMonths"`
	BreakEven           bool    `json:"breakEven"`
}

// EnvironmentUsage is the per-environment rollup of ledger records
type EnvironmentUsage struct {
	Count        int     `json:"count"`
	ComputeHours float64 `json:"computeHours"`
	Cost         float64 `json:"cost"`
	SavedCost    float64 `json:"savedCost"`
}

// ExecutionUsage describes one execution handed to the cost tracker for
// accounting.
type ExecutionUsage struct {
	ComputeHours float64
	DeploymentID string
	Engine       string
}

// CostTracker classifies executions as virtual or physical, accounts for them
// in the ledger, and derives savings/ROI metrics.
type CostTracker interface {
	TrackExecution(ctx context.Context, environment string, usage ExecutionUsage) (*ExecutionRecord, error)
	CalculateSavings(ctx context.Context, period SavingsPeriod) (*PeriodMetrics, error)
	GenerateRecommendations(metrics *PeriodMetrics) []string
	CalculateROI(ctx context.Context, implementationCost float64) (*ROIReport, error)
	GetEnvironmentBreakdown(ctx context.Context) (map[string]EnvironmentUsage, error)
}
