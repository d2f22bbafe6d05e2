package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/logging"
)

// CostHandler serves the cost accounting and ROI endpoints
type CostHandler struct {
	tracker interfaces.CostTracker
	logger  *logging.Logger
}

// NewCostHandler creates a cost handler
func NewCostHandler(tracker interfaces.CostTracker) (*CostHandler, error) {
	if tracker == nil {
		return nil, errors.New("cost tracker is required")
	}
	return &CostHandler{
		tracker: tracker,
		logger:  logging.NewLogger("cost-handler"),
	}, nil
}

// GetSavings returns period-filtered savings metrics with recommendations
// @Summary Compute savings
// @Tags cost
// @Produce json
// @Param period query string false "Aggregation period: month or quarter" default(month)
// @Success 200 {object} map[string]interface{} "Savings metrics"
// @Failure 400 {object} map[string]string "Unknown period"
// @Router /cost/savings [get]
func (h *CostHandler) GetSavings(w http.ResponseWriter, r *http.Request) {
	period := interfaces.SavingsPeriod(r.URL.Query().Get("period"))
	if period == "" {
		period = interfaces.PeriodMonth
	}
	if period != interfaces.PeriodMonth && period != interfaces.PeriodQuarter {
		writeError(w, http.StatusBadRequest, "invalid_period", "period must be month or quarter")
		return
	}

	metrics, err := h.tracker.CalculateSavings(r.Context(), period)
	if err != nil {
		h.logger.Errorf("failed to calculate savings: %v", err)
		writeError(w, http.StatusInternalServerError, "ledger_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":         metrics,
		"recommendations": h.tracker.GenerateRecommendations(metrics),
	})
}

// GetROI returns the return-on-investment report
// @Summary Compute ROI
// @Tags cost
// @Produce json
// @Param implementation_cost query number true "Implementation cost in dollars"
// @Success 200 {object} interfaces.ROIReport
// @Failure 400 {object} map[string]string "Invalid cost"
// @Router /cost/roi [get]
func (h *CostHandler) GetROI(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("implementation_cost")
	implementationCost, err := strconv.ParseFloat(raw, 64)
	if err != nil || implementationCost <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_cost", "implementation_cost must be a positive number")
		return
	}

	report, err := h.tracker.CalculateROI(r.Context(), implementationCost)
	if err != nil {
		h.logger.Errorf("failed to calculate ROI: %v", err)
		writeError(w, http.StatusInternalServerError, "ledger_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetBreakdown returns the per-environment usage rollup
// @Summary Environment cost breakdown
// @Tags cost
// @Produce json
// @Success 200 {object} map[string]interfaces.EnvironmentUsage
// @Router /cost/environments [get]
func (h *CostHandler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.tracker.GetEnvironmentBreakdown(r.Context())
	if err != nil {
		h.logger.Errorf("failed to compute environment breakdown: %v", err)
		writeError(w, http.StatusInternalServerError, "ledger_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}
