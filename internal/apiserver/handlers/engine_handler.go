package handlers

import (
	"errors"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/lakeshift/lakeshift/internal/engine"
	"github.com/lakeshift/lakeshift/internal/logging"
)

// EngineHandler serves the engine discovery endpoints
type EngineHandler struct {
	factory *engine.Factory
	logger  *logging.Logger
}

// NewEngineHandler creates an engine handler
func NewEngineHandler(factory *engine.Factory) (*EngineHandler, error) {
	if factory == nil {
		return nil, errors.New("engine factory is required")
	}
	return &EngineHandler{
		factory: factory,
		logger:  logging.NewLogger("engine-handler"),
	}, nil
}

// ListEngines returns the available engine identifiers
// @Summary List engines
// @Tags engines
// @Produce json
// @Success 200 {object} map[string][]string "Available engines"
// @Router /engines [get]
func (h *EngineHandler) ListEngines(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"engines": h.factory.AvailableEngines(),
	})
}

// GetEngineStatus probes one engine's backend
// @Summary Engine status
// @Tags engines
// @Produce json
// @Param name path string true "Engine name"
// @Success 200 {object} map[string]interface{} "Engine status"
// @Failure 400 {object} map[string]string "Engine not available"
// @Router /engines/{name}/status [get]
func (h *EngineHandler) GetEngineStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	adapter, err := h.factory.Create(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "engine_not_available", err.Error())
		return
	}

	result, err := adapter.GetStatus(r.Context())
	if err != nil {
		h.logger.Errorf("engine %s status probe failed: %v", name, err)
		writeError(w, http.StatusBadGateway, "engine_unreachable", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"engine":  name,
		"success": result.Success,
		"stdout":  result.Stdout,
		"stderr":  result.Stderr,
	})
}
