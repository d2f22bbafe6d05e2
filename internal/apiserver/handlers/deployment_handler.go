package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/lakeshift/lakeshift/internal/apiserver/middleware"
	"github.com/lakeshift/lakeshift/internal/deployment"
	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/logging"
)

// DeploymentHandler serves the deployment endpoints
type DeploymentHandler struct {
	service *deployment.Service
	logger  *logging.Logger
}

// NewDeploymentHandler creates a deployment handler
func NewDeploymentHandler(service *deployment.Service) (*DeploymentHandler, error) {
	if service == nil {
		return nil, errors.New("deployment service is required")
	}
	return &DeploymentHandler{
		service: service,
		logger:  logging.NewLogger("deployment-handler"),
	}, nil
}

// createDeploymentRequest is the JSON body for deployment creation
type createDeploymentRequest struct {
	Environment    string                 `json:"environment"`
	Engine         string                 `json:"engine,omitempty"`
	TargetSelector string                 `json:"target_selector,omitempty"`
	IsProd         bool                   `json:"is_prod,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// CreateDeployment creates a new deployment
// @Summary Create deployment
// @Description Queue a new deployment of the transformation project into an environment
// @Tags deployments
// @Accept json
// @Produce json
// @Param request body createDeploymentRequest true "Deployment request"
// @Success 201 {object} interfaces.Deployment
// @Failure 400 {object} map[string]string "Bad request"
// @Router /deployments [post]
func (h *DeploymentHandler) CreateDeployment(w http.ResponseWriter, r *http.Request) {
	var body createDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	// The boundary guard already resolved the engine from the request; the
	// body field only wins when the guard attached nothing.
	engineName := middleware.EngineFromContext(r.Context())
	if engineName == "" {
		engineName = body.Engine
	}

	req := &interfaces.DeploymentRequest{
		Environment:    body.Environment,
		Engine:         engineName,
		TargetSelector: body.TargetSelector,
		IsProd:         body.IsProd,
		Metadata:       body.Metadata,
	}
	if requestID := chimiddleware.GetReqID(r.Context()); requestID != "" {
		if req.Metadata == nil {
			req.Metadata = map[string]interface{}{}
		}
		req.Metadata[interfaces.MetadataKeyRequestID] = requestID
	}

	dep, err := h.service.CreateDeployment(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dep)
}

// GetDeployment returns one deployment by ID
// @Summary Get deployment
// @Tags deployments
// @Produce json
// @Param id path string true "Deployment ID"
// @Success 200 {object} interfaces.Deployment
// @Failure 404 {object} map[string]string "Not found"
// @Router /deployments/{id} [get]
func (h *DeploymentHandler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	dep, err := h.service.GetDeploymentByID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dep)
}

// ListDeployments returns deployments matching the query filters
// @Summary List deployments
// @Tags deployments
// @Produce json
// @Param status query string false "Filter by status"
// @Param environment query string false "Filter by environment"
// @Success 200 {array} interfaces.Deployment
// @Router /deployments [get]
func (h *DeploymentHandler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	filter := interfaces.DeploymentFilter{
		Environment: r.URL.Query().Get("environment"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = []interfaces.DeploymentStatus{interfaces.DeploymentStatus(status)}
	}

	deployments, err := h.service.ListDeployments(filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if deployments == nil {
		deployments = []*interfaces.Deployment{}
	}
	writeJSON(w, http.StatusOK, deployments)
}

// CancelDeployment cancels a queued deployment
// @Summary Cancel deployment
// @Tags deployments
// @Produce json
// @Param id path string true "Deployment ID"
// @Success 200 {object} map[string]string "Cancellation successful"
// @Failure 409 {object} map[string]string "Deployment already processing"
// @Router /deployments/{id}/cancel [post]
func (h *DeploymentHandler) CancelDeployment(w http.ResponseWriter, r *http.Request) {
	deploymentID := chi.URLParam(r, "id")
	if err := h.service.CancelDeployment(r.Context(), deploymentID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     deploymentID,
		"status": string(interfaces.DeploymentStatusCanceled),
	})
}

// GetHistory returns the most recent terminal deployments
// @Summary Deployment history
// @Tags deployments
// @Produce json
// @Param limit query int false "Maximum records to return"
// @Success 200 {array} interfaces.Deployment
// @Router /deployments/history [get]
func (h *DeploymentHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := interfaces.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.service.RecentHistory(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// writeServiceError maps service errors to HTTP responses using the
// structured deployment error codes.
func (h *DeploymentHandler) writeServiceError(w http.ResponseWriter, err error) {
	if depErr, ok := deployment.IsDeploymentError(err); ok {
		writeError(w, depErr.HTTPStatus, depErr.Code, depErr.Message)
		return
	}
	h.logger.Errorf("deployment request failed: %v", err)
	writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}
