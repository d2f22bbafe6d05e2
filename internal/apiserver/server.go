// Package apiserver provides the HTTP API for deployment management, cost
// reporting, and engine discovery.
package apiserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/lakeshift/lakeshift/internal/apiserver/handlers"
	custommiddleware "github.com/lakeshift/lakeshift/internal/apiserver/middleware"
	"github.com/lakeshift/lakeshift/internal/config"
	"github.com/lakeshift/lakeshift/internal/deployment"
	"github.com/lakeshift/lakeshift/internal/engine"
	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/logging"
)

// Components holds the assembled collaborators the server exposes over HTTP
type Components struct {
	Queue      interfaces.DeploymentQueue
	Tracker    interfaces.DeploymentTracker
	WorkerPool interfaces.WorkerPool
	Service    *deployment.Service
	Costs      interfaces.CostTracker
	Factory    *engine.Factory
}

// APIServer provides HTTP endpoints for deployment management
type APIServer struct {
	router     chi.Router
	server     *http.Server
	components Components
	config     *config.ServerConfig
	logger     *logging.Logger
}

// NewAPIServer creates the API server over pre-assembled components
func NewAPIServer(cfg *config.ServerConfig, components Components) (*APIServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if components.Queue == nil {
		return nil, fmt.Errorf("deployment queue is required")
	}
	if components.Tracker == nil {
		return nil, fmt.Errorf("deployment tracker is required")
	}
	if components.Service == nil {
		return nil, fmt.Errorf("deployment service is required")
	}
	if components.Costs == nil {
		return nil, fmt.Errorf("cost tracker is required")
	}
	if components.Factory == nil {
		return nil, fmt.Errorf("engine factory is required")
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.StripSlashes)
	router.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	apiServer := &APIServer{
		router: router,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: cfg.RequestTimeout,
			IdleTimeout:  60 * time.Second,
		},
		components: components,
		config:     cfg,
		logger:     logging.NewLogger("apiserver"),
	}

	if err := apiServer.setupRoutes(); err != nil {
		return nil, err
	}

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apiServer.writeError(w, http.StatusNotFound, "not_found", "The requested endpoint was not found")
	})
	return apiServer, nil
}

func (s *APIServer) setupRoutes() error {
	deploymentHandler, err := handlers.NewDeploymentHandler(s.components.Service)
	if err != nil {
		return fmt.Errorf("failed to create deployment handler: %w", err)
	}
	costHandler, err := handlers.NewCostHandler(s.components.Costs)
	if err != nil {
		return fmt.Errorf("failed to create cost handler: %w", err)
	}
	engineHandler, err := handlers.NewEngineHandler(s.components.Factory)
	if err != nil {
		return fmt.Errorf("failed to create engine handler: %w", err)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			s.writeError(w, http.StatusNotFound, "not_found", "The requested endpoint was not found")
		})
		r.Use(custommiddleware.ContentTypeValidator())

		r.Route("/deployments", func(r chi.Router) {
			// Creation passes the engine boundary guard: no resolvable
			// engine means a 400 before anything is queued.
			r.With(
				custommiddleware.EngineResolver(s.components.Factory),
				custommiddleware.EnvironmentValidator(),
			).Post("/", deploymentHandler.CreateDeployment)

			r.Get("/", deploymentHandler.ListDeployments)
			r.Get("/history", deploymentHandler.GetHistory)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(custommiddleware.IDValidator("id"))
				r.Get("/", deploymentHandler.GetDeployment)
				r.Post("/cancel", deploymentHandler.CancelDeployment)
			})
		})

		r.Route("/cost", func(r chi.Router) {
			r.Get("/savings", costHandler.GetSavings)
			r.Get("/roi", costHandler.GetROI)
			r.Get("/environments", costHandler.GetBreakdown)
		})

		r.Route("/engines", func(r chi.Router) {
			r.Get("/", engineHandler.ListEngines)
			r.Get("/{name}/status", engineHandler.GetEngineStatus)
		})

		r.Get("/queue/metrics", s.getQueueMetrics)
		r.Get("/system/health", s.getSystemHealth)
	})

	s.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", s.config.Port)),
	))
	return nil
}

// writeError writes a structured error response
func (s *APIServer) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := fmt.Fprintf(w, `{"error":%q,"message":%q}`, code, message); err != nil {
		s.logger.Errorf("failed to write error response: %v", err)
	}
}

// getQueueMetrics returns queue metrics
// @Summary Get queue metrics
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "Queue metrics"
// @Router /queue/metrics [get]
func (s *APIServer) getQueueMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics := s.components.Queue.GetMetrics()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_enqueued":    metrics.TotalEnqueued,
		"total_dequeued":    metrics.TotalDequeued,
		"current_depth":     metrics.CurrentDepth,
		"average_wait_time": metrics.AverageWaitTime.String(),
		"oldest_deployment": metrics.OldestDeployment.Format(time.RFC3339),
	})
}

// getSystemHealth returns overall service health
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "Service is healthy"
// @Failure 503 {object} map[string]interface{} "Service degraded"
// @Router /system/health [get]
func (s *APIServer) getSystemHealth(w http.ResponseWriter, _ *http.Request) {
	queueHealthy, queueDetails := s.checkQueueHealth()
	trackerHealthy, trackerDetails := s.checkTrackerHealth()

	healthy := queueHealthy && trackerHealthy
	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s.writeJSON(w, statusCode, map[string]interface{}{
		"status":  status,
		"time":    time.Now().Format(time.RFC3339),
		"version": config.AppVersion,
		"components": map[string]interface{}{
			"queue":   queueDetails,
			"tracker": trackerDetails,
		},
		"system": map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc_mb": m.Alloc / 1024 / 1024,
				"sys_mb":   m.Sys / 1024 / 1024,
				"gc_count": m.NumGC,
			},
		},
	})
}

func (s *APIServer) checkQueueHealth() (bool, map[string]interface{}) {
	metrics := s.components.Queue.GetMetrics()
	details := map[string]interface{}{
		"status":   "healthy",
		"depth":    metrics.CurrentDepth,
		"enqueued": metrics.TotalEnqueued,
		"dequeued": metrics.TotalDequeued,
	}
	if metrics.CurrentDepth > 1000 {
		details["status"] = "warning"
		details["message"] = "queue depth is high"
		return false, details
	}
	return true, details
}

func (s *APIServer) checkTrackerHealth() (bool, map[string]interface{}) {
	deployments, err := s.components.Tracker.List(interfaces.DeploymentFilter{
		CreatedAfter: time.Now().Add(-1 * time.Minute),
	})
	if err != nil {
		return false, map[string]interface{}{
			"status":  "unhealthy",
			"message": fmt.Sprintf("failed to query tracker: %v", err),
		}
	}
	return true, map[string]interface{}{
		"status":             "healthy",
		"recent_deployments": len(deployments),
	}
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Errorf("failed to encode response: %v", err)
	}
}

// Start starts the API server and blocks until it stops
func (s *APIServer) Start() error {
	s.logger.Infof("starting API server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Router returns the HTTP router for testing
func (s *APIServer) Router() http.Handler {
	return s.router
}

// Shutdown gracefully shuts down the API server and its worker pool
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.logger.Infof("shutting down API server")

	if s.components.WorkerPool != nil {
		if err := s.components.WorkerPool.Stop(ctx); err != nil {
			s.logger.Warnf("failed to stop worker pool: %v", err)
		}
	}
	s.components.Queue.Close()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
