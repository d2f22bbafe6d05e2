package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshift/lakeshift/internal/config"
	"github.com/lakeshift/lakeshift/internal/cost"
	"github.com/lakeshift/lakeshift/internal/deployment"
	"github.com/lakeshift/lakeshift/internal/engine"
	"github.com/lakeshift/lakeshift/internal/infra/embedded"
	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/mocks"
)

type serverFixture struct {
	server  *APIServer
	tracker *embedded.Tracker
	ledger  *mocks.MockLedgerStore
	history *mocks.MockHistoryStore
}

// newServerFixture builds a server over embedded infrastructure with no
// worker pool, so created deployments stay queued for the duration of a test.
func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	queue := embedded.NewQueue(10)
	t.Cleanup(queue.Close)
	tracker := embedded.NewTracker()
	ledger := mocks.NewMockLedgerStore()
	history := mocks.NewMockHistoryStore()

	service, err := deployment.NewService(deployment.ServiceConfig{
		Queue:   queue,
		Tracker: tracker,
		History: history,
	})
	require.NoError(t, err)

	factory, err := engine.NewFactory(engine.FactoryConfig{
		Flags: engine.NewFeatureFlags(map[string]bool{
			interfaces.EngineSQLMesh: true,
			interfaces.EngineDbt:     true,
		}),
	})
	require.NoError(t, err)

	server, err := NewAPIServer(config.NewServerConfig(), Components{
		Queue:   queue,
		Tracker: tracker,
		Service: service,
		Costs:   cost.NewTracker(ledger, 2.0),
		Factory: factory,
	})
	require.NoError(t, err)

	return &serverFixture{server: server, tracker: tracker, ledger: ledger, history: history}
}

func (f *serverFixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func TestCreateDeployment_API(t *testing.T) {
	t.Parallel()

	t.Run("creates a queued deployment", func(t *testing.T) {
		t.Parallel()
		f := newServerFixture(t)

		rec := f.do(t, http.MethodPost, "/api/v1/deployments", map[string]interface{}{
			"environment": "staging",
			"engine":      "sqlmesh",
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var dep interfaces.Deployment
		decodeBody(t, rec, &dep)
		assert.NotEmpty(t, dep.ID)
		assert.Equal(t, "staging", dep.Environment)
		assert.Equal(t, "sqlmesh", dep.Engine)
		assert.Equal(t, interfaces.DeploymentStatusQueued, dep.Status)
		assert.NotEmpty(t, dep.RequestID, "request ID propagates from the request middleware")
	})

	t.Run("header engine selection wins over body", func(t *testing.T) {
		t.Parallel()
		f := newServerFixture(t)

		rec := f.do(t, http.MethodPost, "/api/v1/deployments", map[string]interface{}{
			"environment": "staging",
			"engine":      "sqlmesh",
		}, map[string]string{interfaces.EngineHeader: "dbt"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var dep interfaces.Deployment
		decodeBody(t, rec, &dep)
		assert.Equal(t, "dbt", dep.Engine)
	})

	t.Run("unresolvable engine is rejected before queueing", func(t *testing.T) {
		t.Parallel()
		f := newServerFixture(t)

		rec := f.do(t, http.MethodPost, "/api/v1/deployments", map[string]interface{}{
			"environment": "staging",
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body map[string]string
		decodeBody(t, rec, &body)
		assert.Equal(t, "engine_unresolved", body["error"])

		deployments, err := f.tracker.List(interfaces.DeploymentFilter{})
		require.NoError(t, err)
		assert.Empty(t, deployments, "nothing may be queued when the engine is unresolved")
	})

	t.Run("unknown engine is rejected", func(t *testing.T) {
		t.Parallel()
		f := newServerFixture(t)

		rec := f.do(t, http.MethodPost, "/api/v1/deployments", map[string]interface{}{
			"environment": "staging",
			"engine":      "spark",
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body map[string]string
		decodeBody(t, rec, &body)
		assert.Equal(t, "engine_not_available", body["error"])
	})

	t.Run("missing environment is rejected", func(t *testing.T) {
		t.Parallel()
		f := newServerFixture(t)

		rec := f.do(t, http.MethodPost, "/api/v1/deployments", map[string]interface{}{
			"engine": "sqlmesh",
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "environment is required")
	})

	t.Run("wrong content type is rejected", func(t *testing.T) {
		t.Parallel()
		f := newServerFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/deployments",
			bytes.NewBufferString(`{"environment":"staging","engine":"sqlmesh"}`))
		req.Header.Set("Content-Type", "text/plain")

		rec := httptest.NewRecorder()
		f.server.Router().ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Content-Type")
	})
}

func TestDeploymentLifecycle_API(t *testing.T) {
	t.Parallel()
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/deployments", map[string]interface{}{
		"environment": "staging",
		"engine":      "sqlmesh",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var dep interfaces.Deployment
	decodeBody(t, rec, &dep)

	// Fetch it back.
	rec = f.do(t, http.MethodGet, "/api/v1/deployments/"+dep.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// It shows up in the filtered listing.
	rec = f.do(t, http.MethodGet, "/api/v1/deployments?environment=staging", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []interfaces.Deployment
	decodeBody(t, rec, &listed)
	require.Len(t, listed, 1)

	// Cancel while still queued.
	rec = f.do(t, http.MethodPost, "/api/v1/deployments/"+dep.ID+"/cancel", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// A second cancel hits a terminal deployment.
	rec = f.do(t, http.MethodPost, "/api/v1/deployments/"+dep.ID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestGetDeployment_Errors(t *testing.T) {
	t.Parallel()
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/deployments/deploy-missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/deployments/bad_id%21", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_API(t *testing.T) {
	t.Parallel()
	f := newServerFixture(t)

	require.NoError(t, f.history.Append(context.Background(), &interfaces.Deployment{
		ID:     "deploy-done",
		Status: interfaces.DeploymentStatusCompleted,
	}))

	rec := f.do(t, http.MethodGet, "/api/v1/deployments/history", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []interfaces.Deployment
	decodeBody(t, rec, &records)
	require.Len(t, records, 1)
	assert.Equal(t, "deploy-done", records[0].ID)

	rec = f.do(t, http.MethodGet, "/api/v1/deployments/history?limit=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCostEndpoints_API(t *testing.T) {
	t.Parallel()
	f := newServerFixture(t)

	f.ledger.Seed(
		interfaces.ExecutionRecord{
			Timestamp:           time.Now().UTC(),
			Environment:         "dev",
			IsVirtual:           true,
			VirtualComputeHours: 25,
			SavedCost:           50,
		},
		interfaces.ExecutionRecord{
			Timestamp:            time.Now().UTC(),
			Environment:          "prod",
			PhysicalComputeHours: 5,
			Cost:                 10,
		},
	)

	t.Run("savings", func(t *testing.T) {
		t.Parallel()
		rec := f.do(t, http.MethodGet, "/api/v1/cost/savings?period=month", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Metrics         interfaces.PeriodMetrics `json:"metrics"`
			Recommendations []string                 `json:"recommendations"`
		}
		decodeBody(t, rec, &body)
		assert.Equal(t, 83.3, body.Metrics.SavingsPercentage)
		assert.NotEmpty(t, body.Recommendations)
	})

	t.Run("unknown period", func(t *testing.T) {
		t.Parallel()
		rec := f.do(t, http.MethodGet, "/api/v1/cost/savings?period=decade", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("roi", func(t *testing.T) {
		t.Parallel()
		rec := f.do(t, http.MethodGet, "/api/v1/cost/roi?implementation_cost=100", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var report interfaces.ROIReport
		decodeBody(t, rec, &report)
		assert.Equal(t, 100.0, report.ImplementationCost)
		assert.Equal(t, 50.0, report.QuarterlySavings)
		assert.True(t, report.BreakEven)
	})

	t.Run("roi requires a positive cost", func(t *testing.T) {
		t.Parallel()
		rec := f.do(t, http.MethodGet, "/api/v1/cost/roi", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = f.do(t, http.MethodGet, "/api/v1/cost/roi?implementation_cost=-5", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("environment breakdown", func(t *testing.T) {
		t.Parallel()
		rec := f.do(t, http.MethodGet, "/api/v1/cost/environments", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var breakdown map[string]interfaces.EnvironmentUsage
		decodeBody(t, rec, &breakdown)
		assert.Contains(t, breakdown, "dev")
		assert.Contains(t, breakdown, "prod")
	})
}

func TestEngineEndpoints_API(t *testing.T) {
	t.Parallel()
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/engines", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]string
	decodeBody(t, rec, &body)
	assert.Equal(t, []string{"dbt", "sqlmesh"}, body["engines"])

	// A status probe against a non-configured engine fails cleanly.
	rec = f.do(t, http.MethodGet, "/api/v1/engines/spark/status", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSystemEndpoints_API(t *testing.T) {
	t.Parallel()
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/queue/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var metrics map[string]interface{}
	decodeBody(t, rec, &metrics)
	assert.Contains(t, metrics, "current_depth")

	rec = f.do(t, http.MethodGet, "/api/v1/system/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	decodeBody(t, rec, &health)
	assert.Equal(t, "healthy", health["status"])
}

func TestNotFound_IsJSON(t *testing.T) {
	t.Parallel()
	f := newServerFixture(t)

	for _, path := range []string{"/nope", "/api/v1/nope"} {
		rec := f.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"), path)
		assert.Contains(t, rec.Body.String(), "not_found", path)
	}
}

func TestNewAPIServer_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewAPIServer(nil, Components{})
	require.Error(t, err)

	_, err = NewAPIServer(config.NewServerConfig(), Components{})
	require.Error(t, err)
}
