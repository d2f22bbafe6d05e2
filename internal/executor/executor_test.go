package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshift/lakeshift/internal/engine"
	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/mocks"
	"github.com/lakeshift/lakeshift/internal/orchestrator"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	factory, err := engine.NewFactory(engine.FactoryConfig{})
	require.NoError(t, err)

	_, err = New(nil, factory)
	require.Error(t, err)
	_, err = New(orchestrator.New(orchestrator.Config{}), nil)
	require.Error(t, err)
}

func TestExecute_UnresolvableEngineFailsDeployment(t *testing.T) {
	t.Parallel()

	// Only sqlmesh is available; a deployment pinned to dbt cannot get an
	// adapter and must fail before entering the state machine.
	factory, err := engine.NewFactory(engine.FactoryConfig{})
	require.NoError(t, err)

	history := mocks.NewMockHistoryStore()
	exec, err := New(orchestrator.New(orchestrator.Config{History: history}), factory)
	require.NoError(t, err)

	dep := orchestrator.NewDeployment(&interfaces.DeploymentRequest{
		Environment: "staging",
		Engine:      "dbt",
	})
	dep.Engine = "dbt"

	execErr := exec.Execute(context.Background(), dep)
	require.Error(t, execErr)
	assert.Contains(t, execErr.Error(), "no engine adapter available")

	assert.Equal(t, interfaces.DeploymentStatusFailed, dep.Status)
	assert.Empty(t, dep.Steps)
	require.Len(t, history.Appended(), 1, "the failure is still a history record")
}
