package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

func bothEnginesEnabled() *FeatureFlags {
	return NewFeatureFlags(map[string]bool{
		interfaces.EngineSQLMesh: true,
		interfaces.EngineDbt:     true,
	})
}

func TestNewFactory_AvailableSet(t *testing.T) {
	t.Parallel()

	t.Run("default flags enable only sqlmesh", func(t *testing.T) {
		t.Parallel()
		factory, err := NewFactory(FactoryConfig{})
		require.NoError(t, err)
		assert.Equal(t, []string{interfaces.EngineSQLMesh}, factory.AvailableEngines())
	})

	t.Run("both flags enable both engines sorted", func(t *testing.T) {
		t.Parallel()
		factory, err := NewFactory(FactoryConfig{Flags: bothEnginesEnabled()})
		require.NoError(t, err)
		assert.Equal(t, []string{interfaces.EngineDbt, interfaces.EngineSQLMesh}, factory.AvailableEngines())
	})

	t.Run("engine disabled in config is excluded despite flag", func(t *testing.T) {
		t.Parallel()
		factory, err := NewFactory(FactoryConfig{
			Flags: bothEnginesEnabled(),
			Engines: map[string]map[string]interface{}{
				interfaces.EngineSQLMesh: {"enabled": true},
				interfaces.EngineDbt:     {"enabled": false},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{interfaces.EngineSQLMesh}, factory.AvailableEngines())
	})

	t.Run("malformed engine block is an error", func(t *testing.T) {
		t.Parallel()
		_, err := NewFactory(FactoryConfig{
			Engines: map[string]map[string]interface{}{
				interfaces.EngineSQLMesh: {"enabled": "definitely"},
			},
		})
		require.Error(t, err)
	})
}

func TestResolveName_Precedence(t *testing.T) {
	t.Parallel()

	factory, err := NewFactory(FactoryConfig{Flags: bothEnginesEnabled()})
	require.NoError(t, err)

	t.Run("explicit name wins over metadata", func(t *testing.T) {
		t.Parallel()
		name, err := factory.ResolveName("dbt", &SelectionMetadata{Header: "sqlmesh"})
		require.NoError(t, err)
		assert.Equal(t, interfaces.EngineDbt, name)
	})

	t.Run("header beats query and body", func(t *testing.T) {
		t.Parallel()
		name, err := factory.ResolveName("", &SelectionMetadata{
			Header: "dbt",
			Query:  "sqlmesh",
			Body:   "sqlmesh",
		})
		require.NoError(t, err)
		assert.Equal(t, interfaces.EngineDbt, name)
	})

	t.Run("query beats body", func(t *testing.T) {
		t.Parallel()
		name, err := factory.ResolveName("", &SelectionMetadata{
			Query: "sqlmesh",
			Body:  "dbt",
		})
		require.NoError(t, err)
		assert.Equal(t, interfaces.EngineSQLMesh, name)
	})

	t.Run("engine names match case-insensitively", func(t *testing.T) {
		t.Parallel()
		name, err := factory.ResolveName("  SQLMesh ", nil)
		require.NoError(t, err)
		assert.Equal(t, interfaces.EngineSQLMesh, name)
	})

	t.Run("unavailable engine is rejected even when explicit", func(t *testing.T) {
		t.Parallel()
		onlySQLMesh, err := NewFactory(FactoryConfig{})
		require.NoError(t, err)

		_, err = onlySQLMesh.ResolveName("dbt", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEngineNotAvailable)
	})

	t.Run("nothing resolvable", func(t *testing.T) {
		t.Parallel()
		_, err := factory.ResolveName("", nil)
		assert.ErrorIs(t, err, ErrNoEngineResolved)
	})
}

func TestResolveName_ProjectDetection(t *testing.T) {
	t.Parallel()

	t.Run("dbt project layout resolves dbt", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "dbt_project.yml"), []byte("name: shop"), 0o600))

		factory, err := NewFactory(FactoryConfig{Flags: bothEnginesEnabled(), ProjectPath: dir})
		require.NoError(t, err)

		name, err := factory.ResolveName("", nil)
		require.NoError(t, err)
		assert.Equal(t, interfaces.EngineDbt, name)
	})

	t.Run("sqlmesh project layout resolves sqlmesh", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("gateway: local"), 0o600))

		factory, err := NewFactory(FactoryConfig{Flags: bothEnginesEnabled(), ProjectPath: dir})
		require.NoError(t, err)

		name, err := factory.ResolveName("", nil)
		require.NoError(t, err)
		assert.Equal(t, interfaces.EngineSQLMesh, name)
	})

	t.Run("detected engine must still be available", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "dbt_project.yml"), []byte("name: shop"), 0o600))

		// dbt flag off: the detected engine cannot be used, nothing resolves.
		factory, err := NewFactory(FactoryConfig{ProjectPath: dir})
		require.NoError(t, err)

		_, err = factory.ResolveName("", nil)
		assert.ErrorIs(t, err, ErrNoEngineResolved)
	})

	t.Run("metadata beats project detection", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "dbt_project.yml"), []byte("name: shop"), 0o600))

		factory, err := NewFactory(FactoryConfig{Flags: bothEnginesEnabled(), ProjectPath: dir})
		require.NoError(t, err)

		name, err := factory.ResolveName("", &SelectionMetadata{Body: "sqlmesh"})
		require.NoError(t, err)
		assert.Equal(t, interfaces.EngineSQLMesh, name)
	})
}

func TestResolveName_Interactive(t *testing.T) {
	t.Parallel()

	t.Run("prompter is the last resort", func(t *testing.T) {
		t.Parallel()
		prompted := false
		factory, err := NewFactory(FactoryConfig{
			Flags:            bothEnginesEnabled(),
			AllowInteractive: true,
			Prompter: func(available []string) (string, error) {
				prompted = true
				assert.Equal(t, []string{interfaces.EngineDbt, interfaces.EngineSQLMesh}, available)
				return "dbt", nil
			},
		})
		require.NoError(t, err)

		name, err := factory.ResolveName("", nil)
		require.NoError(t, err)
		assert.True(t, prompted)
		assert.Equal(t, interfaces.EngineDbt, name)
	})

	t.Run("prompter is skipped when interaction is not allowed", func(t *testing.T) {
		t.Parallel()
		factory, err := NewFactory(FactoryConfig{
			Flags: bothEnginesEnabled(),
			Prompter: func(_ []string) (string, error) {
				t.Fatal("prompter must not run")
				return "", nil
			},
		})
		require.NoError(t, err)

		_, err = factory.ResolveName("", nil)
		assert.ErrorIs(t, err, ErrNoEngineResolved)
	})

	t.Run("prompter error propagates", func(t *testing.T) {
		t.Parallel()
		factory, err := NewFactory(FactoryConfig{
			Flags:            bothEnginesEnabled(),
			AllowInteractive: true,
			Prompter: func(_ []string) (string, error) {
				return "", errors.New("stdin closed")
			},
		})
		require.NoError(t, err)

		_, err = factory.ResolveName("", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "interactive engine selection failed")
	})
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("returns an adapter for an available engine", func(t *testing.T) {
		t.Parallel()
		factory, err := NewFactory(FactoryConfig{})
		require.NoError(t, err)

		adapter, err := factory.Create(context.Background(), "sqlmesh")
		require.NoError(t, err)
		assert.Equal(t, interfaces.EngineSQLMesh, adapter.Name())
	})

	t.Run("rejects an unavailable engine", func(t *testing.T) {
		t.Parallel()
		factory, err := NewFactory(FactoryConfig{})
		require.NoError(t, err)

		_, err = factory.Create(context.Background(), "dbt")
		assert.ErrorIs(t, err, ErrEngineNotAvailable)
	})

	t.Run("strict mode requires an installed backend", func(t *testing.T) {
		t.Parallel()
		// The default bridge executable does not exist on the test host, so
		// the installation probe must fail.
		factory, err := NewFactory(FactoryConfig{Strict: true})
		require.NoError(t, err)

		_, err = factory.Create(context.Background(), "sqlmesh")
		assert.ErrorIs(t, err, ErrEngineNotInstalled)
	})
}

func TestDetectProjectEngine(t *testing.T) {
	t.Parallel()

	t.Run("empty path detects nothing", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, DetectProjectEngine(""))
	})

	t.Run("bare directory detects nothing", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, DetectProjectEngine(t.TempDir()))
	})

	t.Run("dbt marker wins over sqlmesh markers", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "dbt_project.yml"), []byte("name: shop"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("gateway: local"), 0o600))
		assert.Equal(t, interfaces.EngineDbt, DetectProjectEngine(dir))
	})

	t.Run("config.py marks a sqlmesh project", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.py"), []byte("config = {}"), 0o600))
		assert.Equal(t, interfaces.EngineSQLMesh, DetectProjectEngine(dir))
	})
}
