package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/logging"
)

// Static errors for engine selection failures. These are raised before any
// subprocess is spawned.
var (
	ErrNoEngineResolved   = errors.New("no transformation engine could be determined")
	ErrEngineNotAvailable = errors.New("requested engine is not available")
	ErrEngineNotInstalled = errors.New("requested engine is not installed")
)

// EngineSettings is the per-engine configuration block
type EngineSettings struct {
	Enabled     bool   `mapstructure:"enabled"`
	Executable  string `mapstructure:"executable"`
	ProjectPath string `mapstructure:"project_path"`
}

// SelectionMetadata carries the engine hints taken from an inbound request,
// in precedence order: header, then query parameter, then body field.
type SelectionMetadata struct {
	Header string
	Query  string
	Body   string
}

// Prompter performs interactive engine selection from the available set
type Prompter func(available []string) (string, error)

// FactoryConfig holds everything the factory needs; flags are injected
// explicitly rather than read from global state.
type FactoryConfig struct {
	Flags       *FeatureFlags
	Engines     map[string]map[string]interface{}
	ProjectPath string
	Timeout     time.Duration
	KillGrace   time.Duration
	// Strict requires ValidateInstallation to pass before an adapter is
	// handed out.
	Strict bool
	// AllowInteractive permits the Prompter fallback when no other source
	// resolves an engine.
	AllowInteractive bool
	Prompter         Prompter
}

// Factory produces ready-to-use engine adapters
type Factory struct {
	cfg       FactoryConfig
	available map[string]EngineSettings
	logger    *logging.Logger
}

// defaultExecutables maps engine identifiers to their bridge executables
var defaultExecutables = map[string]string{
	interfaces.EngineSQLMesh: "sqlmesh-bridge",
	interfaces.EngineDbt:     "dbt-bridge",
}

// NewFactory creates an engine factory. The available set is the
// intersection of enabled feature flags and per-engine enabled settings.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	if cfg.Flags == nil {
		cfg.Flags = DefaultFeatureFlags()
	}
	if cfg.Engines == nil {
		cfg.Engines = map[string]map[string]interface{}{
			interfaces.EngineSQLMesh: {"enabled": true},
			interfaces.EngineDbt:     {"enabled": true},
		}
	}

	available := make(map[string]EngineSettings)
	for name, raw := range cfg.Engines {
		name = strings.ToLower(name)

		var settings EngineSettings
		if err := mapstructure.Decode(raw, &settings); err != nil {
			return nil, fmt.Errorf("invalid configuration for engine %s: %w", name, err)
		}
		if !settings.Enabled || !cfg.Flags.EngineEnabled(name) {
			continue
		}
		if settings.Executable == "" {
			settings.Executable = defaultExecutables[name]
		}
		if settings.Executable == "" {
			return nil, fmt.Errorf("engine %s has no bridge executable configured", name)
		}
		if settings.ProjectPath == "" {
			settings.ProjectPath = cfg.ProjectPath
		}
		available[name] = settings
	}

	return &Factory{
		cfg:       cfg,
		available: available,
		logger:    logging.NewLogger("engine-factory"),
	}, nil
}

// AvailableEngines returns the sorted set of selectable engine identifiers
func (f *Factory) AvailableEngines() []string {
	names := make([]string, 0, len(f.available))
	for name := range f.available {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveName determines the engine identifier for one call, without
// constructing an adapter. Precedence: explicit name, request metadata
// (header, query, body), project auto-detection, interactive selection.
func (f *Factory) ResolveName(explicit string, meta *SelectionMetadata) (string, error) {
	if name := normalizeEngine(explicit); name != "" {
		return f.checkAvailable(name)
	}

	if meta != nil {
		for _, candidate := range []string{meta.Header, meta.Query, meta.Body} {
			if name := normalizeEngine(candidate); name != "" {
				return f.checkAvailable(name)
			}
		}
	}

	if name := DetectProjectEngine(f.cfg.ProjectPath); name != "" {
		if _, ok := f.available[name]; ok {
			f.logger.Debugf("auto-detected engine %s from project layout", name)
			return name, nil
		}
	}

	if f.cfg.AllowInteractive && f.cfg.Prompter != nil {
		available := f.AvailableEngines()
		if len(available) > 0 {
			name, err := f.cfg.Prompter(available)
			if err != nil {
				return "", fmt.Errorf("interactive engine selection failed: %w", err)
			}
			return f.checkAvailable(normalizeEngine(name))
		}
	}

	return "", ErrNoEngineResolved
}

// Create constructs the adapter for an already-resolved engine name and, in
// strict mode, verifies the backend installation.
func (f *Factory) Create(ctx context.Context, name string) (interfaces.EngineAdapter, error) {
	name = normalizeEngine(name)
	settings, ok := f.available[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)",
			ErrEngineNotAvailable, name, strings.Join(f.AvailableEngines(), ", "))
	}

	adapter, err := NewAdapter(AdapterConfig{
		Name:        name,
		Executable:  settings.Executable,
		ProjectPath: settings.ProjectPath,
		Timeout:     f.cfg.Timeout,
		KillGrace:   f.cfg.KillGrace,
		Enabled:     true,
	})
	if err != nil {
		return nil, err
	}

	if f.cfg.Strict && !adapter.ValidateInstallation(ctx) {
		return nil, fmt.Errorf("%w: %s", ErrEngineNotInstalled, name)
	}
	return adapter, nil
}

// Resolve combines ResolveName and Create for one call
func (f *Factory) Resolve(ctx context.Context, explicit string, meta *SelectionMetadata) (interfaces.EngineAdapter, error) {
	name, err := f.ResolveName(explicit, meta)
	if err != nil {
		return nil, err
	}
	return f.Create(ctx, name)
}

func (f *Factory) checkAvailable(name string) (string, error) {
	if _, ok := f.available[name]; !ok {
		return "", fmt.Errorf("%w: %s (available: %s)",
			ErrEngineNotAvailable, name, strings.Join(f.AvailableEngines(), ", "))
	}
	return name, nil
}

// normalizeEngine lowercases and trims an engine hint; engine names are
// matched case-insensitively.
func normalizeEngine(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
