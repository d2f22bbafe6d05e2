package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

// flagSuffix is appended to the engine identifier to form its flag key
const flagSuffix = "_transformations"

// FeatureFlags is the boolean gate consumed by the engine factory. It is an
// explicitly injected configuration object, not global state, so tests can
// override flags trivially.
type FeatureFlags struct {
	flags map[string]bool
}

// NewFeatureFlags creates a flag set from explicit values keyed by engine
// identifier.
func NewFeatureFlags(enabled map[string]bool) *FeatureFlags {
	flags := make(map[string]bool, len(enabled))
	for name, on := range enabled {
		flags[strings.ToLower(name)+flagSuffix] = on
	}
	return &FeatureFlags{flags: flags}
}

// DefaultFeatureFlags returns the safe default used when no flag file exists:
// the primary engine enabled, all others disabled.
func DefaultFeatureFlags() *FeatureFlags {
	return NewFeatureFlags(map[string]bool{
		interfaces.EngineSQLMesh: true,
		interfaces.EngineDbt:     false,
	})
}

// LoadFeatureFlags reads the flag file. A missing file degrades to the safe
// default rather than failing; a present but malformed file is an error.
func LoadFeatureFlags(path string) (*FeatureFlags, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultFeatureFlags(), nil
		}
		return nil, fmt.Errorf("failed to read feature flag file %s: %w", path, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse feature flag file %s: %w", path, err)
	}

	// Tolerate non-flag entries in the file; only boolean values become flags.
	flags := make(map[string]bool)
	if err := mapstructure.Decode(raw, &flags); err != nil {
		filtered := make(map[string]bool, len(raw))
		for key, value := range raw {
			if b, ok := value.(bool); ok {
				filtered[strings.ToLower(key)] = b
			}
		}
		flags = filtered
	}

	normalized := make(map[string]bool, len(flags))
	for key, on := range flags {
		normalized[strings.ToLower(key)] = on
	}
	return &FeatureFlags{flags: normalized}, nil
}

// EngineEnabled reports whether the engine's transformation flag is on
func (f *FeatureFlags) EngineEnabled(engine string) bool {
	return f.flags[strings.ToLower(engine)+flagSuffix]
}
