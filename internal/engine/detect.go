package engine

import (
	"os"
	"path/filepath"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

// DetectProjectEngine infers the transformation engine from the project
// layout. dbt projects carry a dbt_project.yml; SQLMesh projects carry a
// config.yaml or config.py at the root. Returns "" when nothing matches.
func DetectProjectEngine(projectPath string) string {
	if projectPath == "" {
		return ""
	}

	if fileExists(filepath.Join(projectPath, "dbt_project.yml")) {
		return interfaces.EngineDbt
	}
	for _, marker := range []string{"config.yaml", "config.yml", "config.py"} {
		if fileExists(filepath.Join(projectPath, marker)) {
			return interfaces.EngineSQLMesh
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
