// Command lakeshift is the CLI for deploying transformation pipelines and
// inspecting compute-cost savings.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"    //nolint:gochecknoglobals // Build-time commit info
	date    = "unknown" //nolint:gochecknoglobals // Build-time date info

	debugMode bool //nolint:gochecknoglobals // CLI global flag
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lakeshift",
		Short: "Zero-downtime deployment for data transformation pipelines",
		Long: `Lakeshift promotes SQL/Python transformation projects through validated,
atomic deployments and accounts for the compute cost of every run.

It drives interchangeable transformation engines (SQLMesh, dbt) through a
uniform subprocess bridge.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if debugMode {
				_ = os.Setenv("LAKESHIFT_DEBUG", "1")
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newDeployCommand(),
		newRunCommand(),
		newSavingsCommand(),
		newROICommand(),
		newEnginesCommand(),
		newServerCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
