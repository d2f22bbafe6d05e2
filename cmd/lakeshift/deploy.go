package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/orchestrator"
)

func newDeployCommand() *cobra.Command {
	var (
		engineName     string
		targetSelector string
		isProd         bool
	)

	cmd := &cobra.Command{
		Use:   "deploy <environment>",
		Short: "Deploy the transformation project to an environment",
		Long: `Deploy runs the full deployment state machine synchronously:
pre-validation, shadow creation, shadow validation, safety checks, atomic
swap, and post-validation. A failure at any stage stops the deployment and
records a rollback step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := newCLIWorkspace()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			adapter, err := ws.factory.Resolve(ctx, engineName, nil)
			if err != nil {
				return fmt.Errorf("failed to resolve engine: %w", err)
			}

			dep := orchestrator.NewDeployment(&interfaces.DeploymentRequest{
				Environment:    args[0],
				Engine:         adapter.Name(),
				TargetSelector: targetSelector,
				IsProd:         isProd,
			})
			dep.Engine = adapter.Name()

			fmt.Printf("Deployment %s: environment=%s engine=%s\n", dep.ID, dep.Environment, dep.Engine)
			execErr := ws.orch.Execute(ctx, dep, adapter)
			printDeployment(dep)

			if execErr != nil {
				return fmt.Errorf("deployment failed: %w", execErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&engineName, "engine", "", "Transformation engine (sqlmesh, dbt); auto-detected when omitted")
	cmd.Flags().StringVar(&targetSelector, "select", "", "Model selector passed to test and audit commands")
	cmd.Flags().BoolVar(&isProd, "prod", false, "Treat the target as a production environment")
	return cmd
}

func newRunCommand() *cobra.Command {
	var (
		engineName string
		model      string
	)

	cmd := &cobra.Command{
		Use:   "run <environment>",
		Short: "Run models in an environment and account for the compute used",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := newCLIWorkspace()
			if err != nil {
				return err
			}
			environment := args[0]

			ctx := cmd.Context()
			adapter, err := ws.factory.Resolve(ctx, engineName, nil)
			if err != nil {
				return fmt.Errorf("failed to resolve engine: %w", err)
			}

			started := time.Now()
			result, err := adapter.Run(ctx, environment, model)
			if err != nil {
				return fmt.Errorf("engine run failed: %w", err)
			}
			if result.Stdout != "" {
				fmt.Print(result.Stdout)
			}
			if result.Stderr != "" {
				fmt.Fprint(os.Stderr, result.Stderr)
			}
			if !result.Success {
				return fmt.Errorf("run did not succeed (exit code %d)", result.ReturnCode)
			}

			record, err := ws.costs.TrackExecution(ctx, environment, interfaces.ExecutionUsage{
				ComputeHours: time.Since(started).Hours(),
				Engine:       adapter.Name(),
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to record execution in cost ledger: %v\n", err)
				return nil
			}

			if record.IsVirtual {
				fmt.Printf("Recorded %.4f virtual compute hours ($%.2f saved)\n", record.VirtualComputeHours, record.SavedCost)
			} else {
				fmt.Printf("Recorded %.4f physical compute hours ($%.2f)\n", record.PhysicalComputeHours, record.Cost)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&engineName, "engine", "", "Transformation engine (sqlmesh, dbt); auto-detected when omitted")
	cmd.Flags().StringVar(&model, "model", "", "Run a single model instead of the whole project")
	return cmd
}

// printDeployment renders the step-by-step outcome of a finished deployment
func printDeployment(dep *interfaces.Deployment) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSTATUS\tDURATION")
	for _, step := range dep.Steps {
		fmt.Fprintf(w, "%s\t%s\t%s\n", step.Name, step.Status,
			step.CompletedAt.Sub(step.StartedAt).Round(time.Millisecond))
	}
	_ = w.Flush()

	for _, warning := range dep.DataLossWarnings {
		fmt.Printf("Warning: %s\n", warning)
	}

	switch dep.Status {
	case interfaces.DeploymentStatusCompleted:
		fmt.Printf("Deployment %s completed in %dms\n", dep.ID, dep.DurationMillis())
	case interfaces.DeploymentStatusFailed:
		fmt.Printf("Deployment %s failed: %s\n", dep.ID, dep.Error)
		if dep.RollbackError != "" {
			fmt.Printf("Rollback error: %s\n", dep.RollbackError)
		}
	default:
		fmt.Printf("Deployment %s finished with status %s\n", dep.ID, dep.Status)
	}
}
