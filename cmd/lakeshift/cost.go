package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

func newSavingsCommand() *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "savings",
		Short: "Report compute-cost savings from virtual environments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := newCLIWorkspace()
			if err != nil {
				return err
			}

			p := interfaces.SavingsPeriod(period)
			if p != interfaces.PeriodMonth && p != interfaces.PeriodQuarter {
				return fmt.Errorf("period must be %q or %q, got %q",
					interfaces.PeriodMonth, interfaces.PeriodQuarter, period)
			}

			metrics, err := ws.costs.CalculateSavings(cmd.Context(), p)
			if err != nil {
				return fmt.Errorf("failed to calculate savings: %w", err)
			}

			fmt.Printf("Savings for the last %s:\n", metrics.Period)
			fmt.Printf("  Executions:            %d\n", metrics.ExecutionCount)
			fmt.Printf("  Physical compute:      %.2f hours ($%.2f)\n", metrics.PhysicalComputeHours, metrics.Cost)
			fmt.Printf("  Virtual compute:       %.2f hours ($%.2f saved)\n", metrics.VirtualComputeHours, metrics.SavedCost)
			fmt.Printf("  Cost without virtual:  $%.2f\n", metrics.PotentialCost)
			fmt.Printf("  Savings:               %.1f%%\n", metrics.SavingsPercentage)

			recommendations := ws.costs.GenerateRecommendations(metrics)
			if len(recommendations) > 0 {
				fmt.Println("\nRecommendations:")
				for _, rec := range recommendations {
					fmt.Printf("  - %s\n", rec)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", string(interfaces.PeriodMonth), "Aggregation period: month or quarter")
	return cmd
}

func newROICommand() *cobra.Command {
	var implementationCost float64

	cmd := &cobra.Command{
		Use:   "roi",
		Short: "Report return on investment against an implementation cost",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if implementationCost <= 0 {
				return fmt.Errorf("--implementation-cost must be positive, got %v", implementationCost)
			}

			ws, err := newCLIWorkspace()
			if err != nil {
				return err
			}

			report, err := ws.costs.CalculateROI(cmd.Context(), implementationCost)
			if err != nil {
				return fmt.Errorf("failed to calculate ROI: %w", err)
			}

			fmt.Printf("Implementation cost:  $%.2f\n", report.ImplementationCost)
			fmt.Printf("Quarterly savings:    $%.2f\n", report.QuarterlySavings)
			fmt.Printf("Yearly savings:       $%.2f\n", report.YearlySavings)
			fmt.Printf("ROI:                  %s%%\n", report.ROI)
			fmt.Printf("Payback period:       %s months\n", report.PaybackPeriodMonths)
			if report.BreakEven {
				fmt.Println("Breaks even within the first year")
			} else {
				fmt.Println("Does not break even within the first year")
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&implementationCost, "implementation-cost", 0, "Implementation cost in dollars (required)")
	_ = cmd.MarkFlagRequired("implementation-cost")
	return cmd
}

func newEnginesCommand() *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "engines",
		Short: "List available transformation engines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := newCLIWorkspace()
			if err != nil {
				return err
			}

			names := ws.factory.AvailableEngines()
			if len(names) == 0 {
				fmt.Println("No engines are available; check feature flags and engine configuration")
				return nil
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ENGINE\tSTATUS")
			for _, name := range names {
				status := "available"
				if probe {
					status = probeEngine(cmd, ws, name)
				}
				fmt.Fprintf(w, "%s\t%s\n", name, status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Probe each engine's backend installation")
	return cmd
}

func probeEngine(cmd *cobra.Command, ws *cliWorkspace, name string) string {
	adapter, err := ws.factory.Create(cmd.Context(), name)
	if err != nil {
		return fmt.Sprintf("unavailable (%v)", err)
	}
	if !adapter.ValidateInstallation(cmd.Context()) {
		return "not installed"
	}
	return "installed"
}
