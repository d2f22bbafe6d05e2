package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lakeshift/lakeshift/internal/config"
	"github.com/lakeshift/lakeshift/internal/cost"
	"github.com/lakeshift/lakeshift/internal/engine"
	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/orchestrator"
	"github.com/lakeshift/lakeshift/internal/state"
)

// cliWorkspace is the in-process component set used by CLI commands that run
// deployments synchronously, without the server's queue and worker pool.
type cliWorkspace struct {
	cfg     *config.Config
	factory *engine.Factory
	orch    *orchestrator.Orchestrator
	costs   interfaces.CostTracker
	history interfaces.HistoryStore
}

// newCLIWorkspace assembles local file-backed components. Unlike the server,
// the CLI permits interactive engine selection on a TTY.
func newCLIWorkspace() (*cliWorkspace, error) {
	cfg := config.LoadConfig()

	flags, err := engine.LoadFeatureFlags(cfg.FlagFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature flags: %w", err)
	}

	factory, err := engine.NewFactory(engine.FactoryConfig{
		Flags:            flags,
		ProjectPath:      cfg.ProjectPath,
		Timeout:          cfg.EngineTimeout,
		KillGrace:        cfg.KillGraceWait,
		AllowInteractive: true,
		Prompter:         promptForEngine,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine factory: %w", err)
	}

	ledgerStore, err := state.NewFileLedgerStore(cfg.LedgerPath)
	if err != nil {
		return nil, err
	}
	historyStore, err := state.NewFileHistoryStore(cfg.HistoryPath)
	if err != nil {
		return nil, err
	}

	costs := cost.NewTracker(ledgerStore, cfg.ComputeRate)

	orch := orchestrator.New(orchestrator.Config{
		Lease:   state.NewMemoryLease(),
		Costs:   costs,
		History: historyStore,
	})

	return &cliWorkspace{
		cfg:     cfg,
		factory: factory,
		orch:    orch,
		costs:   costs,
		history: historyStore,
	}, nil
}

// promptForEngine asks the operator to pick an engine from the available set
func promptForEngine(available []string) (string, error) {
	fmt.Printf("Multiple transformation engines are available: %s\n", strings.Join(available, ", "))
	fmt.Print("Select an engine: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read selection: %w", err)
	}

	choice := strings.TrimSpace(line)
	// Accept a 1-based index as well as a name.
	if idx, err := strconv.Atoi(choice); err == nil && idx >= 1 && idx <= len(available) {
		return available[idx-1], nil
	}
	return choice, nil
}
