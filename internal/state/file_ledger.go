package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

// FileLedgerStore persists the cost ledger as a single JSON document on local
// disk. Writes go through a temp file and rename so a crash never leaves a
// half-written ledger behind.
type FileLedgerStore struct {
	path string
	mu   sync.Mutex
}

// NewFileLedgerStore creates a file-backed ledger store at path
func NewFileLedgerStore(path string) (*FileLedgerStore, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return &FileLedgerStore{path: path}, nil
}

// Load reads the full ledger. A missing file yields a fresh empty ledger; any
// other I/O or parse error propagates.
func (s *FileLedgerStore) Load(ctx context.Context) (*interfaces.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *FileLedgerStore) load(_ context.Context) (*interfaces.Ledger, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &interfaces.Ledger{
				Executions: []interfaces.ExecutionRecord{},
				CreatedAt:  time.Now().UTC(),
			}, nil
		}
		return nil, fmt.Errorf("failed to read ledger %s: %w", s.path, err)
	}

	var ledger interfaces.Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("failed to parse ledger %s: %w", s.path, err)
	}
	return &ledger, nil
}

// Append adds one execution record and refreshes the stored aggregates
func (s *FileLedgerStore) Append(ctx context.Context, record interfaces.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.load(ctx)
	if err != nil {
		return err
	}

	ledger.Executions = append(ledger.Executions, record)
	ledger.Aggregates = aggregate(ledger.Executions)
	return s.write(ledger)
}

func (s *FileLedgerStore) write(ledger *interfaces.Ledger) error {
	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write ledger %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace ledger %s: %w", s.path, err)
	}
	return nil
}

// aggregate recomputes running totals over the full execution list
func aggregate(executions []interfaces.ExecutionRecord) interfaces.LedgerAggregates {
	agg := interfaces.LedgerAggregates{
		TotalExecutions: len(executions),
		UpdatedAt:       time.Now().UTC(),
	}
	for _, record := range executions {
		agg.PhysicalComputeHours += record.PhysicalComputeHours
		agg.VirtualComputeHours += record.VirtualComputeHours
		agg.TotalCost += record.Cost
		agg.TotalSavedCost += record.SavedCost
	}
	return agg
}
