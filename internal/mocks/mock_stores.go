package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

// MockLedgerStore implements interfaces.LedgerStore in memory
type MockLedgerStore struct {
	mu         sync.Mutex
	ledger     interfaces.Ledger
	failLoad   error
	failAppend error
}

// NewMockLedgerStore creates an empty in-memory ledger store
func NewMockLedgerStore() *MockLedgerStore {
	return &MockLedgerStore{
		ledger: interfaces.Ledger{CreatedAt: time.Now().UTC()},
	}
}

// SetLoadError makes Load fail
func (m *MockLedgerStore) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoad = err
}

// SetAppendError makes Append fail
func (m *MockLedgerStore) SetAppendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAppend = err
}

// Seed adds records directly, bypassing error configuration
func (m *MockLedgerStore) Seed(records ...interfaces.ExecutionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger.Executions = append(m.ledger.Executions, records...)
}

// Load implements interfaces.LedgerStore
func (m *MockLedgerStore) Load(_ context.Context) (*interfaces.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad != nil {
		return nil, m.failLoad
	}
	copied := m.ledger
	copied.Executions = make([]interfaces.ExecutionRecord, len(m.ledger.Executions))
	copy(copied.Executions, m.ledger.Executions)
	return &copied, nil
}

// Append implements interfaces.LedgerStore
func (m *MockLedgerStore) Append(_ context.Context, record interfaces.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		return m.failAppend
	}
	m.ledger.Executions = append(m.ledger.Executions, record)
	return nil
}

// Records returns a copy of the appended records
func (m *MockLedgerStore) Records() []interfaces.ExecutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]interfaces.ExecutionRecord, len(m.ledger.Executions))
	copy(records, m.ledger.Executions)
	return records
}

// MockHistoryStore implements interfaces.HistoryStore in memory
type MockHistoryStore struct {
	mu      sync.Mutex
	records []*interfaces.Deployment
	failErr error
}

// NewMockHistoryStore creates an empty in-memory history store
func NewMockHistoryStore() *MockHistoryStore {
	return &MockHistoryStore{}
}

// SetError makes Append and Recent fail
func (m *MockHistoryStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Append implements interfaces.HistoryStore
func (m *MockHistoryStore) Append(_ context.Context, deployment *interfaces.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.records = append(m.records, deployment)
	return nil
}

// Recent implements interfaces.HistoryStore, newest first
func (m *MockHistoryStore) Recent(_ context.Context, limit int) ([]*interfaces.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	if limit <= 0 {
		limit = interfaces.DefaultHistoryLimit
	}
	recent := make([]*interfaces.Deployment, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, m.records[i])
	}
	return recent, nil
}

// Appended returns the records in append order
func (m *MockHistoryStore) Appended() []*interfaces.Deployment {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]*interfaces.Deployment, len(m.records))
	copy(records, m.records)
	return records
}

// MockLease implements interfaces.EnvironmentLease with a configurable holder
type MockLease struct {
	mu       sync.Mutex
	held     map[string]string
	acquires int
	releases int
}

// NewMockLease creates an unheld lease
func NewMockLease() *MockLease {
	return &MockLease{held: make(map[string]string)}
}

// Hold pre-occupies an environment so the next Acquire conflicts
func (m *MockLease) Hold(environment, deploymentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[environment] = deploymentID
}

// Acquire implements interfaces.EnvironmentLease
func (m *MockLease) Acquire(_ context.Context, environment, deploymentID string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if holder, ok := m.held[environment]; ok {
		return nil, fmt.Errorf("lease for environment %s is held by deployment %s", environment, holder)
	}
	m.held[environment] = deploymentID
	m.acquires++

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.held, environment)
			m.releases++
		})
	}, nil
}

// Counts returns the acquire and release totals
func (m *MockLease) Counts() (acquires, releases int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquires, m.releases
}
