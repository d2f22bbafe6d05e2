package state

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLease guards environments within a single process. Acquire fails fast
// when another deployment holds the environment; there is no wait queue.
type MemoryLease struct {
	mu      sync.Mutex
	holders map[string]string // environment -> deployment ID
}

// NewMemoryLease creates an in-process environment lease
func NewMemoryLease() *MemoryLease {
	return &MemoryLease{holders: make(map[string]string)}
}

// Acquire takes the lease for an environment; the returned function releases
// it. Release is idempotent.
func (l *MemoryLease) Acquire(_ context.Context, environment, deploymentID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if holder, held := l.holders[environment]; held {
		return nil, fmt.Errorf("held by deployment %s", holder)
	}
	l.holders[environment] = deploymentID

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.holders[environment] == deploymentID {
				delete(l.holders, environment)
			}
		})
	}
	return release, nil
}
