package orchestrator

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-uuid"
)

// NewDeploymentID generates a unique deployment identifier. The timestamp
// prefix keeps IDs sortable in logs; the random suffix guarantees uniqueness
// across concurrent creations within the same second.
func NewDeploymentID() string {
	suffix, err := uuid.GenerateUUID()
	if err != nil {
		// crypto/rand failure; fall back to nanosecond entropy
		suffix = fmt.Sprintf("%08x", time.Now().UnixNano())
	}
	return fmt.Sprintf("deploy-%s-%s", time.Now().UTC().Format("20060102-150405"), suffix[:8])
}
