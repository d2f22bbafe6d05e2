// Package bridge implements the subprocess protocol between Lakeshift and a
// transformation backend executable. A single JSON request envelope is passed
// as argv[1]; the executable replies with a single JSON object on stdout.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/lakeshift/lakeshift/internal/interfaces"
	"github.com/lakeshift/lakeshift/internal/logging"
)

// Static errors for bridge failure classification
var (
	// ErrCommandTimeout indicates the subprocess exceeded its deadline and was
	// terminated. Timeouts are surfaced as a distinguishable failure, never as
	// backend output.
	ErrCommandTimeout = errors.New("engine command timed out")
	// ErrProtocol indicates the executable replied with something other than a
	// single JSON object.
	ErrProtocol = errors.New("invalid engine bridge reply")
	// ErrSpawn indicates the subprocess could not be started
	ErrSpawn = errors.New("failed to start engine bridge process")
)

// Request is the versionless JSON envelope sent to the backend executable
type Request struct {
	Command     string                 `json:"command"`
	Args        []string               `json:"args"`
	Options     map[string]interface{} `json:"options"`
	ProjectPath string                 `json:"project_path"`
}

// Config holds the per-backend bridge settings
type Config struct {
	// Engine is the backend identifier, used in error messages and logs
	Engine string
	// Executable is the backend bridge binary or script
	Executable string
	// ProjectPath is the transformation project root
	ProjectPath string
	// Timeout bounds each call; zero means the 300s default
	Timeout time.Duration
	// KillGrace is the window between the graceful stop signal and the forced
	// kill; zero means the 5s default
	KillGrace time.Duration
}

// Bridge executes engine commands through the subprocess protocol
type Bridge struct {
	cfg    Config
	logger *logging.Logger
}

// New creates a bridge for one backend executable
func New(cfg Config) (*Bridge, error) {
	if cfg.Engine == "" {
		return nil, errors.New("engine name is required")
	}
	if cfg.Executable == "" {
		return nil, errors.New("bridge executable is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = 5 * time.Second
	}
	return &Bridge{
		cfg:    cfg,
		logger: logging.NewLogger("engine-bridge"),
	}, nil
}

// Execute sends one request envelope to the backend executable and decodes
// its reply. Expected command failures come back as Success=false; returned
// errors are reserved for spawn, protocol, and timeout failures.
func (b *Bridge) Execute(ctx context.Context, req Request) (*interfaces.EngineResult, error) {
	if req.ProjectPath == "" {
		req.ProjectPath = b.cfg.ProjectPath
	}
	if req.Args == nil {
		req.Args = []string{}
	}
	if req.Options == nil {
		req.Options = map[string]interface{}{}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("engine %s: failed to encode request for command %q: %w", b.cfg.Engine, req.Command, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, b.cfg.Executable, string(payload))
	cmd.Dir = req.ProjectPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Graceful stop first; CommandContext falls back to Kill after WaitDelay.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = b.cfg.KillGrace

	b.logger.Debugf("engine=%s command=%s args=%v", b.cfg.Engine, req.Command, req.Args)

	runErr := cmd.Run()

	if callCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("engine %s command %q after %s: %w",
			b.cfg.Engine, req.Command, b.cfg.Timeout, ErrCommandTimeout)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("engine %s command %q: %w: %v", b.cfg.Engine, req.Command, ErrSpawn, runErr)
		}
		// Non-zero exit is fine as long as the executable still produced a
		// valid JSON reply describing the failure.
	}

	result, err := decodeReply(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("engine %s command %q: %w: stdout=%q stderr=%q",
			b.cfg.Engine, req.Command, ErrProtocol, truncate(stdout.String(), 512), truncate(stderr.String(), 512))
	}

	if result.Stderr == "" {
		result.Stderr = stderr.String()
	}
	return result, nil
}

// decodeReply parses the single JSON reply object from the bridge stdout
func decodeReply(out []byte) (*interfaces.EngineResult, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, errors.New("empty reply")
	}
	var result interfaces.EngineResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, fmt.Errorf("reply is not a JSON object: %w", err)
	}
	return &result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
