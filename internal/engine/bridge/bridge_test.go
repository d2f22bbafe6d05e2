package bridge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script standing in for a backend
// bridge executable.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-bridge")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o700))
	return path
}

func newTestBridge(t *testing.T, executable string, timeout time.Duration) *Bridge {
	t.Helper()
	b, err := New(Config{
		Engine:      "sqlmesh",
		Executable:  executable,
		ProjectPath: t.TempDir(),
		Timeout:     timeout,
		KillGrace:   time.Second,
	})
	require.NoError(t, err)
	return b
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Executable: "x"})
	require.Error(t, err)

	_, err = New(Config{Engine: "sqlmesh"})
	require.Error(t, err)
}

func TestExecute_PassesEnvelopeAsArgv(t *testing.T) {
	t.Parallel()

	captured := filepath.Join(t.TempDir(), "request.json")
	script := writeScript(t, `printf '%s' "$1" > `+captured+`
printf '{"success": true, "stdout": "3 models tested", "returncode": 0}'
`)
	b := newTestBridge(t, script, 10*time.Second)

	result, err := b.Execute(context.Background(), Request{
		Command: "test",
		Args:    []string{"marts.orders"},
		Options: map[string]interface{}{"environment": "staging"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "3 models tested", result.Stdout)
	assert.Equal(t, 0, result.ReturnCode)

	raw, err := os.ReadFile(captured)
	require.NoError(t, err)

	var req Request
	require.NoError(t, json.Unmarshal(raw, &req))
	assert.Equal(t, "test", req.Command)
	assert.Equal(t, []string{"marts.orders"}, req.Args)
	assert.Equal(t, map[string]interface{}{"environment": "staging"}, req.Options)
	assert.NotEmpty(t, req.ProjectPath, "project path defaults from bridge config")
}

func TestExecute_FailureReplyIsNotAnError(t *testing.T) {
	t.Parallel()

	// A non-zero exit with a valid JSON reply is an expected command failure,
	// not a bridge error.
	script := writeScript(t, `printf '{"success": false, "stdout": "", "stderr": "2 audits failed", "returncode": 1}'
exit 1
`)
	b := newTestBridge(t, script, 10*time.Second)

	result, err := b.Execute(context.Background(), Request{Command: "audit"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "2 audits failed", result.Stderr)
	assert.Equal(t, 1, result.ReturnCode)
}

func TestExecute_NonJSONReplyIsProtocolError(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `echo "Traceback (most recent call last):"
exit 1
`)
	b := newTestBridge(t, script, 10*time.Second)

	_, err := b.Execute(context.Background(), Request{Command: "status"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Contains(t, err.Error(), "Traceback")
}

func TestExecute_EmptyReplyIsProtocolError(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `exit 0`)
	b := newTestBridge(t, script, 10*time.Second)

	_, err := b.Execute(context.Background(), Request{Command: "status"})
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestExecute_Timeout(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `sleep 30
printf '{"success": true}'
`)
	b := newTestBridge(t, script, 200*time.Millisecond)

	start := time.Now()
	_, err := b.Execute(context.Background(), Request{Command: "plan"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandTimeout)
	assert.Less(t, time.Since(start), 10*time.Second, "timeout must not wait for the full sleep")
}

func TestExecute_MissingExecutableIsSpawnError(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, filepath.Join(t.TempDir(), "does-not-exist"), time.Second)

	_, err := b.Execute(context.Background(), Request{Command: "status"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpawn)
}

func TestExecute_StderrBackfilledFromProcess(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `echo "warning: deprecated model syntax" >&2
printf '{"success": true, "stdout": "ok"}'
`)
	b := newTestBridge(t, script, 10*time.Second)

	result, err := b.Execute(context.Background(), Request{Command: "run"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Stderr, "deprecated model syntax")
}
