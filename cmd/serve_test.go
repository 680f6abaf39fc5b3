package cmd

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tickeasy/internal/daemon"
	"github.com/joescharf/tickeasy/internal/metrics"
)

func TestPidFile_Path(t *testing.T) {
	dir := testEnv(t)

	pf := pidFile()
	expected := filepath.Join(dir, "tickeasy-serve.pid")
	assert.Equal(t, expected, pf.Path)
}

func TestServeLogPath(t *testing.T) {
	dir := testEnv(t)

	logPath := serveLogPath()
	expected := filepath.Join(dir, "tickeasy-serve.log")
	assert.Equal(t, expected, logPath)
}

func TestServeStatusRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No state file exists, so status should show "not running" without error.
	err := serveStatusRun()
	assert.NoError(t, err)
}

func TestServeStatusRun_RemovesStaleFile(t *testing.T) {
	testEnv(t)
	pf := pidFile()
	require.NoError(t, pf.Write(daemon.State{PID: 999999}))

	require.NoError(t, serveStatusRun())

	_, err := pf.Read()
	assert.Error(t, err, "stale state file should be removed")
}

func TestServeStatusRun_Running(t *testing.T) {
	testEnv(t)
	out, _ := captureUI(t)
	pf := pidFile()
	require.NoError(t, pf.WriteCurrent(":18080"))

	require.NoError(t, serveStatusRun())
	assert.Contains(t, out.String(), "running")
	assert.Contains(t, out.String(), "http://localhost:18080")
}

func TestServeStopRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No state file exists, so stop should return an error.
	err := serveStopRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestServeStartRun_AlreadyRunning(t *testing.T) {
	testEnv(t)

	// Record the current process (which is alive) as the server.
	pf := pidFile()
	require.NoError(t, pf.WriteCurrent(":8080"))
	t.Cleanup(func() { _ = pf.Remove() })

	err := serveStartRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestServeRun_IgnoresDeadServer(t *testing.T) {
	testEnv(t)
	pf := pidFile()
	require.NoError(t, pf.Write(daemon.State{PID: 999999}))
	dryRun = true
	ui.DryRun = true
	t.Cleanup(func() { dryRun = false })

	// A dead pid does not block a foreground start.
	assert.NoError(t, serveRun())
}

func TestServeAddr(t *testing.T) {
	testEnv(t)
	assert.Equal(t, ":8080", serveAddr())
}

func TestNewConsoleHandler_Healthz(t *testing.T) {
	testEnv(t)

	h, err := newConsoleHandler(metrics.New())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
