package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesFiles(t *testing.T) {
	dir := t.TempDir()
	appLog := filepath.Join(dir, "app.log")
	errLog := filepath.Join(dir, "nested", "error.log")

	log, err := NewLogger(
		WithLevel("debug"),
		WithEncoding("json"),
		WithOutputPaths([]string{appLog}),
		WithErrorPaths([]string{errLog}),
	)
	require.NoError(t, err)

	log.Named("scan").Info("started", ScanID("s-1"))
	log.Error("boom", String("reason", "test"))
	require.NoError(t, log.Sync())

	app, err := os.ReadFile(appLog)
	require.NoError(t, err)
	assert.Contains(t, string(app), `"scanId":"s-1"`)
	assert.Contains(t, string(app), `"logger":"scan"`)

	errs, err := os.ReadFile(errLog)
	require.NoError(t, err)
	assert.Contains(t, string(errs), "boom")
	assert.NotContains(t, string(errs), "started")
}

func TestNewLoggerInitialFieldsAndConsole(t *testing.T) {
	out := filepath.Join(t.TempDir(), "worker.log")
	log, err := NewLogger(
		WithEncoding("console"),
		WithOutputPaths([]string{out}),
		WithErrorPaths(nil),
		WithInitialFields(map[string]interface{}{"component": "worker"}),
	)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("ready")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ready")
	assert.Contains(t, string(data), `"component": "worker"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := NewLogger(WithLevel("loud"), WithOutputPaths([]string{"stdout"}), WithErrorPaths(nil))
	assert.Error(t, err)
}

func TestTestLoggerSharesEntries(t *testing.T) {
	root := NewTestLogger()
	child := root.Named("worker").With(String("k", "v"))

	child.Warn("slow")
	root.Info("hello")

	entries := root.GetEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "worker", entries[0].Logger)
	assert.Len(t, entries[0].Fields, 1)
	assert.True(t, root.HasMessage("INFO", "hello"))
	assert.NoError(t, child.Sync())

	root.Clear()
	assert.Empty(t, root.GetEntries())
}

func TestContextLogger(t *testing.T) {
	base := NewTestLogger()
	cl := NewContextLogger(base)

	ctx := WithScanID(WithRequestID(context.Background(), "req-1"), "scan-9")
	cl.FromContext(ctx).Info("with ids")
	cl.FromContext(context.Background()).Info("plain")

	entries := base.GetEntries()
	require.Len(t, entries, 2)
	assert.Len(t, entries[0].Fields, 2)
	assert.Empty(t, entries[1].Fields)
	assert.Equal(t, "req-1", RequestID(ctx))
}
