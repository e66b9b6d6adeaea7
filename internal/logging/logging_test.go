package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFileOutputWritesRotatedFile(t *testing.T) {
	Init()
	path := filepath.Join(t.TempDir(), "logs", "carwatch.log")

	closeFn, err := SetFileOutput(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	ForService("test-service").Info("pipeline started", "workers", 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"test-service"`)
	assert.Contains(t, string(data), `"msg":"pipeline started"`)
}

func TestSetLevelFiltersRecords(t *testing.T) {
	Init()
	path := filepath.Join(t.TempDir(), "carwatch.log")

	closeFn, err := SetFileOutput(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	SetLevel(slog.LevelWarn)
	logger := ForService("filter")
	logger.Info("suppressed")
	logger.Warn("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "suppressed")
	assert.Contains(t, string(data), "kept")
}
