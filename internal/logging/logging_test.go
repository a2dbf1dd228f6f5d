package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileLogger creates a logger writing to a temp file and returns the
// logger plus a reader for what it wrote.
func fileLogger(t *testing.T, cfg Config) (*Logger, func() string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	cfg.Output = path

	logger, err := New(cfg)
	require.NoError(t, err)

	return logger, func() string {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		return string(data)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, LevelInfo, cfg.Level)
	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestNewWithStandardOutputs(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", ""} {
		logger, err := New(Config{Level: LevelInfo, Format: FormatText, Output: output})
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}

func TestLevelFiltering(t *testing.T) {
	logger, read := fileLogger(t, Config{Level: LevelWarn, Format: FormatText})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := read()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	logger, read := fileLogger(t, Config{Level: "nonsense", Format: FormatText})

	logger.Debug("hidden")
	logger.Info("visible")

	output := read()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, "visible")
}

func TestJSONFormat(t *testing.T) {
	logger, read := fileLogger(t, Config{Level: LevelInfo, Format: FormatJSON})

	logger.WithScanID("scan-1").WithTarget("example.com").Info("Starting scan", "port_count", 100)

	line := strings.TrimSpace(read())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))

	assert.Equal(t, "Starting scan", entry["msg"])
	assert.Equal(t, "scan-1", entry["scan_id"])
	assert.Equal(t, "example.com", entry["target"])
	assert.Equal(t, float64(100), entry["port_count"])
}

func TestFieldHelpers(t *testing.T) {
	logger, read := fileLogger(t, Config{Level: LevelInfo, Format: FormatText})

	logger.
		WithComponent("scanner").
		WithPort(443).
		WithError(errors.New("connection reset")).
		Info("probe finished")

	output := read()
	assert.Contains(t, output, "component=scanner")
	assert.Contains(t, output, "port=443")
	assert.Contains(t, output, "connection reset")
}

func TestScanHelpers(t *testing.T) {
	logger, read := fileLogger(t, Config{Level: LevelInfo, Format: FormatText})

	logger.InfoScan("scan started", "10.0.0.1", "ports", "1-1024")
	logger.ErrorScan("scan failed", "10.0.0.1", errors.New("network unreachable"))

	output := read()
	assert.Contains(t, output, "scan started")
	assert.Contains(t, output, "target=10.0.0.1")
	assert.Contains(t, output, "network unreachable")
}

func TestSetDefault(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	logger, read := fileLogger(t, Config{Level: LevelInfo, Format: FormatText})
	SetDefault(logger)

	Info("through the default logger")

	assert.Contains(t, read(), "through the default logger")
	assert.Same(t, logger, Default())
}

func TestFileOutputCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.log")
	logger, err := New(Config{Level: LevelInfo, Format: FormatText, Output: path})
	require.NoError(t, err)

	logger.Info("hello")

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
