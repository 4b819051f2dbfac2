package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(config.AppConfig{Name: "svc"}, config.LogConfig{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNewLogger_DuplicatesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checkout.log")

	logger, err := NewLogger(
		config.AppConfig{Name: "minishop-checkout", Environment: "test"},
		config.LogConfig{Level: "info", File: path},
	)
	require.NoError(t, err)

	WithTrace(logger, "", SystemSpanID).Info("http_server_start")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(raw))
	require.NotEmpty(t, line)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "http_server_start", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "minishop-checkout", entry["service"])
	assert.Equal(t, "test", entry["env"])
	assert.Equal(t, "unknown", entry["trace_id"])
	assert.Equal(t, SystemSpanID, entry["span_id"])
	assert.Contains(t, entry, "ts")
}
