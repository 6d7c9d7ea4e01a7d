package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/muster/internal/logger"
)

func TestNewSystemLogger_WritesJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	l, closer, err := logger.NewSystemLogger(dir, slog.LevelInfo, nil)
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("dispatch completed", "request_id", "r1", "sent", 3)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "system.log"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "dispatch completed", rec["msg"])
	assert.Equal(t, "r1", rec["request_id"])
	assert.EqualValues(t, 3, rec["sent"])
}

func TestNewSystemLogger_Echo(t *testing.T) {
	var buf bytes.Buffer
	l, closer, err := logger.NewSystemLogger(t.TempDir(), slog.LevelDebug, &buf)
	require.NoError(t, err)
	defer closer.Close()

	l.Debug("claim skipped")
	assert.Contains(t, buf.String(), `"msg":"claim skipped"`)
}

func TestNewSystemLogger_BadDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o600))

	_, _, err := logger.NewSystemLogger(filepath.Join(f, "logs"), slog.LevelInfo, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating log directory")
}
