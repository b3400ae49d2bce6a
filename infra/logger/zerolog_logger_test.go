package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Infow("info", map[string]any{"target": 0.5})
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLoggerTo(&buf, "json", "sweep")
	l.Infow("row done", map[string]any{"target": 0.4, "status": "optimal"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sweep", entry["component"])
	assert.Equal(t, "row done", entry["message"])
	assert.Equal(t, 0.4, entry["target"])
	assert.Equal(t, "optimal", entry["status"])
}

func TestSetupRejectsBadConfig(t *testing.T) {
	assert.Error(t, Setup(Config{Level: "loud"}))
	assert.Error(t, Setup(Config{Level: "info", Format: "xml"}))
}

func TestSetupWritesToFile(t *testing.T) {
	defer func() {
		mu.Lock()
		output, format = os.Stdout, ""
		mu.Unlock()
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}()
	path := filepath.Join(t.TempDir(), "fleetplan.log")
	require.NoError(t, Setup(Config{Level: "warn", Format: "json", File: path}))
	l := New("cli")
	l.Infof("dropped")
	l.Warnf("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}
