package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleLoggerLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC).Module("registry")

	log.Debug("hidden")
	log.Info("source added", String("device", "USB Mic"), Int("index", 2))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "source added")
	assert.Contains(t, out, "module=registry")
	assert.Contains(t, out, `device="USB Mic"`)
	assert.Contains(t, out, "index=2")
	assert.NotContains(t, out, "time=")
}

func TestSubModuleAndWith(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelTrace, time.UTC).
		Module("controller").
		Module("fire").
		With(String("source", "manual"))

	log.Trace("pulse", Duration("duration", 500*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "module=controller.fire")
	assert.Contains(t, out, "source=manual")
	assert.Contains(t, out, "duration=500ms")
}

func TestSensitiveFieldsRedacted(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC)

	log.Info("config loaded",
		String("accesskey", "abcdefghijklmnop"),
		String("keyword", "jarvis"),
		String("detail", "access_key=abcdefghijklmnop"),
		String("dsn_host", "https://0123456789abcdef0123@o0.ingest.sentry.io/1"))

	out := buf.String()
	assert.NotContains(t, out, "abcdefghijklmnop")
	assert.NotContains(t, out, "0123456789abcdef0123")
	assert.Contains(t, out, "keyword=jarvis")
}

func TestRedactSensitiveData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "device USB Mic opened", "device USB Mic opened"},
		{"access key", "accesskey: s3cr3tvalue", "accesskey: [REDACTED]"},
		{"dsn", "https://0123456789abcdef@sentry.example/2", "https://[REDACTED]@sentry.example/2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RedactSensitiveData(tt.input))
		})
	}
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "wakefire.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path},
		ModuleLevels: map[string]string{"audio": "warn"},
	})
	require.NoError(t, err)

	cl.Module("controller").Debug("fire requested", Bool("manual", true))
	cl.Module("audio").Info("suppressed")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "fire requested", rec["msg"])
	assert.Equal(t, "controller", rec["module"])
	assert.Equal(t, true, rec["manual"])
	_, err = time.Parse(time.RFC3339, rec["time"].(string))
	assert.NoError(t, err)
}

func TestNewCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestNilModuleLoggerIsSafe(t *testing.T) {
	t.Parallel()

	var m *moduleLogger
	assert.NotPanics(t, func() {
		m.Info("ignored")
		m.Error("ignored")
		m.Warn("ignored", String("k", "v"))
	})
}
