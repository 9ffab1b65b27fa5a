package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type testLogConfig struct {
	level, output, file string
}

func (c testLogConfig) GetLevel() string  { return c.level }
func (c testLogConfig) GetOutput() string { return c.output }
func (c testLogConfig) GetFile() string   { return c.file }

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.FatalLevel, ParseLevel("fatal"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestInitWritesToRotatedFile(t *testing.T) {
	previous := defaultLogger.Load()
	t.Cleanup(func() { defaultLogger.Store(previous) })

	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Init(testLogConfig{level: "info", output: "file", file: path}))

	Info("project %d funded", 7)
	Debug("dropped at info level")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "project 7 funded")
	assert.NotContains(t, string(data), "dropped at info level")
}

func TestInitRejectsUnknownOutput(t *testing.T) {
	err := Init(testLogConfig{level: "info", output: "syslog"})
	assert.Error(t, err)
}
