package observability

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/playmatatu/bumper/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitializeWritesJSON(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{
		ServiceName: "bumper-test",
		Level:       "debug",
		Format:      "json",
		LogFile:     filepath.Join(t.TempDir(), "bumper.log"),
		MaxSize:     1,
	}, zapcore.AddSync(&buf))

	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Info("match created", zap.String("match_id", "m1"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, `"msg":"match created"`)
	assert.Contains(t, out, `"match_id":"m1"`)
	assert.Contains(t, out, `"logger":"bumper-test"`)
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{ServiceName: "bumper-test", Level: "loud", Format: "json"}, zapcore.AddSync(&buf))

	logger := GetLogger()
	logger.Debug("hidden")
	logger.Info("shown")
	_ = logger.Sync()

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	assert.NotNil(t, GetLogger())
}
