// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/uxprobe/internal/config"
)

// testSyncer is a zapcore.WriteSyncer backed by a buffer.
type testSyncer struct {
	bytes.Buffer
}

func (t *testSyncer) Sync() error { return nil }

func TestInitializeAndGetLogger(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	buf := &testSyncer{}
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "uxprobe-test",
	}, buf)

	logger := GetLogger()
	require.NotNil(t, logger)

	logger.Info("hello from test")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "hello from test")
	assert.Contains(t, out, "uxprobe-test")
}

func TestInitializeRunsOnce(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	first := &testSyncer{}
	second := &testSyncer{}

	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "a"}, first)
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "b"}, second)

	GetLogger().Info("only once")
	_ = GetLogger().Sync()

	assert.Contains(t, first.String(), "only once")
	assert.Empty(t, second.String(), "second Initialize must be a no-op")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	buf := &testSyncer{}
	Initialize(config.LoggerConfig{Level: "not-a-level", Format: "json", ServiceName: "x"}, buf)

	logger := GetLogger()
	logger.Debug("should be filtered")
	logger.Info("should appear")
	_ = logger.Sync()

	out := buf.String()
	assert.NotContains(t, out, "should be filtered")
	assert.Contains(t, out, "should appear")
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	// Must not panic and must return a usable logger.
	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Info("fallback logger works")
}

func TestColorizedLevelEncoder(t *testing.T) {
	enc := newColorizedLevelEncoder(config.ColorConfig{
		Info: "green", Error: "red",
	})

	var captured []string
	appender := &stubArrayEncoder{append: func(s string) { captured = append(captured, s) }}

	enc(zapcore.InfoLevel, appender)
	enc(zapcore.ErrorLevel, appender)

	require.Len(t, captured, 2)
	assert.True(t, strings.Contains(captured[0], "INFO"))
	assert.True(t, strings.Contains(captured[0], colorGreen))
	assert.True(t, strings.Contains(captured[1], colorRed))
}

// stubArrayEncoder implements just enough of PrimitiveArrayEncoder for tests.
type stubArrayEncoder struct {
	zapcore.PrimitiveArrayEncoder
	append func(string)
}

func (s *stubArrayEncoder) AppendString(v string) { s.append(v) }
