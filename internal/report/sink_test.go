// File: internal/report/sink_test.go
package report_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxprobe/api/schemas"
	"github.com/xkilldash9x/uxprobe/internal/config"
	"github.com/xkilldash9x/uxprobe/internal/report"
)

func TestFileSink_DeliverReport(t *testing.T) {
	dir := t.TempDir()
	sink, err := report.NewFileSink(config.ReportConfig{OutputDir: dir, DeliveryRetries: 2}, zap.NewNop())
	require.NoError(t, err)

	rep := &schemas.TestReport{
		ID:        "r-1",
		SessionID: "s-1",
		Total:     3, Successful: 2, Failed: 1,
	}
	require.NoError(t, sink.DeliverReport(context.Background(), rep))

	data, err := os.ReadFile(filepath.Join(dir, "report-s-1.json"))
	require.NoError(t, err)

	var decoded schemas.TestReport
	require.NoError(t, jsoniter.Unmarshal(data, &decoded))
	assert.Equal(t, "s-1", decoded.SessionID)
	assert.Equal(t, 3, decoded.Total)
}

func TestFileSink_DeliverAnalysis(t *testing.T) {
	dir := t.TempDir()
	sink, err := report.NewFileSink(config.ReportConfig{OutputDir: dir, DeliveryRetries: 2}, zap.NewNop())
	require.NoError(t, err)

	analysis := &schemas.PageAnalysis{URL: "https://x/", Timestamp: time.Now()}
	require.NoError(t, sink.DeliverAnalysis(context.Background(), "s-1", analysis))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "analysis-s-1-")
}

func TestFileSink_CreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	_, err := report.NewFileSink(config.ReportConfig{OutputDir: dir}, zap.NewNop())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileSink_RejectsMissingOutputDir(t *testing.T) {
	_, err := report.NewFileSink(config.ReportConfig{}, zap.NewNop())
	require.Error(t, err)
}

func TestDiscardSink(t *testing.T) {
	sink := report.NewDiscardSink()
	assert.NoError(t, sink.DeliverReport(context.Background(), &schemas.TestReport{}))
	assert.NoError(t, sink.DeliverAnalysis(context.Background(), "s", &schemas.PageAnalysis{}))
}
