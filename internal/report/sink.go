// File: internal/report/sink.go
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxprobe/api/schemas"
	"github.com/xkilldash9x/uxprobe/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileSink delivers reports and intermediate analyses as JSON files in the
// configured output directory. Writes are retried with exponential backoff;
// delivery failure is logged but never fails the session that produced the
// evidence.
type FileSink struct {
	cfg    config.ReportConfig
	logger *zap.Logger
}

// NewFileSink creates the sink and its output directory.
func NewFileSink(cfg config.ReportConfig, logger *zap.Logger) (*FileSink, error) {
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("report output directory not configured")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	return &FileSink{cfg: cfg, logger: logger.Named("report")}, nil
}

// DeliverReport writes the final report for a session.
func (s *FileSink) DeliverReport(ctx context.Context, rep *schemas.TestReport) error {
	path := filepath.Join(s.cfg.OutputDir, fmt.Sprintf("report-%s.json", rep.SessionID))
	if err := s.writeJSON(ctx, path, rep); err != nil {
		return fmt.Errorf("delivering report for session %s: %w", rep.SessionID, err)
	}
	s.logger.Info("Report delivered",
		zap.String("session_id", rep.SessionID),
		zap.String("path", path),
		zap.Int("issues", len(rep.Issues)),
	)
	return nil
}

// DeliverAnalysis pushes an intermediate page snapshot. Snapshots are
// timestamped per file so repeated analyses of one session never clobber
// each other.
func (s *FileSink) DeliverAnalysis(ctx context.Context, sessionID string, analysis *schemas.PageAnalysis) error {
	path := filepath.Join(s.cfg.OutputDir,
		fmt.Sprintf("analysis-%s-%d.json", sessionID, analysis.Timestamp.UnixMilli()))
	if err := s.writeJSON(ctx, path, analysis); err != nil {
		return fmt.Errorf("delivering analysis for session %s: %w", sessionID, err)
	}
	return nil
}

// writeJSON marshals and writes atomically (temp file plus rename), retrying
// transient filesystem errors up to the configured budget.
func (s *FileSink) writeJSON(ctx context.Context, path string, payload interface{}) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.cfg.DeliveryRetries)), ctx)

	return backoff.Retry(func() error {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return err
		}
		return os.Rename(tmp, path)
	}, policy)
}

// discardSink swallows deliveries; used when no backend is configured.
type discardSink struct{}

// NewDiscardSink returns a sink that accepts and drops everything.
func NewDiscardSink() schemas.ReportSink { return discardSink{} }

func (discardSink) DeliverReport(context.Context, *schemas.TestReport) error { return nil }

func (discardSink) DeliverAnalysis(context.Context, string, *schemas.PageAnalysis) error {
	return nil
}
