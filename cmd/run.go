// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/uxprobe/api/schemas"
	"github.com/xkilldash9x/uxprobe/internal/analyzer"
	"github.com/xkilldash9x/uxprobe/internal/browser"
	"github.com/xkilldash9x/uxprobe/internal/config"
	"github.com/xkilldash9x/uxprobe/internal/executor"
	"github.com/xkilldash9x/uxprobe/internal/instruction"
	"github.com/xkilldash9x/uxprobe/internal/observability"
	"github.com/xkilldash9x/uxprobe/internal/profile"
	"github.com/xkilldash9x/uxprobe/internal/report"
	"github.com/xkilldash9x/uxprobe/internal/session"
)

// newRunCmd creates the `run` command: interactive, LLM-guided sessions.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [url]",
		Short: "Runs interactive UX testing sessions against a target URL",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("session.max_actions", cmd.Flags().Lookup("max-actions")); err != nil {
				return err
			}
			if err := viper.BindPFlag("session.concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to finalize config: %w", err)
			}

			targetURL := normalizeTargetURL(args[0])
			sessions := viper.GetInt("sessions")
			if sessions < 1 {
				sessions = 1
			}
			seed := viper.GetInt64("seed")

			logger.Info("Starting interactive run",
				zap.String("url", targetURL),
				zap.Int("sessions", sessions),
				zap.Int("max_actions", cfg.Session.MaxActions),
			)

			source, err := instruction.NewGeminiSource(cfg.Agent.LLM, logger)
			if err != nil {
				return fmt.Errorf("failed to create instruction source: %w", err)
			}
			defer source.Close()

			manager, err := buildManager(ctx, cfg, source, logger, seed)
			if err != nil {
				return err
			}

			g, runCtx := errgroup.WithContext(ctx)
			for i := 0; i < sessions; i++ {
				i := i
				g.Go(func() error {
					persona := personaFor(seed, i)
					s, err := manager.Start(runCtx, targetURL, persona)
					if err != nil {
						return fmt.Errorf("session %d: %w", i, err)
					}
					rep, err := manager.RunInteractive(runCtx, s, cfg.Session.MaxActions)
					if err != nil {
						return fmt.Errorf("session %d: %w", i, err)
					}
					printSummary(cmd, rep)
					return nil
				})
			}
			return g.Wait()
		},
	}

	runCmd.Flags().Int("max-actions", 0, "maximum actions per session (0 uses config)")
	runCmd.Flags().Int("sessions", 1, "number of parallel sessions to run")
	runCmd.Flags().Int("concurrency", 0, "maximum sessions holding a browser at once (0 uses config)")
	runCmd.Flags().Int64("seed", 0, "profile generation seed for reproducible personas (0 means random)")
	return runCmd
}

// buildManager wires the full component stack from the resolved config.
func buildManager(ctx context.Context, cfg *config.Config, source schemas.InstructionSource, logger *zap.Logger, seed int64) (*session.Manager, error) {
	metrics := observability.NewMetrics()
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.ListenAddr, logger); err != nil {
				logger.Warn("Metrics listener stopped", zap.Error(err))
			}
		}()
	}

	sink, err := report.NewFileSink(cfg.Report, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create report sink: %w", err)
	}

	pageAnalyzer := analyzer.New(cfg.Analyzer, logger)
	exec := executor.New(cfg.Session, cfg.Browser, pageAnalyzer, logger, metrics, seed)

	manager := session.NewManager(cfg.Session, session.Deps{
		Factory: func(ctx context.Context, persona schemas.HumanProfile) (schemas.BrowserAdapter, error) {
			return browser.New(ctx, cfg.Browser, persona, logger)
		},
		Source:   source,
		Analyzer: pageAnalyzer,
		Executor: exec,
		Sink:     sink,
		Logger:   logger,
		Metrics:  metrics,
		Environment: map[string]string{
			"agent_version": Version,
			"headless":      strconv.FormatBool(cfg.Browser.Headless),
		},
	})
	return manager, nil
}

// personaFor derives a stable persona per session index when a seed is given.
func personaFor(seed int64, index int) *schemas.HumanProfile {
	if seed == 0 {
		return nil
	}
	p := profile.GenerateSeeded(seed + int64(index))
	return &p
}

func normalizeTargetURL(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

func printSummary(cmd *cobra.Command, rep *schemas.TestReport) {
	cmd.Printf("session %s: %d/%d actions succeeded, %d issue(s), %d recommendation(s)\n",
		rep.SessionID, rep.Successful, rep.Total, len(rep.Issues), len(rep.Recommendations))
	for _, issue := range rep.Issues {
		cmd.Printf("  [%s/%s] %s\n", issue.Category, issue.Severity, issue.Description)
	}
}
