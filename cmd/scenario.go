// File: cmd/scenario.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxprobe/internal/config"
	"github.com/xkilldash9x/uxprobe/internal/observability"
	"github.com/xkilldash9x/uxprobe/internal/scenario"
)

// newScenarioCmd creates the `scenario` command group: declarative,
// deterministic multi-step tests.
func newScenarioCmd() *cobra.Command {
	scenarioCmd := &cobra.Command{
		Use:   "scenario",
		Short: "Runs or validates declarative test scenarios",
	}
	scenarioCmd.AddCommand(newScenarioRunCmd(), newScenarioValidateCmd())
	return scenarioCmd
}

func newScenarioValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validates a scenario file without launching a browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			cmd.Printf("scenario %q is valid: %d step(s), %d variable(s)\n",
				sc.ID, len(sc.Steps), len(sc.Variables))
			return nil
		},
	}
}

func newScenarioRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Runs a scenario file against its target",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to finalize config: %w", err)
			}

			// Validation happens entirely before the browser exists.
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			targetURL := viper.GetString("url")
			if targetURL == "" {
				targetURL = "about:blank"
			} else {
				targetURL = normalizeTargetURL(targetURL)
			}

			logger.Info("Running scenario",
				zap.String("scenario_id", sc.ID),
				zap.String("url", targetURL),
				zap.Int("steps", len(sc.Steps)),
			)

			manager, err := buildManager(ctx, cfg, nil, logger, viper.GetInt64("seed"))
			if err != nil {
				return err
			}

			s, err := manager.Start(ctx, targetURL, personaFor(viper.GetInt64("seed"), 0))
			if err != nil {
				return err
			}
			rep, err := manager.RunScenario(ctx, s, sc)
			if err != nil {
				return err
			}
			printSummary(cmd, rep)
			return nil
		},
	}

	runCmd.Flags().String("url", "", "start URL for the session (defaults to about:blank)")
	runCmd.Flags().Int64("seed", 0, "profile generation seed for a reproducible persona")
	return runCmd
}
