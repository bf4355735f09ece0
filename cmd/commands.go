// File: cmd/commands.go
package cmd

func init() {
	rootCmd.AddCommand(newRunCmd(), newScenarioCmd())
}
