// vigil is the deterministic risk-inference engine for a personal
// health-event tracker: allergen/interaction verdicts, temporal insight
// mining, decayed vigilance scoring and the knowledge-base replay gate.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vigil/internal/config"
	"vigil/internal/logging"
)

var (
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "vigil - deterministic health-event risk inference",
	Long: `vigil classifies logged health events for allergen and interaction
risk, mines the event timeline for temporal patterns, aggregates recent
verdicts into a decayed vigilance score and gates knowledge-base edits
through a replay regression harness.

Same inputs plus same knowledge-base version always yield the same output.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = logging.New(cfg.Logging)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".vigil/config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(vigilanceCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(auditCmd)
}

// printJSON writes the result the way every subcommand reports: stable,
// indented JSON on stdout.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
