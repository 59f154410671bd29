package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vigil/internal/registry"
	"vigil/internal/replay"
	"vigil/internal/taxonomy"
)

var (
	replayBaselinePath  string
	replayCandidatePath string
	replayScenariosPath string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay the scenario suite against a candidate knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		baselinePath := replayBaselinePath
		if baselinePath == "" {
			baselinePath = cfg.KnowledgeBase.Path
		}

		baseline, err := taxonomy.Load(baselinePath)
		if err != nil {
			return fmt.Errorf("baseline knowledge base: %w", err)
		}
		candidate, err := taxonomy.Load(replayCandidatePath)
		if err != nil {
			return fmt.Errorf("candidate knowledge base: %w", err)
		}
		suite, err := replay.LoadSuite(replayScenariosPath)
		if err != nil {
			return err
		}

		gate := replay.NewGate(baseline, candidate, registry.New())
		report, err := gate.Run(cmd.Context(), suite)
		if err != nil {
			return err
		}

		logger.Info("replay gate finished",
			zap.String("reportId", report.ReportID),
			zap.String("baselineVersion", report.BaselineVersion),
			zap.String("candidateVersion", report.CandidateVersion),
			zap.Int("scenarios", len(report.Scenarios)),
			zap.Bool("passed", report.Passed))

		if err := printJSON(report); err != nil {
			return err
		}
		if !report.Passed {
			return fmt.Errorf("replay gate failed: candidate %s rejected", report.CandidateVersion)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayBaselinePath, "baseline", "", "baseline knowledge base (defaults to the configured one)")
	replayCmd.Flags().StringVar(&replayCandidatePath, "candidate", "", "candidate knowledge base (required)")
	replayCmd.Flags().StringVar(&replayScenariosPath, "scenarios", "", "scenario suite YAML (required)")
	_ = replayCmd.MarkFlagRequired("candidate")
	_ = replayCmd.MarkFlagRequired("scenarios")
}
