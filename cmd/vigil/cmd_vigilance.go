package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vigil/internal/store"
	"vigil/internal/vigilance"
)

var (
	vigilanceProfileID string
	vigilanceNow       string
)

var vigilanceCmd = &cobra.Command{
	Use:   "vigilance",
	Short: "Aggregate recent verdicts into a decayed vigilance score",
	RunE: func(cmd *cobra.Command, args []string) error {
		now, err := parseNow(vigilanceNow)
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.Store.DatabasePath, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		from := now.Add(-time.Duration(cfg.Vigilance.WindowHours) * time.Hour)
		verdicts, err := st.Verdicts(vigilanceProfileID, from, now)
		if err != nil {
			return err
		}

		state := vigilance.New(cfg.Vigilance).Aggregate(verdicts, now)
		logger.Info("vigilance aggregated",
			zap.String("profileId", vigilanceProfileID),
			zap.Int("score", state.VigilanceScore),
			zap.Bool("active", state.VigilanceActive))
		return printJSON(state)
	},
}

func init() {
	vigilanceCmd.Flags().StringVar(&vigilanceProfileID, "profile-id", "", "profile id (required)")
	vigilanceCmd.Flags().StringVar(&vigilanceNow, "now", "", "evaluation instant, RFC3339 (defaults to wall clock)")
	_ = vigilanceCmd.MarkFlagRequired("profile-id")
}
