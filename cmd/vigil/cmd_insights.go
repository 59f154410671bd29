package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vigil/internal/evidence"
	"vigil/internal/registry"
	"vigil/internal/store"
	"vigil/internal/taxonomy"
	"vigil/internal/trajectory"
)

var (
	insightsProfilePath string
	insightsNow         string
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Mine the profile's recent timeline for ranked insights",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := loadProfile(insightsProfilePath)
		if err != nil {
			return err
		}
		now, err := parseNow(insightsNow)
		if err != nil {
			return err
		}

		snapshot, err := taxonomy.Load(cfg.KnowledgeBase.Path)
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.Store.DatabasePath, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		from := now.Add(-time.Duration(cfg.Trajectory.LookbackHours) * time.Hour)
		timeline, err := st.Timeline(profile.ID, from, now)
		if err != nil {
			return err
		}

		idx := evidence.NewIndex(timeline, time.Duration(cfg.Trajectory.EvidenceHitWindowHours)*time.Hour)
		detector := trajectory.New(cfg.Trajectory, snapshot, registry.New())
		insights := detector.Detect(timeline, profile.Allergies, idx)

		logger.Info("insights mined",
			zap.String("profileId", profile.ID),
			zap.Int("timelineEvents", len(timeline)),
			zap.Int("insights", len(insights)))
		return printJSON(insights)
	},
}

func init() {
	insightsCmd.Flags().StringVar(&insightsProfilePath, "profile", "", "profile YAML file (required)")
	insightsCmd.Flags().StringVar(&insightsNow, "now", "", "evaluation instant, RFC3339 (defaults to wall clock)")
	_ = insightsCmd.MarkFlagRequired("profile")
}

// parseNow pins "now" for reproducible runs; the wall clock is only a
// default, never the source of truth.
func parseNow(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now value %q: %w", s, err)
	}
	return t.UTC(), nil
}
