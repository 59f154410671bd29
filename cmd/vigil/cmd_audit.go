package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vigil/internal/audit"
	"vigil/internal/store"
)

var (
	auditProfileID string
	auditSince     string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Re-derive guardrail violations over the stored verdict archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		from := time.Time{}
		if auditSince != "" {
			t, err := time.Parse(time.RFC3339, auditSince)
			if err != nil {
				return fmt.Errorf("invalid --since value %q: %w", auditSince, err)
			}
			from = t.UTC()
		}

		st, err := store.Open(cfg.Store.DatabasePath, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		verdicts, err := st.Verdicts(auditProfileID, from, time.Now().UTC())
		if err != nil {
			return err
		}

		violations, err := audit.Run(verdicts)
		if err != nil {
			return err
		}

		logger.Info("audit finished",
			zap.String("profileId", auditProfileID),
			zap.Int("verdicts", len(verdicts)),
			zap.Int("violations", len(violations)))

		if err := printJSON(violations); err != nil {
			return err
		}
		if len(violations) > 0 {
			return fmt.Errorf("audit found %d guardrail violation(s)", len(violations))
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditProfileID, "profile-id", "", "profile id (required)")
	auditCmd.Flags().StringVar(&auditSince, "since", "", "only audit verdicts at or after this RFC3339 instant")
	_ = auditCmd.MarkFlagRequired("profile-id")
}
