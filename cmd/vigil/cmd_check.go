package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"vigil/internal/registry"
	"vigil/internal/store"
	"vigil/internal/taxonomy"
	"vigil/internal/types"
	"vigil/internal/verdict"
)

var (
	checkProfilePath string
	checkEventsPath  string
	checkID          string
	checkSave        bool
)

// checkInput is the YAML shape of one submitted event batch.
type checkInput struct {
	Events []struct {
		ID        string          `yaml:"id"`
		Type      types.EventType `yaml:"type"`
		Timestamp time.Time       `yaml:"timestamp"`
		Label     string          `yaml:"label"`
	} `yaml:"events"`
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate one event batch and print its verdict",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := loadProfile(checkProfilePath)
		if err != nil {
			return err
		}

		var input checkInput
		if err := readYAML(checkEventsPath, &input); err != nil {
			return err
		}

		snapshot, err := taxonomy.Load(cfg.KnowledgeBase.Path)
		if err != nil {
			return err
		}

		id := checkID
		if id == "" {
			id = uuid.NewString()
		}
		check := types.Check{ID: id, ProfileID: profile.ID, Timestamp: time.Now().UTC()}
		for i, ev := range input.Events {
			evID := ev.ID
			if evID == "" {
				evID = fmt.Sprintf("%s-ev%d", id, i+1)
			}
			ts := ev.Timestamp
			if ts.IsZero() {
				ts = check.Timestamp
			}
			check.Events = append(check.Events, types.Event{ID: evID, Type: ev.Type, Timestamp: ts, Label: ev.Label})
		}

		v := verdict.New(snapshot, registry.New()).Evaluate(profile, check)
		logger.Info("check evaluated",
			zap.String("checkId", id),
			zap.String("riskLevel", string(v.RiskLevel)),
			zap.String("taxonomyVersion", v.Meta.TaxonomyVersion))

		if checkSave {
			st, err := store.Open(cfg.Store.DatabasePath, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.InsertCheck(check); err != nil {
				return err
			}
			if err := st.SaveVerdict(check.ID, profile.ID, check.Timestamp, v); err != nil {
				return err
			}
		}

		return printJSON(v)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkProfilePath, "profile", "", "profile YAML file (required)")
	checkCmd.Flags().StringVar(&checkEventsPath, "events", "", "events YAML file (required)")
	checkCmd.Flags().StringVar(&checkID, "check-id", "", "check id (generated when empty)")
	checkCmd.Flags().BoolVar(&checkSave, "save", false, "persist the check and verdict to the event store")
	_ = checkCmd.MarkFlagRequired("profile")
	_ = checkCmd.MarkFlagRequired("events")
}

func loadProfile(path string) (types.Profile, error) {
	var p types.Profile
	if err := readYAML(path, &p); err != nil {
		return types.Profile{}, err
	}
	if p.ID == "" {
		return types.Profile{}, fmt.Errorf("profile %s has no id", path)
	}
	return p, nil
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
