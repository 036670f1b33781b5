package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/sky-flux/fsrs"
	"github.com/sky-flux/fsrs/internal/logging"
	"github.com/sky-flux/fsrs/simulator"
)

func NewRetentionCmd(a *app) *cobra.Command {
	var (
		logsPath   string
		format     string
		candidates []float64
		cfg        simulator.Config
	)

	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Find the desired retention with the lowest review cost",
		Long: `Simulate a deck at each candidate retention with the configured weights and
report the review time per remembered card. With --logs the learner profile is
estimated from a JSON array of review logs; otherwise a typical profile is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}

			profile := simulator.DefaultProfile()
			if logsPath != "" {
				logs, err := readLogs(cmd, logsPath)
				if err != nil {
					return err
				}
				if profile, err = simulator.FromLogs(logs); err != nil {
					return err
				}
			}

			cfg.Weights = a.scheduler.Config().Weights
			cfg.Candidates = candidates
			logging.Debug().Int("cards", cfg.Cards).Int("days", cfg.Days).Msg("simulating retention")

			report, err := simulator.OptimalRetention(cmd.Context(), cfg, profile)
			if err != nil {
				return err
			}
			return writeFormatted(cmd, format, report)
		},
	}

	cmd.Flags().StringVar(&logsPath, "logs", "", "Review log file (JSON array), or - for stdin")
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format (yaml|json)")
	cmd.Flags().Float64SliceVar(&candidates, "candidates", nil, "Retentions to compare (default 0.70 to 0.95 in steps of 0.05)")
	cmd.Flags().IntVar(&cfg.Cards, "cards", 0, "Simulated deck size (default 1000)")
	cmd.Flags().IntVar(&cfg.Days, "days", 0, "Simulated period in days (default 365)")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 0, "Random seed (default 42)")
	return cmd
}

func readLogs(cmd *cobra.Command, path string) ([]fsrs.ReviewLog, error) {
	r, closeFn, err := openInput(cmd, path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var logs []fsrs.ReviewLog
	if err := json.NewDecoder(r).Decode(&logs); err != nil {
		return nil, fmt.Errorf("decode review logs: %w", err)
	}
	return logs, nil
}
