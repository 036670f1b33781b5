package main

import (
	"github.com/spf13/cobra"

	"github.com/sky-flux/fsrs/simulator"
)

func NewEvaluateCmd(a *app) *cobra.Command {
	var (
		logsPath string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the configured weights against a review history",
		Long: `Replay a JSON array of review logs with the configured weights and report
the log loss and RMSE of the predicted recall probability at each cross-day review.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			logs, err := readLogs(cmd, logsPath)
			if err != nil {
				return err
			}
			ev, err := simulator.Evaluate(a.scheduler.Config().Weights, logs)
			if err != nil {
				return err
			}
			return writeFormatted(cmd, format, ev)
		},
	}

	cmd.Flags().StringVar(&logsPath, "logs", "-", "Review log file (JSON array), or - for stdin")
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format (yaml|json)")
	return cmd
}
