package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/sky-flux/fsrs"
	"github.com/sky-flux/fsrs/internal/config"
	"github.com/sky-flux/fsrs/internal/logging"
	"github.com/sky-flux/fsrs/wire"
)

// app loads the configuration once, on first use by a subcommand.
type app struct {
	configPath string

	once      sync.Once
	cfg       *config.Config
	scheduler *fsrs.Scheduler
	err       error
}

func (a *app) load(cmd *cobra.Command) error {
	a.once.Do(func() {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			a.err = err
			return
		}
		opts := cfg.Logging.Options()
		opts.Output = cmd.ErrOrStderr()
		logging.Init(opts)

		s, err := cfg.Scheduler.NewScheduler()
		if err != nil {
			a.err = fmt.Errorf("build scheduler: %w", err)
			return
		}
		a.cfg, a.scheduler = cfg, s
	})
	return a.err
}

func (a *app) handler() *wire.Handler {
	return wire.NewHandler(a.scheduler, wire.WithMaxBatch(a.cfg.Server.MaxBatch))
}

func NewRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fsrs",
		Short:         "Free Spaced Repetition Scheduler",
		Long:          `Schedule flashcard reviews with the FSRS memory model, from the command line or over HTTP.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default fsrs.yaml, or $FSRS_CONFIG)")

	rootCmd.AddCommand(
		NewReviewCmd(a),
		NewPreviewCmd(a),
		NewRescheduleCmd(a),
		NewBatchCmd(a),
		NewServeCmd(a),
		NewWeightsCmd(a),
		NewRetentionCmd(a),
		NewEvaluateCmd(a),
	)
	return rootCmd
}
