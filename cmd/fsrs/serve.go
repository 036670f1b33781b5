package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sky-flux/fsrs/internal/logging"
	"github.com/sky-flux/fsrs/internal/server"
)

func NewServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scheduler over HTTP",
		Long:  `Serve the review, preview, reschedule and batch endpoints until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			cfg := a.cfg.Server
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sc := a.scheduler.Config()
			logging.Info().
				Float64("desired_retention", sc.DesiredRetention).
				Int("maximum_interval", sc.MaximumInterval).
				Bool("fuzzing", sc.EnableFuzzing).
				Int("weights", len(sc.Weights)).
				Msg("scheduler configured")

			return server.New(cfg, a.scheduler).Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (overrides server.listen)")
	return cmd
}
