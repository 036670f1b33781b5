package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sky-flux/fsrs"
	"github.com/sky-flux/fsrs/wire"
)

type weightsOutput struct {
	Scheduler struct {
		Weights []float64 `yaml:"weights" json:"weights"`
	} `yaml:"scheduler" json:"scheduler"`
}

func NewWeightsCmd(a *app) *cobra.Command {
	var (
		format string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Print the effective weight table",
		Long: `Print the weight table the scheduler uses, as a config file snippet.
With --strict the table is also checked against the parameter bounds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			w := a.scheduler.Config().Weights
			if strict {
				if err := w.CheckBounds(); err != nil {
					return err
				}
			}

			var out weightsOutput
			out.Scheduler.Weights = w
			return writeFormatted(cmd, format, out)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format (yaml|json)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when a weight is outside its bounds")
	return cmd
}

func writeFormatted(cmd *cobra.Command, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		return wire.Encode(cmd.OutOrStdout(), v)
	default:
		return fmt.Errorf("%w: unknown format %q", fsrs.ErrInvalidInput, format)
	}
}
