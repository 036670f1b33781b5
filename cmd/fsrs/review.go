package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sky-flux/fsrs/wire"
)

const inputHelp = `Request file, or - for stdin`

func NewReviewCmd(a *app) *cobra.Command {
	return wireCmd(a, &cobra.Command{
		Use:   "review",
		Short: "Review one card",
		Long: `Read a review request as JSON and print the reviewed card and its log.

  echo '{"card":{"id":"c1","due":"2025-06-15T10:30:00Z"},"rating":"Good","now":"2025-06-15T10:30:00Z"}' | fsrs review`,
	}, func(_ *cobra.Command, h *wire.Handler, req wire.Request) (any, error) {
		return h.Review(req)
	})
}

func NewPreviewCmd(a *app) *cobra.Command {
	return wireCmd(a, &cobra.Command{
		Use:   "preview",
		Short: "Show the outcome of every rating for one card",
	}, func(_ *cobra.Command, h *wire.Handler, req wire.PreviewRequest) (any, error) {
		return h.Preview(req)
	})
}

func NewRescheduleCmd(a *app) *cobra.Command {
	return wireCmd(a, &cobra.Command{
		Use:   "reschedule",
		Short: "Rebuild a card from its review logs",
	}, func(_ *cobra.Command, h *wire.Handler, req wire.RescheduleRequest) (any, error) {
		return h.Reschedule(req)
	})
}

func NewBatchCmd(a *app) *cobra.Command {
	return wireCmd(a, &cobra.Command{
		Use:   "batch",
		Short: "Review many independent cards",
	}, func(cmd *cobra.Command, h *wire.Handler, req wire.BatchRequest) (any, error) {
		return h.ReviewBatch(cmd.Context(), req)
	})
}

// wireCmd completes cmd so that it decodes a Req from --input, runs fn and
// prints the result as JSON. Failures are printed as a wire error body too.
func wireCmd[Req any](a *app, cmd *cobra.Command, fn func(*cobra.Command, *wire.Handler, Req) (any, error)) *cobra.Command {
	var input string
	cmd.Args = cobra.NoArgs
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := a.load(cmd); err != nil {
			return err
		}
		r, closeFn, err := openInput(cmd, input)
		if err != nil {
			return err
		}
		defer closeFn()

		var req Req
		if err := wire.Decode(r, &req); err != nil {
			return printError(cmd, err)
		}
		resp, err := fn(cmd, a.handler(), req)
		if err != nil {
			return printError(cmd, err)
		}
		return wire.Encode(cmd.OutOrStdout(), resp)
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", inputHelp)
	return cmd
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func printError(cmd *cobra.Command, err error) error {
	we := wire.AsError(err)
	if encErr := wire.Encode(cmd.OutOrStdout(), we); encErr != nil {
		return encErr
	}
	return we
}
