package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/yaron8/tx-latency-prober/prober/bootstrap"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "HINT: %s\n", hint)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "prober",
		Short:         "Measures Hedera transfer confirmation latency and fees",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runLoop,
	}

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Measure on every interval until interrupted",
		RunE:  runLoop,
	})

	root.AddCommand(&cobra.Command{
		Use:   "once",
		Short: "Run a single measurement cycle and print the record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, err := bootstrap.NewBootstrap(ctx)
			if err != nil {
				return errors.Wrap(err, "failed to create prober bootstrap")
			}

			record, err := b.RunOnce(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(record)
		},
	})

	return root
}

func runLoop(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bootstrap.NewBootstrap(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to create prober bootstrap")
	}

	if err := b.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start prober")
	}
	return nil
}
