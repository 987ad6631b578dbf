package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/yungbote/categorylink/internal/app"
)

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Poll the Temporal task queue and execute refactor workflows",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd, app.Needs{Graph: true, Bus: true, Ledger: true, Temporal: true})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			if err := a.RunWorker(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
