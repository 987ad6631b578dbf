package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/categorylink/internal/app"
	"github.com/yungbote/categorylink/internal/refactor"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var orchestrated bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Link every pending child to its category node",
		Long: "Counts unlinked children per category and links them in batches, one category at a time.\n" +
			"With --temporal the job runs as a workflow on a categorylink worker and this command waits for its report.",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			needs := app.Needs{Graph: true, Bus: true, Ledger: true}
			if orchestrated {
				needs = app.Needs{Temporal: true}
			}
			a, err := opts.openApp(cmd, needs)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			var report refactor.Report
			if orchestrated {
				report, err = a.RunOrchestrated(cmd.Context())
			} else {
				report, err = a.RunJob(cmd.Context())
			}
			if err != nil {
				return &exitError{code: exitFailed, err: err}
			}
			writeSummary(cmd.OutOrStdout(), report)
			if !report.Succeeded() {
				return &exitError{code: exitFailed}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&orchestrated, "temporal", false, "run as a Temporal workflow (requires TEMPORAL_ADDRESS and a running worker)")
	return cmd
}
