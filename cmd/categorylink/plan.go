package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/yungbote/categorylink/internal/app"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print pending categories and expected batch counts without writing",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd, app.Needs{Graph: true})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			plan, err := a.Plan(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			writePlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the plan as JSON")
	return cmd
}
