package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/categorylink/internal/app"
	"github.com/yungbote/categorylink/internal/config"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs recorded in the run ledger",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 || limit > 100 {
				return usageError(fmt.Errorf("invalid --limit=%d; expected 1..100", limit))
			}
			a, err := opts.openApp(cmd, app.Needs{Ledger: true})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			if a.Services.Ledger == nil {
				return &config.ConfigError{Code: config.ConfigErrorMissingSetting, Field: "ledger.dsn"}
			}

			entries, err := a.Services.Ledger.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			writeHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs and outcomes as JSON")
	return cmd
}
