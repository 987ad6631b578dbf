package main

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/spf13/cobra"

	"github.com/yungbote/categorylink/internal/app"
	"github.com/yungbote/categorylink/internal/config"
	"github.com/yungbote/categorylink/internal/refactor"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		runID         string
		untilFinished bool
		replay        bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print progress events published to the Redis channel as JSON lines",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd, app.Needs{Bus: true})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			if a.Clients.Bus == nil {
				return &config.ConfigError{Code: config.ConfigErrorMissingSetting, Field: "events.redisAddr"}
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var mu sync.Mutex
			enc := json.NewEncoder(cmd.OutOrStdout())
			emit := func(ev refactor.Event) {
				if runID != "" && ev.RunID != runID {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if err := enc.Encode(ev); err != nil {
					a.Log.Warn("write event failed", "error", err)
				}
				if untilFinished && ev.Type == refactor.EventJobFinished {
					cancel()
				}
			}
			if err := a.Clients.Bus.StartForwarder(ctx, emit); err != nil {
				return err
			}
			if replay {
				last, ok, err := a.Clients.Bus.Last(ctx)
				if err != nil {
					a.Log.Warn("read last event failed", "error", err)
				} else if ok {
					emit(last)
				}
			}
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "only print events for this run")
	cmd.Flags().BoolVar(&untilFinished, "until-finished", false, "exit after the first job_finished event")
	cmd.Flags().BoolVar(&replay, "replay-last", true, "print the most recent event before following the channel")
	return cmd
}
