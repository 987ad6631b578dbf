package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/categorylink/internal/app"
	"github.com/yungbote/categorylink/internal/data/graph"
)

type setupOptions struct {
	extract    string
	sampleRate float64
	reset      bool
	warmup     bool
}

func (o setupOptions) validate() error {
	switch graph.ExtractMode(o.extract) {
	case "", graph.ExtractSample, graph.ExtractFull:
	default:
		return usageError(fmt.Errorf("invalid --extract=%q; expected %q or %q", o.extract, graph.ExtractSample, graph.ExtractFull))
	}
	if o.sampleRate <= 0 || o.sampleRate > 1 {
		return usageError(fmt.Errorf("invalid --sample-rate=%v; expected a value in (0, 1]", o.sampleRate))
	}
	if o.reset && o.extract == "" {
		return usageError(fmt.Errorf("--reset requires --extract"))
	}
	return nil
}

func newSetupCmd(opts *rootOptions) *cobra.Command {
	so := setupOptions{}
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the index and constraint, optionally extract category nodes and warm the page cache",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := so.validate(); err != nil {
				return err
			}
			a, err := opts.openApp(cmd, app.Needs{Graph: true})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			setup := a.Services.Setup

			if err := setup.EnsureSchema(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "schema: index and constraint present")

			if so.extract != "" {
				res, err := setup.ExtractCategories(ctx, graph.ExtractOptions{
					Mode:       graph.ExtractMode(so.extract),
					SampleRate: so.sampleRate,
					Reset:      so.reset,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "extract: %d categories, %d nodes created, %d nodes deleted\n",
					res.Categories, res.NodesCreated, res.NodesDeleted)
			}

			if so.warmup {
				ok, err := setup.Warmup(ctx)
				switch {
				case err != nil:
					a.Log.Warn("warmup failed", "error", err)
					fmt.Fprintln(out, "warmup: failed, continuing")
				case !ok:
					fmt.Fprintln(out, "warmup: skipped, apoc.warmup.run not installed")
				default:
					fmt.Fprintln(out, "warmup: done")
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&so.extract, "extract", "", "create category nodes from distinct child values: sample or full")
	f.Float64Var(&so.sampleRate, "sample-rate", 0.05, "probability a child contributes its value when --extract=sample")
	f.BoolVar(&so.reset, "reset", false, "delete existing category nodes before extracting")
	f.BoolVar(&so.warmup, "warmup", false, "load the store into the page cache (best effort)")
	return cmd
}
