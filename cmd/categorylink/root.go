package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yungbote/categorylink/internal/app"
	"github.com/yungbote/categorylink/internal/config"
	"github.com/yungbote/categorylink/internal/platform/logger"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// exitError carries the process exit code. A nil err means the command has
// already reported the failure on stdout.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitError{code: exitUsage, err: err} }

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return exitUsage
	}
	return exitFailed
}

func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)

	var ee *exitError
	if err != nil && !(errors.As(err, &ee) && ee.err == nil) {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return exitCode(err)
}

type rootOptions struct {
	configPath   string
	batchSize    int
	termination  string
	storeAddress string
	statusAddr   string
}

func (o *rootOptions) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "path to a YAML config file")
	fs.IntVar(&o.batchSize, "batch-size", 0, "children linked per batch (overrides batchSize)")
	fs.StringVar(&o.termination, "termination", "", "termination mode: actualCount or estimate")
	fs.StringVar(&o.storeAddress, "store-address", "", "neo4j address, e.g. bolt://localhost:7687")
	fs.StringVar(&o.statusAddr, "status-addr", "", "listen address for the status server, e.g. :8080")
}

// apply layers explicitly set flags over cfg. Unset flags leave file and
// environment values in place.
func (o *rootOptions) apply(cfg *config.Config, fs *pflag.FlagSet) {
	if fs.Changed("batch-size") {
		cfg.BatchSize = o.batchSize
	}
	if fs.Changed("termination") {
		cfg.TerminationMode = config.TerminationMode(o.termination)
	}
	if fs.Changed("store-address") {
		cfg.Store.Address = o.storeAddress
	}
	if fs.Changed("status-addr") {
		cfg.Status.Addr = o.statusAddr
	}
}

func (o *rootOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	o.apply(&cfg, cmd.Flags())
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (o *rootOptions) openApp(cmd *cobra.Command, needs app.Needs) (*app.App, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(cmd.Context(), cfg, needs, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageError(fmt.Errorf("unexpected argument %q for %q", args[0], cmd.CommandPath()))
	}
	return nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "categorylink",
		Short:         "Materialize category relationships in a Neo4j graph",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError(fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath()))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.SetOut(out)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})
	opts.bindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newRunCmd(opts),
		newPlanCmd(opts),
		newSetupCmd(opts),
		newWorkerCmd(opts),
		newWatchCmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}
