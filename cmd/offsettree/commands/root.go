// Package commands implements the offsettree subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/offsettree/pkg/config"
	"github.com/Sumatoshi-tech/offsettree/pkg/observability"
	"github.com/Sumatoshi-tech/offsettree/pkg/score"
	"github.com/Sumatoshi-tech/offsettree/pkg/timespantree"
	"github.com/Sumatoshi-tech/offsettree/pkg/version"
)

const (
	flagConfig  = "config"
	flagVerbose = "verbose"
	flagQuiet   = "quiet"
	flagNoColor = "no-color"
)

type rootOptions struct {
	configPath string
	verbose    bool
	quiet      bool
	noColor    bool
}

// app is the per-invocation state shared by the subcommands.
type app struct {
	cfg       *config.Config
	providers observability.Providers
	metrics   *observability.TreeMetrics
	logger    *slog.Logger
	stdout    io.Writer
	stderr    io.Writer
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "offsettree",
		Short: "Inspect scores through an offset-indexed interval tree",
		Long: `offsettree loads a YAML score, indexes its notes as timespans in a
balanced offset tree and answers "what is sounding here" queries.

Commands:
  dump           Print the tree structure
  verticalities  List what sounds at every start offset
  stats          Report tree shape and query metrics
  validate       Check a score document against its schema`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, flagConfig, "", "config file (default ./offsettree.yaml)")
	flags.BoolVarP(&opts.verbose, flagVerbose, "v", false, "debug logging")
	flags.BoolVarP(&opts.quiet, flagQuiet, "q", false, "only log errors")
	flags.BoolVar(&opts.noColor, flagNoColor, false, "disable colored output")

	rootCmd.AddCommand(
		newDumpCommand(opts),
		newVerticalitiesCommand(opts),
		newStatsCommand(opts),
		newValidateCommand(opts),
		newVersionCommand(),
	)

	return rootCmd
}

// withApp wraps a subcommand body with configuration loading and
// observability setup, and flushes telemetry when the body returns.
func withApp(opts *rootOptions, body func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, opts)
		if err != nil {
			return err
		}

		defer func() {
			err = errors.Join(err, a.providers.Shutdown(context.WithoutCancel(cmd.Context())))
		}()

		return body(cmd.Context(), a, args)
	}
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.noColor {
		cfg.Output.Color = config.ColorNever
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = cfg.Tracing.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Tracing.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Tracing.Insecure
	obsCfg.SampleRatio = cfg.Tracing.SampleRatio
	obsCfg.LogLevel = cfg.Logging.SlogLevel()
	obsCfg.LogJSON = cfg.Logging.Format == config.FormatJSON
	obsCfg.LogOutput = cmd.ErrOrStderr()

	switch {
	case opts.verbose:
		obsCfg.LogLevel = slog.LevelDebug
	case opts.quiet:
		obsCfg.LogLevel = slog.LevelError
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewTreeMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	return &app{
		cfg:       cfg,
		providers: providers,
		metrics:   metrics,
		logger:    providers.Logger,
		stdout:    cmd.OutOrStdout(),
		stderr:    cmd.ErrOrStderr(),
	}, nil
}

// loadTree loads a score file and bulk-builds its timespan tree, recording
// the build in the tree metrics.
func (a *app) loadTree(ctx context.Context, path string) (*score.Score, *timespantree.Tree, error) {
	ctx, span := a.providers.Tracer.Start(ctx, "offsettree.loadTree")
	defer span.End()

	s, err := score.LoadFile(path)
	if err != nil {
		span.RecordError(err)
		a.metrics.RecordError(ctx, "load")

		return nil, nil, err
	}

	started := time.Now()

	t, err := s.BuildTree(ctx, a.logger)

	elements := 0
	if t != nil {
		elements = t.Len()
	}

	a.metrics.RecordBuild(ctx, s.Title, elements, time.Since(started), err)

	if err != nil {
		span.RecordError(err)

		return nil, nil, err
	}

	a.logger.DebugContext(ctx, "tree built",
		"source", s.Title, "elements", t.Len(), "height", t.Height())

	return s, t, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "offsettree %s\n", version.String())
		},
	}
}
