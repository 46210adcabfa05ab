package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/offsettree/pkg/observability"
	"github.com/Sumatoshi-tech/offsettree/pkg/timespantree"
)

const (
	flagPrometheus = "prometheus"
	flagListen     = "listen"
	metricsPath    = "/metrics"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type statsOptions struct {
	prometheus bool
	listen     string
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	sopts := &statsOptions{}

	cmd := &cobra.Command{
		Use:   "stats <score.yaml>...",
		Short: "Report the shape of each score's tree",
		Long: `Build a tree per score, walk its verticalities once and report its
shape: elements, distinct offsets and time points, height, parts and overlap.

With --prometheus the same figures, plus build and query metrics, are
printed in the Prometheus text format. With --listen they are served at
/metrics until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, args []string) error {
			return a.runStats(ctx, args, sopts)
		}),
	}

	cmd.Flags().BoolVar(&sopts.prometheus, flagPrometheus, false, "print metrics in the Prometheus text format")
	cmd.Flags().StringVar(&sopts.listen, flagListen, "", "serve metrics on this address, e.g. :9090")

	return cmd
}

func (a *app) runStats(ctx context.Context, paths []string, sopts *statsOptions) error {
	collector := observability.NewTreeCollector()

	if err := a.providers.Registry.Register(collector); err != nil {
		return fmt.Errorf("register tree collector: %w", err)
	}

	rows := make([]table.Row, 0, len(paths))

	for _, path := range paths {
		started := time.Now()

		_, t, err := a.loadTree(ctx, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		built := time.Since(started)

		rows = append(rows, a.statsRow(ctx, collector.Track(t), t, built))
	}

	tbl := a.newTable(table.Row{
		"Source", "Elements", "Offsets", "Time points", "Height", "Parts", "Overlap", "Build",
	})
	a.appendRows(tbl, rows)
	fmt.Fprintln(a.stdout, tbl.Render())

	if sopts.prometheus {
		if err := observability.WriteText(a.stdout, a.providers.Registry); err != nil {
			return err
		}
	}

	if sopts.listen != "" {
		return a.serveMetrics(ctx, sopts.listen)
	}

	return nil
}

// statsRow walks every verticality once, so the query metrics reflect a
// full pass over the tree.
func (a *app) statsRow(ctx context.Context, source string, t *timespantree.Tree, built time.Duration) table.Row {
	started := time.Now()
	minOverlap, maxOverlap, walked := 0, 0, 0

	for v := range t.Iterate(false) {
		degree := v.DegreeOfOverlap()

		if walked == 0 || degree < minOverlap {
			minOverlap = degree
		}

		maxOverlap = max(maxOverlap, degree)
		walked++
	}

	a.metrics.RecordQuery(ctx, observability.QueryIterate, walked, time.Since(started))

	overlap := emptyCell
	if walked > 0 {
		overlap = fmt.Sprintf("%d..%d", minOverlap, maxOverlap)
	}

	return table.Row{
		source,
		humanize.Comma(int64(t.Len())),
		humanize.Comma(int64(len(t.AllOffsets()))),
		humanize.Comma(int64(len(t.AllTimePoints()))),
		t.Height(),
		len(t.AllParts()),
		overlap,
		humanize.SIWithDigits(built.Seconds(), 1, "s"),
	}
}

func (a *app) serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, observability.HTTPMiddleware(a.providers.Tracer, a.logger,
		observability.MetricsHandler(a.providers.Registry)))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	a.logger.InfoContext(ctx, "serving metrics", "addr", addr, "path", metricsPath)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve metrics: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	return nil
}
