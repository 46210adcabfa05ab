package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/offsettree/pkg/observability"
	"github.com/Sumatoshi-tech/offsettree/pkg/timespantree"
)

const (
	flagAt      = "at"
	flagReverse = "reverse"
	flagWindow  = "window"
	flagSplit   = "split"
	flagMotion  = "motion"
	flagRests   = "rests"
	markYes     = "yes"
)

type verticalityOptions struct {
	at      []float64
	reverse bool
	window  int
	split   []float64
	motion  bool
	rests   bool
}

func newVerticalitiesCommand(opts *rootOptions) *cobra.Command {
	vopts := &verticalityOptions{}

	cmd := &cobra.Command{
		Use:     "verticalities <score.yaml|->",
		Aliases: []string{"vert"},
		Short:   "List what sounds at every start offset of a score",
		Long: `List the verticalities of a score: for every offset at which a note
starts, the notes starting, sounding through and stopping there.

Examples:
  offsettree verticalities chorale.yaml
  offsettree verticalities --at 1.5 --at 2 chorale.yaml
  offsettree verticalities --split 0.5 --motion chorale.yaml
  offsettree verticalities --window 3 chorale.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, args []string) error {
			return a.runVerticalities(ctx, args[0], vopts)
		}),
	}

	flags := cmd.Flags()
	flags.Float64SliceVar(&vopts.at, flagAt, nil, "only these offsets (repeatable)")
	flags.BoolVar(&vopts.reverse, flagReverse, false, "walk from the last offset backwards")
	flags.IntVar(&vopts.window, flagWindow, 1, "group this many consecutive verticalities and describe each part's line")
	flags.Float64SliceVar(&vopts.split, flagSplit, nil, "split sounding notes at these offsets first")
	flags.BoolVar(&vopts.motion, flagMotion, false, "show the motion of each part into the verticality")
	flags.BoolVar(&vopts.rests, flagRests, false, "include rests in --motion pairs")

	return cmd
}

func (a *app) runVerticalities(ctx context.Context, path string, vopts *verticalityOptions) error {
	s, t, err := a.loadTree(ctx, path)
	if err != nil {
		return err
	}

	if len(vopts.split) > 0 {
		if err := t.SplitAt(vopts.split...); err != nil {
			a.metrics.RecordError(ctx, "split")

			return err
		}
	}

	if vopts.window != 1 {
		return a.printWindows(ctx, s.Title, t, vopts)
	}

	started := time.Now()

	var verts []*timespantree.Verticality

	if len(vopts.at) > 0 {
		for _, offset := range vopts.at {
			verts = append(verts, t.GetVerticalityAt(offset))
		}

		if vopts.reverse {
			slices.Reverse(verts)
		}

		a.metrics.RecordQuery(ctx, observability.QueryVerticality, len(verts), time.Since(started))
	} else {
		verts = slices.Collect(t.Iterate(vopts.reverse))
		a.metrics.RecordQuery(ctx, observability.QueryIterate, len(verts), time.Since(started))
	}

	header := table.Row{"Offset", "Starting", "Sounding", "Stopping", "Pitches", "Until next"}
	if vopts.motion {
		header = append(header, "Motion")
	}

	rows := make([]table.Row, 0, len(verts))
	for _, v := range verts {
		rows = append(rows, verticalityRow(v, vopts))
	}

	tbl := a.newTable(header)
	a.appendRows(tbl, rows)

	a.title("%s: %d verticalities", s.Title, len(verts))
	fmt.Fprintln(a.stdout, tbl.Render())

	return nil
}

func verticalityRow(v *timespantree.Verticality, vopts *verticalityOptions) table.Row {
	next := emptyCell
	if d, ok := v.TimeToNextEvent(); ok {
		next = formatOffset(d)
	}

	row := table.Row{
		formatOffset(v.Offset),
		spanLabels(v.StartTimespans),
		spanLabels(v.OverlapTimespans),
		spanLabels(v.StopTimespans),
		formatPitches(v.PitchSet()),
		next,
	}

	if vopts.motion {
		motions := v.GetPairedMotion(vopts.rests, false)

		pairs := make([]string, len(motions))
		for i, m := range motions {
			pairs[i] = spanLabel(m.Previous) + " -> " + spanLabel(m.Current)
		}

		cell := emptyCell
		if len(pairs) > 0 {
			cell = strings.Join(pairs, ", ")
		}

		row = append(row, cell)
	}

	return row
}

func (a *app) printWindows(ctx context.Context, title string, t *timespantree.Tree, vopts *verticalityOptions) error {
	started := time.Now()

	seqs, err := t.IterateNwise(vopts.window, vopts.reverse)
	if err != nil {
		return err
	}

	// Parts in order of first appearance, spans outside any part last.
	order := append(t.AllParts(), nil)

	var rows []table.Row

	windows := 0

	for seq := range seqs {
		windows++

		span := formatOffset(seq[0].Offset) + ".." + formatOffset(seq[len(seq)-1].Offset)
		unwrapped := seq.Unwrap()

		for _, part := range order {
			h, ok := unwrapped[part]
			if !ok {
				continue
			}

			rows = append(rows, table.Row{
				span,
				partLabel(part),
				spanLabels(h.Timespans),
				mark(h.HasPassingTone()),
				mark(h.HasNeighborTone()),
				mark(h.HasNoMotion()),
			})
		}
	}

	a.metrics.RecordQuery(ctx, observability.QueryNwise, windows, time.Since(started))

	tbl := a.newTable(table.Row{"Window", "Part", "Line", "Passing", "Neighbor", "Static"})
	a.appendRows(tbl, rows)

	a.title("%s: %d windows of %d", title, windows, vopts.window)
	fmt.Fprintln(a.stdout, tbl.Render())

	return nil
}

func mark(b bool) string {
	if b {
		return markYes
	}

	return emptyCell
}
