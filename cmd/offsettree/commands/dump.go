package commands

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/offsettree/pkg/score"
)

const flagElements = "elements"

func newDumpCommand(opts *rootOptions) *cobra.Command {
	var byElement bool

	cmd := &cobra.Command{
		Use:   "dump <score.yaml|->",
		Short: "Print the node structure of a score's tree",
		Long: `Print every node of the tree built from a score: its position, its
payload, the bookkeeping ranges and both children.

By default notes are indexed by offset in a timespan tree. With --elements
they are indexed by sort tuple in an element tree, one note per node.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, args []string) error {
			if byElement {
				return a.dumpElements(args[0])
			}

			return a.dumpTimespans(ctx, args[0])
		}),
	}

	cmd.Flags().BoolVar(&byElement, flagElements, false, "index notes by sort tuple instead of offset")

	return cmd
}

func (a *app) dumpTimespans(ctx context.Context, path string) error {
	s, t, err := a.loadTree(ctx, path)
	if err != nil {
		return err
	}

	a.title("%s: %s timespans, %s offsets, height %d",
		s.Title, humanize.Comma(int64(t.Len())), humanize.Comma(int64(len(t.AllOffsets()))), t.Height())
	fmt.Fprintln(a.stdout, t.Debug())

	return nil
}

func (a *app) dumpElements(path string) error {
	s, err := score.LoadFile(path)
	if err != nil {
		return err
	}

	t, err := s.ElementTree(a.logger)
	if err != nil {
		return err
	}

	a.title("%s: %s notes, height %d", s.Title, humanize.Comma(int64(t.Len())), t.Height())
	fmt.Fprintln(a.stdout, t.Debug())

	return nil
}
