package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/offsettree/pkg/config"
	"github.com/Sumatoshi-tech/offsettree/pkg/pitch"
	"github.com/Sumatoshi-tech/offsettree/pkg/timespan"
)

const emptyCell = "-"

var tableStyles = map[string]table.Style{
	"light":   table.StyleLight,
	"rounded": table.StyleRounded,
	"bold":    table.StyleBold,
	"double":  table.StyleDouble,
	"ascii":   table.StyleDefault,
}

// newTable returns a table writer in the configured style.
func (a *app) newTable(header table.Row) table.Writer {
	tbl := table.NewWriter()

	style, ok := tableStyles[a.cfg.Output.TableStyle]
	if !ok {
		style = table.StyleLight
	}

	tbl.SetStyle(style)
	tbl.Style().Options.SeparateRows = false
	tbl.AppendHeader(header)

	return tbl
}

// appendRows adds rows, honoring output.max_rows with a footer naming the
// omitted count.
func (a *app) appendRows(tbl table.Writer, rows []table.Row) {
	limit := a.cfg.Output.MaxRows
	if limit <= 0 || len(rows) <= limit {
		tbl.AppendRows(rows)

		return
	}

	tbl.AppendRows(rows[:limit])
	tbl.AppendFooter(table.Row{fmt.Sprintf("... %s more rows", humanize.Comma(int64(len(rows)-limit)))})
}

// paint returns a color honoring output.color rather than only the
// terminal check.
func (a *app) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)

	switch a.cfg.Output.Color {
	case config.ColorAlways:
		c.EnableColor()
	case config.ColorNever:
		c.DisableColor()
	}

	return c
}

func (a *app) title(format string, args ...any) {
	a.paint(color.Bold, color.FgCyan).Fprintf(a.stdout, format+"\n", args...)
}

func formatOffset(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatPitches(ps []pitch.Pitch) string {
	if len(ps) == 0 {
		return emptyCell
	}

	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.String()
	}

	return strings.Join(names, " ")
}

type elemental interface {
	Element() timespan.Element
	Part() *timespan.Container
}

// spanLabel renders a span as "Part:element" when it carries an element.
func spanLabel(s timespan.Span) string {
	e, ok := s.(elemental)
	if !ok || e.Element() == nil {
		return s.String()
	}

	name := e.Element().String()
	if part := e.Part(); part != nil {
		return part.Name + ":" + name
	}

	return name
}

func partLabel(part *timespan.Container) string {
	if part == nil || part.Name == "" {
		return emptyCell
	}

	return part.Name
}

func spanLabels(spans []timespan.Span) string {
	if len(spans) == 0 {
		return emptyCell
	}

	labels := make([]string, len(spans))
	for i, s := range spans {
		labels[i] = spanLabel(s)
	}

	return strings.Join(labels, ", ")
}
