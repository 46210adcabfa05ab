package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/offsettree/pkg/score"
)

// ErrValidationFailed is returned when at least one score is invalid.
var ErrValidationFailed = errors.New("validation failed")

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <score.yaml|->...",
		Short: "Validate score documents against the score schema",
		Long: `Validate score documents against the embedded JSON schema and check
that every pitch name parses and no rest carries pitches.

Examples:
  offsettree validate chorale.yaml
  offsettree validate - < chorale.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, args []string) error {
			failed := 0

			for _, path := range args {
				if !a.validateOne(ctx, path) {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d scores", ErrValidationFailed, failed, len(args))
			}

			return nil
		}),
	}
}

func (a *app) validateOne(ctx context.Context, path string) bool {
	s, err := score.LoadFile(path)
	if err == nil {
		parts, measures := len(s.Parts), 0
		for _, p := range s.Parts {
			measures += len(p.Measures)
		}

		a.paint(color.FgGreen).Fprintf(a.stdout, "%s is valid\n", path)
		fmt.Fprintf(a.stdout, "  %d parts, %s measures, %s notes\n",
			parts, humanize.Comma(int64(measures)), humanize.Comma(int64(len(s.Notes()))))

		return true
	}

	a.metrics.RecordError(ctx, "validate")
	a.paint(color.FgRed).Fprintf(a.stdout, "%s is invalid\n", path)

	var verr *score.ValidationError
	if errors.As(err, &verr) {
		for _, problem := range verr.Problems {
			a.paint(color.FgYellow).Fprintf(a.stdout, "  - %s\n", problem)
		}

		return false
	}

	a.paint(color.FgYellow).Fprintf(a.stdout, "  - %v\n", err)

	return false
}
