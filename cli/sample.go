package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/petal-labs/integrald"
	"github.com/petal-labs/integrald/expr"
)

// NewSampleCmd creates the "sample" subcommand.
func NewSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample <expression> <lower> <upper>",
		Short: "Print evenly spaced values of an expression for plotting",
		Long: `Evaluate an expression at evenly spaced points from lower to upper inclusive.

Text output is one "x<TAB>y" line per point; y is "null" where the
expression has no finite value.`,
		Args: cobra.ExactArgs(3),
		RunE: runSample,
	}

	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Int("points", expr.DefaultSamples, fmt.Sprintf("Number of points, 2 to %d", expr.MaxSamples))

	return cmd
}

func runSample(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}
	n, _ := cmd.Flags().GetInt("points")

	lower, err := parseBound(args[1])
	if err != nil {
		return exitError(exitInput, "lower limit: %v", err)
	}
	upper, err := parseBound(args[2])
	if err != nil {
		return exitError(exitInput, "upper limit: %v", err)
	}
	if n == 0 {
		return exitError(exitInput, "--points must be between 2 and %d", expr.MaxSamples)
	}

	solver := integrald.NewSolver(integrald.SolverConfig{Logger: NewLogger(cmd)})
	points, err := solver.Sample(args[0], lower, upper, n)
	if err != nil {
		return solveError(err)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"points": points})
	}
	for _, p := range points {
		y := "null"
		if p.Y != nil {
			y = strconv.FormatFloat(*p.Y, 'g', -1, 64)
		}
		fmt.Fprintf(out, "%s\t%s\n", strconv.FormatFloat(p.X, 'g', -1, 64), y)
	}
	return nil
}
