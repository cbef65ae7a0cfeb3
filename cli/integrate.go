package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/integrald"
	"github.com/petal-labs/integrald/expr"
	"github.com/petal-labs/integrald/quadrature"
)

// NewIntegrateCmd creates the "integrate" subcommand.
func NewIntegrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrate <expression> <lower> <upper>",
		Short: "Compute a definite integral",
		Long: `Compute the definite integral of an expression in x over [lower, upper].

Bounds are numbers or the constants pi and e, optionally negated. Put "--"
before the arguments when a bound is negative:

  integrald integrate -- "exp(-x^2)" -3 3`,
		Args: cobra.ExactArgs(3),
		RunE: runIntegrate,
	}

	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Float64("abs-tol", 0, "Absolute error tolerance (default from config)")
	cmd.Flags().Float64("rel-tol", 0, "Relative error tolerance (default from config)")
	cmd.Flags().Int("max-depth", 0, "Maximum subdivision depth (default from config)")
	cmd.Flags().Int("max-evaluations", 0, "Maximum integrand evaluations (default from config)")

	return cmd
}

// integrateOutput is the --format json shape.
type integrateOutput struct {
	Expression      string   `json:"expression"`
	Lower           float64  `json:"lower_limit"`
	Upper           float64  `json:"upper_limit"`
	Area            *float64 `json:"area"`
	Error           *string  `json:"error"`
	Category        string   `json:"category,omitempty"`
	ErrorEstimate   float64  `json:"error_estimate,omitempty"`
	Evaluations     int      `json:"evaluations,omitempty"`
	Intervals       int      `json:"intervals,omitempty"`
	MaxDepth        int      `json:"max_depth,omitempty"`
	RoundoffLimited bool     `json:"roundoff_limited,omitempty"`
	Canonical       string   `json:"canonical,omitempty"`
	ProbeFailed     bool     `json:"probe_failed,omitempty"`
	DurationMS      float64  `json:"duration_ms,omitempty"`
}

func runIntegrate(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	expression := args[0]
	lower, err := parseBound(args[1])
	if err != nil {
		return exitError(exitInput, "lower limit: %v", err)
	}
	upper, err := parseBound(args[2])
	if err != nil {
		return exitError(exitInput, "upper limit: %v", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := quadratureOptions(cmd, cfg.Quadrature)

	logger := NewLogger(cmd)
	solver := integrald.NewSolver(integrald.SolverConfig{Options: opts, Logger: logger})
	calc, solveErr := solver.SolveContext(cmd.Context(), expression, lower, upper)
	logger.Debug("integration finished",
		"expression", expression,
		"evaluations", calc.Evaluations,
		"intervals", calc.Intervals,
		"error_estimate", calc.ErrorEstimate,
		"duration", calc.Duration,
	)

	out := cmd.OutOrStdout()
	if format == "json" {
		if err := writeIntegrateJSON(out, expression, lower, upper, calc, solveErr); err != nil {
			return err
		}
	} else if solveErr == nil {
		fmt.Fprintln(out, strconv.FormatFloat(calc.Area, 'g', -1, 64))
	}

	if solveErr != nil {
		return solveError(solveErr)
	}
	return nil
}

func writeIntegrateJSON(w io.Writer, expression string, lower, upper float64, calc integrald.Calculation, solveErr error) error {
	result := integrateOutput{Expression: expression, Lower: lower, Upper: upper}
	if solveErr != nil {
		msg := integrald.Message(solveErr)
		result.Error = &msg
		result.Category = string(integrald.Categorize(solveErr))
	} else {
		area := calc.Area
		result.Area = &area
		result.ErrorEstimate = calc.ErrorEstimate
		result.Evaluations = calc.Evaluations
		result.Intervals = calc.Intervals
		result.MaxDepth = calc.Result.MaxDepth
		result.Canonical = calc.Canonical
		result.ProbeFailed = calc.ProbeFailed
		result.RoundoffLimited = calc.RoundoffLimited
		result.DurationMS = float64(calc.Duration) / float64(time.Millisecond)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// quadratureOptions overlays explicitly set flags on the configured options.
func quadratureOptions(cmd *cobra.Command, base quadrature.Options) quadrature.Options {
	opts := base
	if cmd.Flags().Changed("abs-tol") {
		opts.AbsTol, _ = cmd.Flags().GetFloat64("abs-tol")
	}
	if cmd.Flags().Changed("rel-tol") {
		opts.RelTol, _ = cmd.Flags().GetFloat64("rel-tol")
	}
	if cmd.Flags().Changed("max-depth") {
		opts.MaxDepth, _ = cmd.Flags().GetInt("max-depth")
	}
	if cmd.Flags().Changed("max-evaluations") {
		opts.MaxEvaluations, _ = cmd.Flags().GetInt("max-evaluations")
	}
	return opts
}

// parseBound accepts a float literal or a whitelisted constant with an
// optional sign.
func parseBound(s string) (float64, error) {
	clean := strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(clean, 64); err == nil {
		if math.IsNaN(v) {
			return 0, fmt.Errorf("%q is not a number", s)
		}
		return v, nil
	}

	sign := 1.0
	name := clean
	switch {
	case strings.HasPrefix(name, "-"):
		sign, name = -1, name[1:]
	case strings.HasPrefix(name, "+"):
		name = name[1:]
	}
	if b, ok := expr.LookupBuiltin(name); ok && b.Constant {
		return sign * b.Value, nil
	}
	return 0, fmt.Errorf("%q is not a number", s)
}
