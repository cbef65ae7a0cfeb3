// Package integrald computes definite integrals of user-supplied
// expressions in x.
//
// Compute is the single entry point used by the HTTP server and the CLI.
// It compiles the expression with package expr, integrates it with package
// quadrature and folds every failure into an *Error carrying a category
// and a message that is safe to show to the user:
//
//	area, err := integrald.Compute("x**2", 0, 3)
//	if err != nil {
//		fmt.Println(integrald.Message(err))
//	}
package integrald

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/petal-labs/integrald/expr"
	"github.com/petal-labs/integrald/quadrature"
)

// BoundsMessage is returned verbatim when the lower limit is not strictly
// less than the upper limit.
const BoundsMessage = "The lower limit must be less than the upper limit."

const (
	expressionPrefix   = "Invalid or unsupported expression: "
	divergentMessage   = "The integral resulted in an infinite value."
	notConvergedMsg    = "The integral did not converge within the subdivision limit."
	nonFiniteBoundsMsg = "The integration limits must be finite numbers."
	samplePointsMsg    = "The number of points must be between 2 and %d."
	internalMessage    = "An unexpected error occurred during calculation."
)

// Category classifies a failure so callers can tell a malformed formula
// from one whose integral could not be computed.
type Category string

const (
	CategoryNone        Category = ""
	CategoryInput       Category = "input"
	CategoryExpression  Category = "expression"
	CategoryIntegration Category = "integration"
	CategoryInternal    Category = "internal"
)

// Error is the only error type Compute returns.
type Error struct {
	Category Category
	Message  string // user-facing, never contains internal state
	Err      error  // underlying *expr.Error, *quadrature.Error or panic value
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// ErrBounds is wrapped by the *Error returned when !(lower < upper). Match
// it with errors.Is; the user-facing text is BoundsMessage.
var ErrBounds = errors.New("integrald: lower limit not below upper limit")

func boundsError(cause error) *Error {
	return &Error{Category: CategoryInput, Message: BoundsMessage, Err: cause}
}

func expressionError(err error) *Error {
	return &Error{Category: CategoryExpression, Message: expressionPrefix + err.Error(), Err: err}
}

// checkBounds rejects intervals that cannot be integrated or sampled.
func checkBounds(lower, upper float64) *Error {
	if !(lower < upper) {
		return boundsError(ErrBounds)
	}
	if math.IsInf(lower, 0) || math.IsInf(upper, 0) {
		return &Error{Category: CategoryInput, Message: nonFiniteBoundsMsg}
	}
	return nil
}

// Calculation is a successful result with its diagnostics.
type Calculation struct {
	Expression string
	Lower      float64
	Upper      float64
	quadrature.Result

	// Canonical is the fully parenthesized form of the parsed expression.
	Canonical string
	// ProbeFailed is set when the expression was undefined at every probe
	// point but integration over the requested interval still succeeded.
	ProbeFailed bool
	Duration    time.Duration
}

// Observation describes one finished Solve call, successful or not.
type Observation struct {
	Expression  string
	Lower       float64
	Upper       float64
	Category    Category
	Evaluations int
	Intervals   int
	MaxDepth    int
	ProbeFailed bool
	Duration    time.Duration
}

// Observer receives an Observation after every Solve.
type Observer interface {
	ObserveIntegration(ctx context.Context, observation Observation)
}

// SolverConfig configures a Solver.
type SolverConfig struct {
	Options  quadrature.Options
	Logger   *slog.Logger
	Observer Observer // optional
}

// Solver runs the compile-then-integrate pipeline with fixed options. It
// holds no per-request state and is safe for concurrent use.
type Solver struct {
	opts     quadrature.Options
	logger   *slog.Logger
	observer Observer
}

// NewSolver creates a Solver. Zero option fields take the quadrature
// package defaults.
func NewSolver(cfg SolverConfig) *Solver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{opts: cfg.Options, logger: logger, observer: cfg.Observer}
}

var defaultSolver = NewSolver(SolverConfig{Options: quadrature.DefaultOptions()})

// Compute integrates expression over [lower, upper] with default options.
func Compute(expression string, lower, upper float64) (float64, error) {
	calc, err := defaultSolver.Solve(expression, lower, upper)
	if err != nil {
		return 0, err
	}
	return calc.Area, nil
}

// ComputeWithOptions is Compute with explicit quadrature options.
func ComputeWithOptions(expression string, lower, upper float64, opts quadrature.Options) (float64, error) {
	calc, err := NewSolver(SolverConfig{Options: opts}).Solve(expression, lower, upper)
	if err != nil {
		return 0, err
	}
	return calc.Area, nil
}

// Solve runs the full pipeline. On failure the error is always an *Error
// and the Calculation is zero.
func (s *Solver) Solve(expression string, lower, upper float64) (Calculation, error) {
	return s.SolveContext(context.Background(), expression, lower, upper)
}

// SolveContext is Solve with a context for the observer. Integration itself
// is not cancellable.
func (s *Solver) SolveContext(ctx context.Context, expression string, lower, upper float64) (calc Calculation, err error) {
	start := time.Now()
	defer func() {
		s.observe(ctx, expression, lower, upper, calc, err, time.Since(start))
	}()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("integration panicked", "expression", expression, "panic", r)
			calc = Calculation{}
			err = &Error{Category: CategoryInternal, Message: internalMessage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if bErr := checkBounds(lower, upper); bErr != nil {
		return Calculation{}, bErr
	}

	prog, probeFailed, cErr := s.compile(expression)
	if cErr != nil {
		return Calculation{}, cErr
	}

	res, err := quadrature.Integrate(prog, lower, upper, s.opts)
	if err != nil {
		return Calculation{}, integrationError(err)
	}

	return Calculation{
		Expression:  expression,
		Lower:       lower,
		Upper:       upper,
		Result:      res,
		Canonical:   prog.String(),
		ProbeFailed: probeFailed,
		Duration:    time.Since(start),
	}, nil
}

// compile accepts a program that failed only the probe; the interval may
// avoid wherever the expression is undefined.
func (s *Solver) compile(expression string) (*expr.Program, bool, *Error) {
	prog, err := expr.Compile(expression)
	if err == nil {
		return prog, false, nil
	}
	if prog == nil || !errors.Is(err, expr.ErrUndefinedAtProbe) {
		return nil, false, expressionError(err)
	}
	s.logger.Debug("expression undefined at probe points", "expression", expression, "error", err)
	return prog, true, nil
}

// Sample evaluates expression at the given number of evenly spaced x
// values from lower to upper inclusive, for plotting. Zero points means
// expr.DefaultSamples. Bounds and expression failures are reported exactly
// as Solve reports them.
func (s *Solver) Sample(expression string, lower, upper float64, points int) ([]expr.Point, error) {
	if points == 0 {
		points = expr.DefaultSamples
	}
	if bErr := checkBounds(lower, upper); bErr != nil {
		return nil, bErr
	}
	if points < 2 || points > expr.MaxSamples {
		return nil, &Error{Category: CategoryInput, Message: fmt.Sprintf(samplePointsMsg, expr.MaxSamples)}
	}

	prog, _, cErr := s.compile(expression)
	if cErr != nil {
		return nil, cErr
	}
	samples, err := prog.Sample(lower, upper, points)
	if err != nil {
		return nil, &Error{Category: CategoryInternal, Message: internalMessage, Err: err}
	}
	return samples, nil
}

func (s *Solver) observe(ctx context.Context, expression string, lower, upper float64, calc Calculation, err error, elapsed time.Duration) {
	if s.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("integration observer panicked", "expression", expression, "panic", r)
		}
	}()
	s.observer.ObserveIntegration(ctx, Observation{
		Expression:  expression,
		Lower:       lower,
		Upper:       upper,
		Category:    Categorize(err),
		Evaluations: calc.Evaluations,
		Intervals:   calc.Intervals,
		MaxDepth:    calc.Result.MaxDepth,
		ProbeFailed: calc.ProbeFailed,
		Duration:    elapsed,
	})
}

func integrationError(err error) *Error {
	var qErr *quadrature.Error
	if !errors.As(err, &qErr) {
		return &Error{Category: CategoryInternal, Message: internalMessage, Err: err}
	}
	switch {
	case errors.Is(err, quadrature.ErrNonFiniteIntegrand):
		msg := fmt.Sprintf("The integral could not be computed: the function is not finite at x = %g.", qErr.Point)
		return &Error{Category: CategoryIntegration, Message: msg, Err: err}
	case errors.Is(err, quadrature.ErrDivergent):
		return &Error{Category: CategoryIntegration, Message: divergentMessage, Err: err}
	case errors.Is(err, quadrature.ErrNotConverged):
		return &Error{Category: CategoryIntegration, Message: notConvergedMsg, Err: err}
	case errors.Is(err, quadrature.ErrInvalidInterval):
		return boundsError(fmt.Errorf("%w: %w", ErrBounds, err))
	default:
		return &Error{Category: CategoryInternal, Message: internalMessage, Err: err}
	}
}

// Categorize returns the category of err, or CategoryNone for nil.
// Errors that did not come from this package are internal.
func Categorize(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryInternal
}

// Message returns the user-facing message for err. Errors that did not
// come from this package get the generic internal message.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return internalMessage
}
