// Package quadrature estimates definite integrals by adaptive
// Gauss-Kronrod subdivision.
//
// Every sub-interval carries a 15-point Kronrod estimate and the embedded
// 7-point Gauss estimate; their difference is the local error. The engine
// keeps the leaves in an explicit work-list ordered by local error and
// halves the worst one until the summed leaf errors fit the target
// tolerance. When the worst remaining error is at floating-point noise level
// the engine stops early and sets Result.RoundoffLimited; the estimate is
// then as accurate as float64 allows but ErrorEstimate may exceed the
// target. Depth and evaluation budgets are plain counters, so they bound
// time and memory independently of the goroutine stack. The engine never
// polls for cancellation; a caller that needs a wall-clock limit imposes it
// around the call.
package quadrature

import (
	"math"
)

// Default tolerances match the usual general-purpose library defaults
// (sqrt of float64 epsilon, rounded).
const (
	DefaultAbsTol = 1.49e-8
	DefaultRelTol = 1.49e-8

	// DefaultMaxDepth bounds how many times an interval may be halved.
	DefaultMaxDepth = 50

	// DefaultMaxEvaluations allows 10000 panels per call.
	DefaultMaxEvaluations = 10000 * pointsPerPanel
)

// roundoffFactor scales machine epsilon to decide when |K15 - G7| is noise.
const roundoffFactor = 50

// Integrand is anything that can be evaluated at a point. *expr.Program
// satisfies it.
type Integrand interface {
	Eval(x float64) (float64, error)
}

// IntegrandFunc adapts an ordinary function to Integrand.
type IntegrandFunc func(x float64) (float64, error)

// Eval calls f(x).
func (f IntegrandFunc) Eval(x float64) (float64, error) { return f(x) }

// Options controls accuracy and resource limits.
//
// The target error is max(AbsTol, RelTol*|I0|) where I0 is the first
// whole-interval Kronrod estimate. Integration stops once the local error
// estimates of all leaves sum to at most the target.
type Options struct {
	AbsTol         float64 `yaml:"abs_tol" json:"abs_tol"`
	RelTol         float64 `yaml:"rel_tol" json:"rel_tol"`
	MaxDepth       int     `yaml:"max_depth" json:"max_depth"`
	MaxEvaluations int     `yaml:"max_evaluations" json:"max_evaluations"`
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		AbsTol:         DefaultAbsTol,
		RelTol:         DefaultRelTol,
		MaxDepth:       DefaultMaxDepth,
		MaxEvaluations: DefaultMaxEvaluations,
	}
}

// withDefaults fills zero or invalid fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.AbsTol < 0 || math.IsNaN(o.AbsTol) {
		o.AbsTol = 0
	}
	if o.RelTol < 0 || math.IsNaN(o.RelTol) {
		o.RelTol = 0
	}
	if o.AbsTol == 0 && o.RelTol == 0 {
		o.AbsTol, o.RelTol = d.AbsTol, d.RelTol
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.MaxEvaluations < pointsPerPanel {
		o.MaxEvaluations = d.MaxEvaluations
	}
	return o
}

// Result is a converged integral estimate.
type Result struct {
	Area          float64 `json:"area"`
	ErrorEstimate float64 `json:"error_estimate"`
	Evaluations   int     `json:"evaluations"`
	Intervals     int     `json:"intervals"`
	MaxDepth      int     `json:"max_depth"`

	// RoundoffLimited is set when subdivision stopped because the remaining
	// error was floating-point noise rather than because the target was met.
	RoundoffLimited bool `json:"roundoff_limited,omitempty"`
}

type engine struct {
	f           Integrand
	opts        Options
	evaluations int
}

// Integrate estimates the integral of f over [a, b]. It requires a < b and
// both bounds finite.
//
// Failures are *Error values: ErrNonFiniteIntegrand when f errors or is not
// finite at a required point, ErrNotConverged when the depth or evaluation
// budget runs out, and ErrDivergent when the accumulated area overflows.
func Integrate(f Integrand, a, b float64, opts Options) (Result, error) {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return Result{}, &Error{Kind: ErrInvalidInterval, Msg: "interval bounds must be finite"}
	}
	if !(a < b) {
		return Result{}, &Error{Kind: ErrInvalidInterval, Msg: "lower bound must be less than upper bound"}
	}

	e := &engine{f: f, opts: opts.withDefaults()}
	return e.run(a, b)
}

func (e *engine) run(a, b float64) (Result, error) {
	k, g, err := e.panel(a, b)
	if err != nil {
		return Result{}, err
	}
	tol := math.Max(e.opts.AbsTol, e.opts.RelTol*math.Abs(k))

	w := &worklist{}
	w.push(newSegment(a, b, 0, k, g))
	total := w.worst().err

	roundoff := false
	for total > tol {
		worst := w.worst()
		if worst.err <= roundoffFactor*epsilon*math.Abs(worst.kronrod) {
			roundoff = true
			break
		}
		if worst.depth >= e.opts.MaxDepth {
			return Result{}, notConverged("maximum subdivision depth %d reached on [%g, %g]", e.opts.MaxDepth, worst.lo, worst.hi)
		}
		mid := 0.5 * (worst.lo + worst.hi)
		if !(worst.lo < mid && mid < worst.hi) {
			return Result{}, notConverged("interval [%g, %g] cannot be subdivided further", worst.lo, worst.hi)
		}

		lk, lg, err := e.panel(worst.lo, mid)
		if err != nil {
			return Result{}, err
		}
		rk, rg, err := e.panel(mid, worst.hi)
		if err != nil {
			return Result{}, err
		}

		w.pop()
		left := newSegment(worst.lo, mid, worst.depth+1, lk, lg)
		right := newSegment(mid, worst.hi, worst.depth+1, rk, rg)
		w.push(left)
		w.push(right)

		total += left.err + right.err - worst.err
		if total <= tol {
			// Incremental updates drift; confirm before stopping.
			total = w.totalError()
		}
	}

	res := w.result()
	res.Evaluations = e.evaluations
	res.RoundoffLimited = roundoff
	if math.IsNaN(res.Area) || math.IsInf(res.Area, 0) || math.IsInf(res.ErrorEstimate, 0) {
		return Result{}, &Error{Kind: ErrDivergent, Msg: "accumulated area is not finite"}
	}
	return res, nil
}

func (e *engine) eval(x float64) (float64, error) {
	e.evaluations++
	v, err := e.f.Eval(x)
	if err != nil {
		return 0, nonFinite(x, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, nonFinite(x, nil)
	}
	return v, nil
}

// epsilon is the float64 machine epsilon.
const epsilon = 2.220446049250313e-16
