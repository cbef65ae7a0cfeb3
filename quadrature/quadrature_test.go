package quadrature

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func fn(f func(float64) float64) IntegrandFunc {
	return func(x float64) (float64, error) { return f(x), nil }
}

func integrate(t *testing.T, f func(float64) float64, a, b float64) Result {
	t.Helper()
	res, err := Integrate(fn(f), a, b, DefaultOptions())
	if err != nil {
		t.Fatalf("Integrate over [%g, %g] unexpected error: %v", a, b, err)
	}
	return res
}

func TestIntegrate_Polynomials(t *testing.T) {
	bounds := [][2]float64{{0, 1}, {0, 2.5}, {0.5, 3}, {1, 2}, {0, 10}}
	for n := 0; n <= 8; n++ {
		for _, ab := range bounds {
			a, b := ab[0], ab[1]
			name := fmt.Sprintf("x^%d_[%g,%g]", n, a, b)
			t.Run(name, func(t *testing.T) {
				res := integrate(t, func(x float64) float64 { return math.Pow(x, float64(n)) }, a, b)
				p := float64(n + 1)
				want := (math.Pow(b, p) - math.Pow(a, p)) / p
				if math.Abs(res.Area-want) > 1e-6 {
					t.Fatalf("area = %.12g, want %.12g", res.Area, want)
				}
			})
		}
	}
}

func TestIntegrate_SmoothAndKinked(t *testing.T) {
	tests := []struct {
		name string
		f    func(float64) float64
		a, b float64
		want float64
		tol  float64
	}{
		{"sin over [0,pi]", math.Sin, 0, math.Pi, 2, 1e-10},
		{"gaussian", func(x float64) float64 { return math.Exp(-x * x) }, -3, 3, math.Sqrt(math.Pi) * math.Erf(3), 1e-9},
		{"sqrt endpoint singularity", math.Sqrt, 0, 1, 2.0 / 3.0, 2e-8},
		{"kink", func(x float64) float64 { return math.Abs(x - 0.3) }, 0, 1, 0.29, 2e-8},
		{"oscillatory", func(x float64) float64 { return math.Sin(50 * x) }, 0, math.Pi, 0, 1e-7},
		{"arctan derivative", func(x float64) float64 { return 1 / (1 + x*x) }, 0, 1, math.Pi / 4, 1e-9},
		{"negative interval", func(x float64) float64 { return x }, -2, -1, -1.5, 1e-12},
		{"log endpoint singularity", math.Log, 0, 1, -1, 1e-7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := integrate(t, tt.f, tt.a, tt.b)
			if math.Abs(res.Area-tt.want) > tt.tol {
				t.Fatalf("area = %.15g, want %.15g (err est %g)", res.Area, tt.want, res.ErrorEstimate)
			}
			if res.Evaluations%pointsPerPanel != 0 || res.Evaluations == 0 {
				t.Fatalf("evaluations = %d, want a positive multiple of %d", res.Evaluations, pointsPerPanel)
			}
			if res.Intervals < 1 {
				t.Fatalf("intervals = %d, want >= 1", res.Intervals)
			}
		})
	}
}

func TestIntegrate_InvalidInterval(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
	}{
		{"equal", 1, 1},
		{"inverted", 5, 1},
		{"nan lower", math.NaN(), 1},
		{"inf upper", 0, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			f := IntegrandFunc(func(x float64) (float64, error) {
				calls++
				return x, nil
			})
			_, err := Integrate(f, tt.a, tt.b, DefaultOptions())
			if !errors.Is(err, ErrInvalidInterval) {
				t.Fatalf("error = %v, want ErrInvalidInterval", err)
			}
			if calls != 0 {
				t.Fatalf("integrand evaluated %d times before interval check", calls)
			}
		})
	}
}

func TestIntegrate_NonFiniteIntegrand(t *testing.T) {
	_, err := Integrate(fn(func(x float64) float64 { return 1 / x }), -1, 1, DefaultOptions())
	var qErr *Error
	if !errors.As(err, &qErr) || !errors.Is(err, ErrNonFiniteIntegrand) {
		t.Fatalf("error = %v, want ErrNonFiniteIntegrand", err)
	}
	if qErr.Point != 0 {
		t.Fatalf("point = %g, want 0", qErr.Point)
	}
}

func TestIntegrate_IntegrandErrorIsWrapped(t *testing.T) {
	cause := errors.New("domain failure")
	f := IntegrandFunc(func(x float64) (float64, error) {
		if x > 0.5 {
			return 0, cause
		}
		return x, nil
	})
	_, err := Integrate(f, 0, 1, DefaultOptions())
	if !errors.Is(err, ErrNonFiniteIntegrand) {
		t.Fatalf("error = %v, want ErrNonFiniteIntegrand", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("error = %v, want it to wrap the integrand error", err)
	}
}

func TestIntegrate_NotConvergedNearSingularity(t *testing.T) {
	_, err := Integrate(fn(func(x float64) float64 { return 1 / x }), 0, 1, DefaultOptions())
	if !errors.Is(err, ErrNotConverged) {
		t.Fatalf("error = %v, want ErrNotConverged", err)
	}
}

func TestIntegrate_DepthBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxDepth = 1
	_, err := Integrate(fn(math.Sqrt), 0, 1, opts)
	if !errors.Is(err, ErrNotConverged) {
		t.Fatalf("error = %v, want ErrNotConverged", err)
	}
}

func TestIntegrate_EvaluationBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxEvaluations = pointsPerPanel
	calls := 0
	f := IntegrandFunc(func(x float64) (float64, error) {
		calls++
		return math.Sqrt(x), nil
	})
	_, err := Integrate(f, 0, 1, opts)
	if !errors.Is(err, ErrNotConverged) {
		t.Fatalf("error = %v, want ErrNotConverged", err)
	}
	if calls > pointsPerPanel {
		t.Fatalf("integrand evaluated %d times, budget was %d", calls, pointsPerPanel)
	}
}

func TestIntegrate_Divergent(t *testing.T) {
	_, err := Integrate(fn(func(float64) float64 { return math.MaxFloat64 }), 0, 1e10, DefaultOptions())
	if !errors.Is(err, ErrDivergent) {
		t.Fatalf("error = %v, want ErrDivergent", err)
	}
}

func TestIntegrate_Deterministic(t *testing.T) {
	f := func(x float64) float64 { return math.Sqrt(x) * math.Sin(10*x) }
	first := integrate(t, f, 0, 3)
	for i := 0; i < 5; i++ {
		again := integrate(t, f, 0, 3)
		if math.Float64bits(first.Area) != math.Float64bits(again.Area) {
			t.Fatalf("run %d area %v differs from %v", i, again.Area, first.Area)
		}
		if first.Evaluations != again.Evaluations {
			t.Fatalf("run %d evaluations %d differ from %d", i, again.Evaluations, first.Evaluations)
		}
	}
}

func TestIntegrate_ErrorEstimateBounded(t *testing.T) {
	res := integrate(t, math.Sqrt, 0, 4)
	if res.ErrorEstimate > DefaultAbsTol+DefaultRelTol*16.0/3.0*1.01 {
		t.Fatalf("error estimate %g exceeds the requested tolerance", res.ErrorEstimate)
	}
	if res.MaxDepth == 0 {
		t.Fatal("expected the endpoint singularity to force subdivision")
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	if got := (Options{}).withDefaults(); got != DefaultOptions() {
		t.Fatalf("zero options = %+v, want defaults %+v", got, DefaultOptions())
	}

	got := Options{RelTol: 1e-12, AbsTol: -1, MaxDepth: 10, MaxEvaluations: 3}.withDefaults()
	want := Options{RelTol: 1e-12, AbsTol: 0, MaxDepth: 10, MaxEvaluations: DefaultMaxEvaluations}
	if got != want {
		t.Fatalf("withDefaults = %+v, want %+v", got, want)
	}
}

func TestIntegrate_RelativeToleranceOnly(t *testing.T) {
	opts := Options{RelTol: 1e-13}
	res, err := Integrate(fn(math.Exp), 0, 20, opts)
	if err != nil {
		t.Fatalf("Integrate error: %v", err)
	}
	want := math.Exp(20) - 1
	if math.Abs(res.Area-want)/want > 1e-12 {
		t.Fatalf("area = %.17g, want %.17g", res.Area, want)
	}
}

func TestIntegrate_RoundoffLimited(t *testing.T) {
	f := func(x float64) float64 { return 1e10 * math.Sin(50*x) }
	res := integrate(t, f, 0, 2*math.Pi)
	if !res.RoundoffLimited {
		t.Fatalf("expected a roundoff-limited result, got %+v", res)
	}
	// Relative to the integrand's scale the answer is still at noise level.
	if math.Abs(res.Area) > 1e-3 {
		t.Fatalf("area = %g, want ~0", res.Area)
	}
}

func TestIntegrate_ConvergedIsNotRoundoffLimited(t *testing.T) {
	res := integrate(t, math.Sin, 0, math.Pi)
	if res.RoundoffLimited {
		t.Fatalf("smooth integral reported roundoff limit: %+v", res)
	}
	if res.ErrorEstimate > DefaultAbsTol+DefaultRelTol*2 {
		t.Fatalf("error estimate %g above target", res.ErrorEstimate)
	}
}
