package quadrature

import (
	"errors"
	"fmt"
)

// Sentinel kinds for integration failures. Use errors.Is against an *Error.
var (
	ErrInvalidInterval    = errors.New("invalid interval")
	ErrNonFiniteIntegrand = errors.New("non-finite integrand")
	ErrDivergent          = errors.New("divergent result")
	ErrNotConverged       = errors.New("did not converge")
)

// Error describes why no area could be computed.
type Error struct {
	Kind  error   // one of the Err* sentinels
	Point float64 // evaluation point, ErrNonFiniteIntegrand only
	Msg   string
	Cause error // integrand error, if any
}

func (e *Error) Error() string {
	return e.Msg
}

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func nonFinite(x float64, cause error) *Error {
	return &Error{
		Kind:  ErrNonFiniteIntegrand,
		Point: x,
		Msg:   fmt.Sprintf("integrand is not finite at x = %g", x),
		Cause: cause,
	}
}

func notConverged(format string, args ...any) *Error {
	return &Error{Kind: ErrNotConverged, Msg: "did not converge: " + fmt.Sprintf(format, args...)}
}
