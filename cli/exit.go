package cli

import (
	"fmt"

	"github.com/petal-labs/integrald"
)

// Process exit codes.
const (
	exitSuccess     = 0
	exitExpression  = 1
	exitRuntime     = 2
	exitIntegration = 3
	exitInput       = 4
	exitConfig      = 6
)

// ExitError tells main which exit code to use. Err, when set, is the
// failure that produced it.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string { return e.Message }

func (e *ExitError) Unwrap() error { return e.Err }

func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// solveError turns a Solve failure into an ExitError whose code follows the
// failure category and whose message is the user-facing one.
func solveError(err error) *ExitError {
	return &ExitError{
		Code:    exitCodeFor(integrald.Categorize(err)),
		Message: integrald.Message(err),
		Err:     err,
	}
}

func exitCodeFor(category integrald.Category) int {
	switch category {
	case integrald.CategoryNone:
		return exitSuccess
	case integrald.CategoryExpression:
		return exitExpression
	case integrald.CategoryIntegration:
		return exitIntegration
	case integrald.CategoryInput:
		return exitInput
	default:
		return exitRuntime
	}
}
