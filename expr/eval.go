package expr

import (
	"fmt"
	"math"
)

// Variable is the name of the single free variable every expression is
// written in.
const Variable = "x"

// MaxLength bounds the accepted source length in bytes.
const MaxLength = 4096

// probePoints are tried in order by Compile; the first finite value
// passes the probe.
var probePoints = []float64{0, 1, -1, 0.5, 2, math.Pi}

// Program is a compiled, whitelist-checked expression. It is immutable and
// safe for concurrent use.
type Program struct {
	source string
	ast    Expr
	fn     func(x float64) float64
}

// Compile parses and validates src and returns an evaluator for it.
//
// After validation the program is probed at a few fixed points. When it is
// non-finite at all of them Compile returns the usable program together
// with an *Error of kind ErrUndefinedAtProbe; callers may still integrate
// over an interval where the expression is defined. Any other error means
// the returned program is nil.
func Compile(src string) (*Program, error) {
	if len(src) > MaxLength {
		return nil, &Error{Kind: ErrSyntax, Pos: -1, Msg: fmt.Sprintf("expression exceeds %d bytes", MaxLength)}
	}
	ast, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if err := Validate(ast, Variable); err != nil {
		return nil, err
	}

	prog := &Program{source: src, ast: ast, fn: build(ast)}
	if _, _, err := prog.Probe(); err != nil {
		return prog, err
	}
	return prog, nil
}

// MustCompile is like Compile but panics on any error, including a failed
// probe. Intended for tests and package-level fixtures.
func MustCompile(src string) *Program {
	prog, err := Compile(src)
	if err != nil {
		panic(fmt.Sprintf("expr: Compile(%q): %v", src, err))
	}
	return prog
}

// Eval evaluates the program at x. A non-finite result is reported as an
// *EvalError rather than returned.
func (p *Program) Eval(x float64) (float64, error) {
	v := p.fn(x)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &EvalError{X: x, Value: v}
	}
	return v, nil
}

// Probe returns the first probe point where the program is finite.
func (p *Program) Probe() (x, value float64, err error) {
	for _, pt := range probePoints {
		if v, evalErr := p.Eval(pt); evalErr == nil {
			return pt, v, nil
		}
	}
	return 0, 0, &Error{
		Kind: ErrUndefinedAtProbe,
		Pos:  -1,
		Msg:  fmt.Sprintf("expression is undefined at every probe point %v", probePoints),
	}
}

// Source returns the text the program was compiled from.
func (p *Program) Source() string { return p.source }

// AST returns the validated syntax tree.
func (p *Program) AST() Expr { return p.ast }

// String renders the fully parenthesized form of the expression.
func (p *Program) String() string { return p.ast.String() }

// build turns a validated AST into a closure tree. Validation guarantees
// every identifier resolves, so lookups here cannot fail.
func build(e Expr) func(float64) float64 {
	switch n := e.(type) {
	case *NumberLit:
		v := n.Value
		return func(float64) float64 { return v }

	case *VarRef:
		if n.Name == Variable {
			return func(x float64) float64 { return x }
		}
		v := builtins[n.Name].Value
		return func(float64) float64 { return v }

	case *CallExpr:
		fn := builtins[n.Name].fn
		arg := build(n.Args[0])
		return func(x float64) float64 { return fn(arg(x)) }

	case *UnaryExpr:
		operand := build(n.Operand)
		if n.Op == TokenMinus {
			return func(x float64) float64 { return -operand(x) }
		}
		return operand

	case *BinaryExpr:
		left, right := build(n.Left), build(n.Right)
		switch n.Op {
		case TokenPlus:
			return func(x float64) float64 { return left(x) + right(x) }
		case TokenMinus:
			return func(x float64) float64 { return left(x) - right(x) }
		case TokenStar:
			return func(x float64) float64 { return left(x) * right(x) }
		case TokenSlash:
			return func(x float64) float64 { return left(x) / right(x) }
		case TokenCaret:
			return func(x float64) float64 { return math.Pow(left(x), right(x)) }
		}
	}
	panic(fmt.Sprintf("expr: unexpected node %T in validated tree", e))
}
