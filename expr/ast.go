// Package expr compiles untrusted arithmetic text in a single free variable
// into a numeric evaluator. Only a fixed whitelist of functions and
// constants can be referenced; there is no path from input text to
// arbitrary code.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is the interface implemented by all AST nodes.
type Expr interface {
	expr() // marker method
	String() string
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Value float64
}

func (e *NumberLit) expr() {}
func (e *NumberLit) String() string {
	return strconv.FormatFloat(e.Value, 'g', -1, 64)
}

// VarRef references either the free variable or a whitelisted constant.
type VarRef struct {
	Name string
	Pos  int
}

func (e *VarRef) expr() {}
func (e *VarRef) String() string {
	return e.Name
}

// CallExpr is a function call such as sin(x).
type CallExpr struct {
	Name string
	Args []Expr
	Pos  int
}

func (e *CallExpr) expr() {}
func (e *CallExpr) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Name, strings.Join(args, ", "))
}

// BinaryExpr is one of + - * / ^.
type BinaryExpr struct {
	Op    TokenKind
	Left  Expr
	Right Expr
}

func (e *BinaryExpr) expr() {}
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

// UnaryExpr is a sign applied to an operand.
type UnaryExpr struct {
	Op      TokenKind
	Operand Expr
}

func (e *UnaryExpr) expr() {}
func (e *UnaryExpr) String() string {
	return fmt.Sprintf("(%s%s)", e.Op, e.Operand)
}
