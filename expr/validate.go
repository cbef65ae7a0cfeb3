package expr

import "fmt"

// Validate checks every identifier in the AST against the free variable
// name and the builtin whitelist. The first problem in source order is
// returned.
func Validate(e Expr, variable string) error {
	switch n := e.(type) {
	case *NumberLit:
		return nil

	case *VarRef:
		if n.Name == variable {
			return nil
		}
		b, ok := LookupBuiltin(n.Name)
		if !ok {
			return unknownIdentifier(n.Name, n.Pos, fmt.Sprintf("unknown identifier %q", n.Name))
		}
		if !b.Constant {
			return unknownIdentifier(n.Name, n.Pos, fmt.Sprintf("%s is a function and must be called, e.g. %s(%s)", n.Name, n.Name, variable))
		}
		return nil

	case *CallExpr:
		b, ok := LookupBuiltin(n.Name)
		if !ok || n.Name == variable {
			return unknownIdentifier(n.Name, n.Pos, fmt.Sprintf("unknown function %q", n.Name))
		}
		if b.Constant {
			return unknownIdentifier(n.Name, n.Pos, fmt.Sprintf("%s is a constant, not a function", n.Name))
		}
		if len(n.Args) != b.Arity {
			return arityMismatch(n.Name, n.Pos, b.Arity, len(n.Args))
		}
		for _, arg := range n.Args {
			if err := Validate(arg, variable); err != nil {
				return err
			}
		}
		return nil

	case *UnaryExpr:
		return Validate(n.Operand, variable)

	case *BinaryExpr:
		if err := Validate(n.Left, variable); err != nil {
			return err
		}
		return Validate(n.Right, variable)

	default:
		return &Error{Kind: ErrSyntax, Pos: -1, Msg: fmt.Sprintf("unsupported expression node %T", e)}
	}
}

// ValidateSyntax checks whether an expression string is syntactically valid.
// Returns nil if valid, or a parse error describing the problem.
func ValidateSyntax(expression string) error {
	_, err := Parse(expression)
	return err
}
