package expr

import (
	"math"
	"sort"
)

// Builtin is one whitelisted identifier: either a named constant or a
// function of fixed arity.
type Builtin struct {
	Name        string
	Description string
	Constant    bool
	Value       float64 // constants only
	Arity       int     // functions only
	fn          func(float64) float64
}

// builtins is the complete set of identifiers an expression may reference
// besides the free variable. It is built once and never mutated.
var builtins = map[string]Builtin{
	"sin":  unary("sin", "sine (radians)", math.Sin),
	"cos":  unary("cos", "cosine (radians)", math.Cos),
	"tan":  unary("tan", "tangent (radians)", math.Tan),
	"sqrt": unary("sqrt", "square root", math.Sqrt),
	"exp":  unary("exp", "natural exponential", math.Exp),
	"log":  unary("log", "natural logarithm", math.Log),
	"abs":  unary("abs", "absolute value", math.Abs),
	"pi":   {Name: "pi", Description: "ratio of a circle's circumference to its diameter", Constant: true, Value: math.Pi},
	"e":    {Name: "e", Description: "Euler's number", Constant: true, Value: math.E},
}

func unary(name, desc string, fn func(float64) float64) Builtin {
	return Builtin{Name: name, Description: desc, Arity: 1, fn: fn}
}

// LookupBuiltin returns the whitelist entry for name. Lookup is
// case-sensitive.
func LookupBuiltin(name string) (Builtin, bool) {
	b, ok := builtins[name]
	return b, ok
}

// Builtins returns every whitelist entry sorted by name.
func Builtins() []Builtin {
	out := make([]Builtin, 0, len(builtins))
	for _, b := range builtins {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
