package expr

import (
	"fmt"
	"math"
)

// Sample sizes accepted by Program.Sample.
const (
	DefaultSamples = 101
	MaxSamples     = 10001
)

// Point is one sample of a program. Y is nil where the program has no
// finite value.
type Point struct {
	X float64  `json:"x"`
	Y *float64 `json:"y"`
}

// Sample evaluates the program at n evenly spaced points from a to b
// inclusive. Points where Eval fails are kept with a nil Y so a plot shows
// a gap instead of losing the x position.
func (p *Program) Sample(a, b float64, n int) ([]Point, error) {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) || !(a < b) {
		return nil, fmt.Errorf("expr: sample interval [%g, %g] is not a finite increasing range", a, b)
	}
	if n < 2 || n > MaxSamples {
		return nil, fmt.Errorf("expr: sample count %d outside [2, %d]", n, MaxSamples)
	}

	step := (b - a) / float64(n-1)
	points := make([]Point, n)
	for i := range points {
		x := a + float64(i)*step
		if i == n-1 {
			x = b
		}
		points[i].X = x
		if v, err := p.Eval(x); err == nil {
			points[i].Y = &v
		}
	}
	return points, nil
}
