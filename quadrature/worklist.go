package quadrature

import (
	"container/heap"
	"math"
	"sort"
)

type segment struct {
	lo, hi  float64
	depth   int
	kronrod float64
	err     float64
}

// worklist is a max-heap of pending segments ordered by error estimate.
// Ties break on the left endpoint so the split order never depends on
// anything but the inputs.
type worklist []segment

func (w worklist) Len() int { return len(w) }
func (w worklist) Less(i, j int) bool {
	if w[i].err != w[j].err {
		return w[i].err > w[j].err
	}
	return w[i].lo < w[j].lo
}
func (w worklist) Swap(i, j int) { w[i], w[j] = w[j], w[i] }

func (w *worklist) Push(x any) { *w = append(*w, x.(segment)) }

func (w *worklist) Pop() any {
	old := *w
	n := len(old)
	s := old[n-1]
	*w = old[:n-1]
	return s
}

func (w *worklist) push(s segment) { heap.Push(w, s) }
func (w *worklist) pop() segment   { return heap.Pop(w).(segment) }
func (w worklist) worst() segment  { return w[0] }

// totalError recomputes the summed error estimate from scratch.
func (w worklist) totalError() float64 {
	var sum float64
	for _, s := range w {
		sum += s.err
	}
	return sum
}

// result sums the leaves left to right.
func (w worklist) result() Result {
	leaves := make([]segment, len(w))
	copy(leaves, w)
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].lo < leaves[j].lo })

	var res Result
	for _, s := range leaves {
		res.Area += s.kronrod
		res.ErrorEstimate += s.err
		res.MaxDepth = max(res.MaxDepth, s.depth)
	}
	res.Intervals = len(leaves)
	return res
}

func newSegment(lo, hi float64, depth int, kronrod, gauss float64) segment {
	return segment{lo: lo, hi: hi, depth: depth, kronrod: kronrod, err: math.Abs(kronrod - gauss)}
}
