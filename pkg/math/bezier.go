package math

import "github.com/go-gl/mathgl/mgl32"

// Bezier search defaults. Bisection halves the interval each step, so 32
// iterations exhaust float32 precision.
const (
	BezierEpsilon    = 1e-5
	BezierIterations = 32
)

// Bezier is a cubic timing curve from (0,0) to (1,1) with two control
// points, as stored in motion keyframes.
type Bezier struct {
	P1 mgl32.Vec2
	P2 mgl32.Vec2
}

// LinearBezier is the identity curve.
var LinearBezier = Bezier{P1: mgl32.Vec2{20.0 / 127, 20.0 / 127}, P2: mgl32.Vec2{107.0 / 127, 107.0 / 127}}

// BezierFromBytes builds a curve from control points quantised to 0..127.
func BezierFromBytes(x1, y1, x2, y2 byte) Bezier {
	return Bezier{
		P1: mgl32.Vec2{float32(x1) / 127, float32(y1) / 127},
		P2: mgl32.Vec2{float32(x2) / 127, float32(y2) / 127},
	}
}

func cubic(t, p1, p2 float32) float32 {
	it := 1 - t
	return 3*t*it*it*p1 + 3*t*t*it*p2 + t*t*t
}

// EvalX returns the curve's x coordinate at parameter t.
func (b Bezier) EvalX(t float32) float32 {
	return cubic(t, b.P1[0], b.P2[0])
}

// EvalY returns the curve's y coordinate at parameter t.
func (b Bezier) EvalY(t float32) float32 {
	return cubic(t, b.P1[1], b.P2[1])
}

// FindX returns the parameter t whose x coordinate is x, by bisection.
// The search stops after maxIter steps even if eps was not reached.
func (b Bezier) FindX(x, eps float32, maxIter int) float32 {
	start, stop := float32(0), float32(1)
	t := float32(0.5)
	cur := b.EvalX(t)
	for i := 0; i < maxIter && absf(x-cur) > eps; i++ {
		if x < cur {
			stop = t
		} else {
			start = t
		}
		t = (start + stop) * 0.5
		cur = b.EvalX(t)
	}
	return t
}

// Ease maps a linear interpolation factor x in [0,1] through the curve.
func (b Bezier) Ease(x float32) float32 {
	return b.EvalY(b.FindX(x, BezierEpsilon, BezierIterations))
}
