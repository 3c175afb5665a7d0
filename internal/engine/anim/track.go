package anim

import (
	"sort"

	mmath "github.com/Faultbox/mmdanim/pkg/math"
)

type keyed interface {
	frame() int32
}

// bound returns the index of the first key whose frame is after t, or
// len(keys). start is the index returned by the previous call; playback
// that advances within a segment or into the next one skips the binary
// search. The result does not depend on start.
func bound[K keyed](keys []K, t float32, start int) int {
	n := len(keys)
	if start >= 0 && start < n {
		if float32(keys[start].frame()) <= t {
			if start+1 >= n {
				return n
			}
			if float32(keys[start+1].frame()) > t {
				return start + 1
			}
		} else {
			if start == 0 {
				return 0
			}
			if float32(keys[start-1].frame()) <= t {
				return start
			}
		}
	}
	return sort.Search(n, func(i int) bool { return float32(keys[i].frame()) > t })
}

// Curve evaluation settings for Bezier segments.
type Curve struct {
	Epsilon    float32
	Iterations int
}

// DefaultCurve returns the package math defaults.
func DefaultCurve() Curve {
	return Curve{Epsilon: mmath.BezierEpsilon, Iterations: mmath.BezierIterations}
}

func (c Curve) ease(b mmath.Bezier, x float32) float32 {
	return b.EvalY(b.FindX(x, c.Epsilon, c.Iterations))
}

// segment returns the keys around t and the linear factor between them.
// When t is outside the keyed range, or on a key, both keys are the same.
func segment[K keyed](keys []K, t float32, cache *int) (k0, k1 K, s float32) {
	i := bound(keys, t, *cache)
	*cache = i
	switch {
	case i == len(keys):
		k := keys[len(keys)-1]
		return k, k, 0
	case i == 0:
		return keys[0], keys[0], 0
	}
	k0, k1 = keys[i-1], keys[i]
	f0, f1 := float32(k0.frame()), float32(k1.frame())
	return k0, k1, (t - f0) / (f1 - f0)
}
