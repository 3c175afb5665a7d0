package main

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmdanim/internal/engine/anim"
	mmath "github.com/Faultbox/mmdanim/pkg/math"
)

// Curves in the 0..127 form stored by motion files.
var (
	easeInOut = mmath.BezierFromBytes(64, 0, 64, 127)
	easeOut   = mmath.BezierFromBytes(20, 80, 60, 127)
)

// proceduralMotion keys a sway cycle of period frames, repeated cycles
// times: the body bobs, the upper body twists, the left foot steps under
// IK, and the morphs pulse. The IK solver is switched off for the second
// half of the last cycle. A camera orbits the model once over the motion.
func proceduralMotion(hair, period, cycles int) *anim.Motion {
	m := anim.NewMotion("sway")
	half := int32(period / 2)

	for c := 0; c < cycles; c++ {
		f0 := int32(c * period)
		f1 := f0 + half

		k := anim.NewNodeKey(f0, mgl32.Vec3{}, mgl32.QuatIdent())
		m.AddNodeKey(boneCenter, k)
		k = anim.NewNodeKey(f1, mgl32.Vec3{0.5, -0.6, 0}, mgl32.QuatIdent())
		k.TranslateY = easeInOut
		m.AddNodeKey(boneCenter, k)

		k = anim.NewNodeKey(f0, mgl32.Vec3{}, mgl32.QuatRotate(-0.4, mmath.AxisY))
		m.AddNodeKey(boneUpper, k)
		k = anim.NewNodeKey(f1, mgl32.Vec3{}, mgl32.QuatRotate(0.4, mmath.AxisY).Mul(mgl32.QuatRotate(0.15, mmath.AxisX)))
		k.Rotation = easeInOut
		m.AddNodeKey(boneUpper, k)

		k = anim.NewNodeKey(f0, mgl32.Vec3{}, mgl32.QuatIdent())
		m.AddNodeKey(boneLegIKL, k)
		k = anim.NewNodeKey(f1, mgl32.Vec3{0, 2, 1.5}, mgl32.QuatIdent())
		k.TranslateY = easeOut
		k.TranslateZ = easeInOut
		m.AddNodeKey(boneLegIKL, k)

		m.AddMorphKey("膨らみ", anim.MorphKey{Frame: f0, Weight: 0})
		m.AddMorphKey("膨らみ", anim.MorphKey{Frame: f1, Weight: 1})
		m.AddMorphKey("暗い", anim.MorphKey{Frame: f1, Weight: 0})
		m.AddMorphKey("暗い", anim.MorphKey{Frame: f0 + int32(period) - 1, Weight: 0.6})
	}

	end := int32(period * cycles)
	for _, name := range []string{boneCenter, boneUpper, boneLegIKL} {
		m.AddNodeKey(name, anim.NewNodeKey(end, mgl32.Vec3{}, mgl32.QuatIdent()))
	}
	m.AddMorphKey("全部", anim.MorphKey{Frame: 0, Weight: 0})
	m.AddMorphKey("全部", anim.MorphKey{Frame: end, Weight: 1})

	m.AddIKKey(boneLegIKL, anim.IKKey{Frame: 0, Enabled: true})
	m.AddIKKey(boneLegIKL, anim.IKKey{Frame: end - half, Enabled: false})

	// The last hair bone only keys a small offset; it is evaluated after
	// physics so the key lands on top of the simulated strand.
	if hair > 0 {
		tip := fmt.Sprintf("%s%d", hairPrefix, hair)
		m.AddNodeKey(tip, anim.NewNodeKey(0, mgl32.Vec3{}, mgl32.QuatIdent()))
		m.AddNodeKey(tip, anim.NewNodeKey(end, mgl32.Vec3{}, mgl32.QuatRotate(0.2, mmath.AxisZ)))
	}

	// Four camera keys a quarter turn apart, with a cut before the last
	// one.
	interest := mgl32.Vec3{0, 10, 0}
	quarter := end / 4
	for i := int32(0); i < 3; i++ {
		c := anim.NewCameraKey(i*quarter, interest, mgl32.Vec3{-0.1, float32(i) * math.Pi / 2, 0}, -40, mgl32.DegToRad(30))
		c.Rotation = easeInOut
		m.AddCameraKey(c)
	}
	m.AddCameraKey(anim.NewCameraKey(3*quarter-1, interest, mgl32.Vec3{-0.1, math.Pi, 0}, -40, mgl32.DegToRad(30)))
	m.AddCameraKey(anim.NewCameraKey(3*quarter, interest.Add(mgl32.Vec3{0, 3, 0}), mgl32.Vec3{-0.3, math.Pi, 0}, -20, mgl32.DegToRad(45)))
	m.AddCameraKey(anim.NewCameraKey(end, interest, mgl32.Vec3{-0.1, 2 * math.Pi, 0}, -40, mgl32.DegToRad(30)))
	return m
}
