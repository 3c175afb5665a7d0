// Package anim evaluates keyframe motions against a node graph, morph
// system and IK solvers, and camera motions against a camera.
package anim

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	mmath "github.com/Faultbox/mmdanim/pkg/math"
)

// NodeKey is a bone keyframe. The curves shape the segment that ends at
// this key.
type NodeKey struct {
	Frame     int32
	Translate mgl32.Vec3
	Rotate    mgl32.Quat

	TranslateX mmath.Bezier
	TranslateY mmath.Bezier
	TranslateZ mmath.Bezier
	Rotation   mmath.Bezier
}

// MorphKey is a morph weight keyframe.
type MorphKey struct {
	Frame  int32
	Weight float32
}

// IKKey toggles an IK solver from Frame on.
type IKKey struct {
	Frame   int32
	Enabled bool
}

// CameraKey is a camera keyframe. Distance is signed as stored by motion
// files; only its magnitude is used for the view.
type CameraKey struct {
	Frame       int32
	Interest    mgl32.Vec3
	Rotate      mgl32.Vec3
	Distance    float32
	FOV         float32
	Perspective bool

	InterestX mmath.Bezier
	InterestY mmath.Bezier
	InterestZ mmath.Bezier
	Rotation  mmath.Bezier
	DistanceC mmath.Bezier
	FOVC      mmath.Bezier
}

func (k NodeKey) frame() int32   { return k.Frame }
func (k MorphKey) frame() int32  { return k.Frame }
func (k IKKey) frame() int32     { return k.Frame }
func (k CameraKey) frame() int32 { return k.Frame }

// NewNodeKey returns a key with linear curves.
func NewNodeKey(frame int32, t mgl32.Vec3, r mgl32.Quat) NodeKey {
	return NodeKey{
		Frame:      frame,
		Translate:  t,
		Rotate:     r,
		TranslateX: mmath.LinearBezier,
		TranslateY: mmath.LinearBezier,
		TranslateZ: mmath.LinearBezier,
		Rotation:   mmath.LinearBezier,
	}
}

// NewCameraKey returns a key with linear curves.
func NewCameraKey(frame int32, interest, rotate mgl32.Vec3, distance, fov float32) CameraKey {
	return CameraKey{
		Frame:       frame,
		Interest:    interest,
		Rotate:      rotate,
		Distance:    distance,
		FOV:         fov,
		Perspective: true,
		InterestX:   mmath.LinearBezier,
		InterestY:   mmath.LinearBezier,
		InterestZ:   mmath.LinearBezier,
		Rotation:    mmath.LinearBezier,
		DistanceC:   mmath.LinearBezier,
		FOVC:        mmath.LinearBezier,
	}
}

// Motion is a named set of keyframe tracks. Track names match nodes, morphs
// and IK solvers after name normalisation. Keys need not be sorted.
type Motion struct {
	Name   string
	Nodes  map[string][]NodeKey
	Morphs map[string][]MorphKey
	IK     map[string][]IKKey
	Camera []CameraKey
}

// NewMotion returns an empty motion.
func NewMotion(name string) *Motion {
	return &Motion{
		Name:   name,
		Nodes:  make(map[string][]NodeKey),
		Morphs: make(map[string][]MorphKey),
		IK:     make(map[string][]IKKey),
	}
}

// AddNodeKey appends a bone key.
func (m *Motion) AddNodeKey(name string, k NodeKey) {
	m.Nodes[name] = append(m.Nodes[name], k)
}

// AddMorphKey appends a morph key.
func (m *Motion) AddMorphKey(name string, k MorphKey) {
	m.Morphs[name] = append(m.Morphs[name], k)
}

// AddIKKey appends an IK toggle.
func (m *Motion) AddIKKey(name string, k IKKey) {
	m.IK[name] = append(m.IK[name], k)
}

// AddCameraKey appends a camera key.
func (m *Motion) AddCameraKey(k CameraKey) {
	m.Camera = append(m.Camera, k)
}

// MaxFrame returns the last keyed frame over bone, morph and IK tracks.
func (m *Motion) MaxFrame() int32 {
	var max int32
	for _, keys := range m.Nodes {
		max = maxFrame(keys, max)
	}
	for _, keys := range m.Morphs {
		max = maxFrame(keys, max)
	}
	for _, keys := range m.IK {
		max = maxFrame(keys, max)
	}
	return max
}

// CameraMaxFrame returns the last keyed camera frame.
func (m *Motion) CameraMaxFrame() int32 {
	return maxFrame(m.Camera, 0)
}

func maxFrame[K keyed](keys []K, max int32) int32 {
	for _, k := range keys {
		if f := k.frame(); f > max {
			max = f
		}
	}
	return max
}

// sorted returns a frame-ordered copy; keys on equal frames keep their
// input order.
func sorted[K keyed](keys []K) []K {
	out := make([]K, len(keys))
	copy(out, keys)
	sort.SliceStable(out, func(i, j int) bool { return out[i].frame() < out[j].frame() })
	return out
}
