// Package skin deforms the rest mesh by the current bone pose.
package skin

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/num/dualquat"

	"github.com/Faultbox/mmdanim/internal/engine/node"
	"github.com/Faultbox/mmdanim/internal/parallel"
	mmath "github.com/Faultbox/mmdanim/pkg/math"
	"github.com/Faultbox/mmdanim/pkg/rig"
)

// Deltas supplies per-vertex morph offsets, indexed like the mesh.
type Deltas interface {
	Positions() []mgl32.Vec3
	UVs() []mgl32.Vec4
}

// sdef holds the rotation centres precomputed for an SDEF vertex.
type sdef struct {
	c, cr0, cr1 mgl32.Vec3
}

// Engine skins every vertex once per Update.
type Engine struct {
	graph    *node.Graph
	deltas   Deltas
	vertices []rig.Vertex
	sdef     []sdef

	transforms []mgl32.Mat4
	positions  []mgl32.Vec3
	normals    []mgl32.Vec3
	uvs        []mgl32.Vec2

	workers int
	pool    *parallel.WorkerPool
	ranges  []parallel.Range
	tasks   []func()
	rangesN int
}

// New prepares skinning for the model's vertices. deltas may be nil.
func New(m *rig.Model, g *node.Graph, deltas Deltas) (*Engine, error) {
	e := &Engine{
		graph:      g,
		deltas:     deltas,
		vertices:   m.Vertices,
		sdef:       make([]sdef, len(m.Vertices)),
		transforms: make([]mgl32.Mat4, g.Len()),
		positions:  make([]mgl32.Vec3, len(m.Vertices)),
		normals:    make([]mgl32.Vec3, len(m.Vertices)),
		uvs:        make([]mgl32.Vec2, len(m.Vertices)),
		workers:    1,
	}
	for i := range m.Vertices {
		v := &m.Vertices[i]
		switch v.Mode {
		case rig.BDEF1, rig.BDEF2, rig.BDEF4, rig.QDEF:
		case rig.SDEF:
			e.sdef[i] = precomputeSDEF(v)
		default:
			return nil, fmt.Errorf("vertex %d: %w (%d)", i, rig.ErrUnknownSkinning, v.Mode)
		}
		e.positions[i] = v.Position
		e.normals[i] = v.Normal
		e.uvs[i] = v.UV
	}
	return e, nil
}

func precomputeSDEF(v *rig.Vertex) sdef {
	w0 := v.Weights[0]
	w1 := 1 - w0
	c := v.SDEFC
	rw := v.SDEFR0.Mul(w0).Add(v.SDEFR1.Mul(w1))
	r0 := c.Add(v.SDEFR0).Sub(rw)
	r1 := c.Add(v.SDEFR1).Sub(rw)
	return sdef{
		c:   c,
		cr0: c.Add(r0).Mul(0.5),
		cr1: c.Add(r1).Mul(0.5),
	}
}

// SetParallelHint sets how many workers split the vertex range. Values
// below 2 skin on the calling goroutine.
func (e *Engine) SetParallelHint(workers int) {
	if workers < 1 {
		workers = 1
	}
	if workers == e.workers {
		return
	}
	e.workers = workers
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
	if workers > 1 {
		e.pool = parallel.NewWorkerPool(workers)
	}
	e.rangesN = -1
}

// ParallelHint returns the worker count.
func (e *Engine) ParallelHint() int { return e.workers }

// Close stops the worker pool.
func (e *Engine) Close() {
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
	e.workers = 1
}

// Positions returns the skinned positions.
func (e *Engine) Positions() []mgl32.Vec3 { return e.positions }

// Normals returns the skinned normals.
func (e *Engine) Normals() []mgl32.Vec3 { return e.normals }

// UVs returns the morphed texture coordinates.
func (e *Engine) UVs() []mgl32.Vec2 { return e.uvs }

// Update skins every vertex against the graph's current globals and
// returns once all output is written.
func (e *Engine) Update() {
	for i := range e.transforms {
		e.transforms[i] = e.graph.SkinTransform(i)
	}

	n := len(e.vertices)
	if e.workers < 2 || e.pool == nil {
		e.skinRange(0, n)
		return
	}

	if e.rangesN != n {
		e.ranges = parallel.Partition(n, e.workers)
		e.tasks = make([]func(), len(e.ranges))
		for i, r := range e.ranges {
			e.tasks[i] = func() { e.skinRange(r.Begin, r.End) }
		}
		e.rangesN = n
	}
	e.pool.ExecuteAll(e.tasks)
}

func (e *Engine) skinRange(begin, end int) {
	var posDeltas []mgl32.Vec3
	var uvDeltas []mgl32.Vec4
	if e.deltas != nil {
		posDeltas = e.deltas.Positions()
		uvDeltas = e.deltas.UVs()
	}

	for i := begin; i < end; i++ {
		v := &e.vertices[i]
		pos := v.Position
		if posDeltas != nil {
			pos = pos.Add(posDeltas[i])
		}

		switch v.Mode {
		case rig.SDEF:
			e.positions[i], e.normals[i] = e.skinSDEF(v, &e.sdef[i], pos)
		default:
			m := e.blend(v)
			e.positions[i] = mmath.TransformPoint(m, pos)
			e.normals[i] = mmath.Normalize(mmath.TransformDir(m, v.Normal))
		}

		uv := v.UV
		if uvDeltas != nil {
			uv = uv.Add(mgl32.Vec2{uvDeltas[i][0], uvDeltas[i][1]})
		}
		e.uvs[i] = uv
	}
}

// blend returns the vertex transform for the matrix-blended modes.
func (e *Engine) blend(v *rig.Vertex) mgl32.Mat4 {
	t := e.transforms
	switch v.Mode {
	case rig.BDEF1:
		return t[v.Bones[0]]
	case rig.BDEF2:
		w0 := v.Weights[0]
		if w0 == 1 {
			return t[v.Bones[0]]
		}
		return t[v.Bones[0]].Mul(w0).Add(t[v.Bones[1]].Mul(1 - w0))
	case rig.BDEF4:
		var m mgl32.Mat4
		for j := 0; j < 4; j++ {
			if v.Weights[j] != 0 {
				m = m.Add(t[v.Bones[j]].Mul(v.Weights[j]))
			}
		}
		return m
	case rig.QDEF:
		var dqs [4]dualquat.Number
		var ws [4]float32
		k := 0
		for j := 0; j < 4; j++ {
			if v.Weights[j] == 0 {
				continue
			}
			dqs[k] = mmath.DualQuatFromMat4(t[v.Bones[j]])
			ws[k] = v.Weights[j]
			k++
		}
		return mmath.BlendDualQuats(dqs[:k], ws[:k])
	}
	return mgl32.Ident4()
}

func (e *Engine) skinSDEF(v *rig.Vertex, p *sdef, pos mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	w0 := v.Weights[0]
	w1 := 1 - w0
	m0 := e.transforms[v.Bones[0]]
	m1 := e.transforms[v.Bones[1]]

	rot := mmath.Slerp(mmath.RotationOf(m0), mmath.RotationOf(m1), w1).Mat4()

	out := mmath.TransformDir(rot, pos.Sub(p.c)).
		Add(mmath.TransformPoint(m0, p.cr0).Mul(w0)).
		Add(mmath.TransformPoint(m1, p.cr1).Mul(w1))
	return out, mmath.Normalize(mmath.TransformDir(rot, v.Normal))
}
