package model

import "github.com/go-gl/mathgl/mgl32"

// Vertex is an interleaved output vertex.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	TexCoord mgl32.Vec2
}

// MaterialGroup is a run of indices drawn with one material.
type MaterialGroup struct {
	Material   int
	StartIndex int32
	IndexCount int32
}

// Mesh is the deformed mesh of one frame, ready for upload.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
	Groups   []MaterialGroup
	Bounds   Bounds
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// BuildOptions controls mesh output.
type BuildOptions struct {
	// ReverseWinding flips every triangle.
	ReverseWinding bool
	// SkipInvisible drops groups whose morphed alpha is zero.
	SkipInvisible bool
}

// BuildMesh interleaves the output of the last Update into a mesh. dst is
// reused when it is not nil.
func (m *Model) BuildMesh(dst *Mesh, opts BuildOptions) *Mesh {
	if dst == nil {
		dst = &Mesh{}
	}
	pos, nrm, uv := m.Positions(), m.Normals(), m.UVs()

	dst.Vertices = dst.Vertices[:0]
	dst.Bounds = Bounds{
		Min: mgl32.Vec3{1e10, 1e10, 1e10},
		Max: mgl32.Vec3{-1e10, -1e10, -1e10},
	}
	for i := range pos {
		dst.Vertices = append(dst.Vertices, Vertex{Position: pos[i], Normal: nrm[i], TexCoord: uv[i]})
		updateBounds(&dst.Bounds, pos[i])
	}
	if len(pos) == 0 {
		dst.Bounds = Bounds{}
	}

	src := m.desc.Indices
	mats := m.Materials()
	dst.Indices = dst.Indices[:0]
	dst.Groups = dst.Groups[:0]
	for _, sm := range m.desc.SubMeshes {
		if opts.SkipInvisible && sm.Material >= 0 && sm.Material < len(mats) && mats[sm.Material].Alpha == 0 {
			continue
		}
		start := len(dst.Indices)
		run := src[sm.BeginIndex : sm.BeginIndex+sm.VertexCount]
		for t := 0; t+2 < len(run); t += 3 {
			if opts.ReverseWinding {
				dst.Indices = append(dst.Indices, run[t], run[t+2], run[t+1])
			} else {
				dst.Indices = append(dst.Indices, run[t], run[t+1], run[t+2])
			}
		}
		dst.Groups = append(dst.Groups, MaterialGroup{
			Material:   sm.Material,
			StartIndex: int32(start),
			IndexCount: int32(len(dst.Indices) - start),
		})
	}
	return dst
}

func updateBounds(b *Bounds, p mgl32.Vec3) {
	for k := 0; k < 3; k++ {
		if p[k] < b.Min[k] {
			b.Min[k] = p[k]
		}
		if p[k] > b.Max[k] {
			b.Max[k] = p[k]
		}
	}
}
