package xpbd

import (
	"fmt"
	"math"

	"github.com/akmonengine/feather/actor"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/mmdanim/internal/engine/physics"
)

// minExtent keeps degenerate rig shapes from having zero volume.
const minExtent = 1e-3

func extent(f float32) float64 {
	return math.Max(float64(f), minExtent)
}

// newShape builds the feather shape for desc. Capsules have no feather
// counterpart and use capsule below.
func newShape(desc physics.BodyDesc) (actor.ShapeInterface, error) {
	switch desc.Shape {
	case physics.ShapeSphere:
		return &actor.Sphere{Radius: extent(desc.Size[0])}, nil
	case physics.ShapeBox:
		return &actor.Box{HalfExtents: mgl64.Vec3{extent(desc.Size[0]), extent(desc.Size[1]), extent(desc.Size[2])}}, nil
	case physics.ShapeCapsule:
		return &capsule{Radius: extent(desc.Size[0]), Height: math.Max(float64(desc.Size[1]), 0)}, nil
	case physics.ShapePlane:
		return &actor.Plane{Normal: mgl64.Vec3{0, 1, 0}}, nil
	}
	return nil, fmt.Errorf("xpbd: body %q has unknown shape %d", desc.Name, desc.Shape)
}

// placePlane moves a plane to pass through t with its normal along t's
// local +Y. Feather reads planes in world space only.
func placePlane(p *actor.Plane, t actor.Transform) {
	p.Normal = t.Rotation.Rotate(mgl64.Vec3{0, 1, 0}).Normalize()
	p.Distance = -p.Normal.Dot(t.Position)
	p.ComputeAABB(actor.Transform{Rotation: mgl64.QuatIdent()})
}

// capsule is a cylinder of Height capped by hemispheres of Radius, with
// its axis along local Y.
type capsule struct {
	Radius float64
	Height float64
	aabb   actor.AABB
}

var _ actor.ShapeInterface = (*capsule)(nil)

// ends returns the segment end points in world space.
func (c *capsule) ends(t actor.Transform) (mgl64.Vec3, mgl64.Vec3) {
	half := t.Rotation.Rotate(mgl64.Vec3{0, c.Height / 2, 0})
	return t.Position.Add(half), t.Position.Sub(half)
}

func (c *capsule) ComputeAABB(t actor.Transform) {
	top, bottom := c.ends(t)
	r := mgl64.Vec3{c.Radius, c.Radius, c.Radius}
	var lo, hi mgl64.Vec3
	for i := 0; i < 3; i++ {
		lo[i] = math.Min(top[i], bottom[i])
		hi[i] = math.Max(top[i], bottom[i])
	}
	c.aabb = actor.AABB{Min: lo.Sub(r), Max: hi.Add(r)}
}

func (c *capsule) GetAABB() actor.AABB { return c.aabb }

func (c *capsule) volumes() (cylinder, caps float64) {
	r2 := c.Radius * c.Radius
	return math.Pi * r2 * c.Height, 4.0 / 3.0 * math.Pi * r2 * c.Radius
}

func (c *capsule) ComputeMass(density float64) float64 {
	cyl, caps := c.volumes()
	return density * (cyl + caps)
}

// ComputeInertia splits the mass between the cylinder and the two caps by
// volume; the caps are shifted off the centre by the parallel axis rule.
func (c *capsule) ComputeInertia(mass float64) mgl64.Mat3 {
	cyl, caps := c.volumes()
	mc := mass * cyl / (cyl + caps)
	ms := mass - mc
	r2, h := c.Radius*c.Radius, c.Height

	iy := mc*r2/2 + ms*2*r2/5
	ix := mc*(h*h/12+r2/4) + ms*(2*r2/5+h*h/4+3*h*c.Radius/8)
	return mgl64.Mat3{
		ix, 0, 0,
		0, iy, 0,
		0, 0, ix,
	}
}

func (c *capsule) Support(direction mgl64.Vec3) mgl64.Vec3 {
	p := mgl64.Vec3{0, c.Height / 2, 0}
	if direction.Y() < 0 {
		p[1] = -p[1]
	}
	if l := direction.Len(); l > epsilon {
		p = p.Add(direction.Mul(c.Radius / l))
	}
	return p
}

func (c *capsule) GetContactFeature(direction mgl64.Vec3, output *[8]mgl64.Vec3, count *int) {
	output[0] = c.Support(direction)
	*count = 1
}

// CollideWithPlane tests both cap centres against the plane.
func (c *capsule) CollideWithPlane(normal mgl64.Vec3, distance float64, t actor.Transform) (bool, actor.PlaneContact) {
	top, bottom := c.ends(t)
	var contacts actor.PlaneContact
	for _, p := range [2]mgl64.Vec3{top, bottom} {
		d := p.Dot(normal) + distance
		if depth := c.Radius - d; depth > 0 {
			contacts = append(contacts, actor.ContactPoint{Position: p.Sub(normal.Mul(d)), Penetration: depth})
		}
		if c.Height == 0 {
			break
		}
	}
	return len(contacts) > 0, contacts
}

func isNaN(f float32) bool { return f != f }

func validSize(s mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if s[i] < 0 || isNaN(s[i]) {
			return false
		}
	}
	return true
}
