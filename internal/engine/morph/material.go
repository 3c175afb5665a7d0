package morph

import (
	"github.com/go-gl/mathgl/mgl32"

	mmath "github.com/Faultbox/mmdanim/pkg/math"
	"github.com/Faultbox/mmdanim/pkg/rig"
)

// Factor is one bundle of material values touched by material morphs.
type Factor struct {
	Diffuse             mgl32.Vec3
	Alpha               float32
	Specular            mgl32.Vec3
	SpecularPower       float32
	Ambient             mgl32.Vec3
	EdgeColor           mgl32.Vec4
	EdgeSize            float32
	TextureFactor       mgl32.Vec4
	SphereTextureFactor mgl32.Vec4
	ToonTextureFactor   mgl32.Vec4
}

var (
	one3 = mgl32.Vec3{1, 1, 1}
	one4 = mgl32.Vec4{1, 1, 1, 1}
)

// MulIdentity is the neutral multiplicative factor.
func MulIdentity() Factor {
	return Factor{
		Diffuse:             one3,
		Alpha:               1,
		Specular:            one3,
		SpecularPower:       1,
		Ambient:             one3,
		EdgeColor:           one4,
		EdgeSize:            1,
		TextureFactor:       one4,
		SphereTextureFactor: one4,
		ToonTextureFactor:   one4,
	}
}

func factorOf(o *rig.MaterialOffset) Factor {
	return Factor{
		Diffuse:             o.Diffuse,
		Alpha:               o.Alpha,
		Specular:            o.Specular,
		SpecularPower:       o.SpecularPower,
		Ambient:             o.Ambient,
		EdgeColor:           o.EdgeColor,
		EdgeSize:            o.EdgeSize,
		TextureFactor:       o.TextureFactor,
		SphereTextureFactor: o.SphereTextureFactor,
		ToonTextureFactor:   o.ToonTextureFactor,
	}
}

func lerp(a, b, t float32) float32 { return a + t*(b-a) }

// Mul moves f toward f*val by weight.
func (f *Factor) Mul(val Factor, weight float32) {
	f.Diffuse = mmath.Mix(f.Diffuse, mmath.MulElem(f.Diffuse, val.Diffuse), weight)
	f.Alpha = lerp(f.Alpha, f.Alpha*val.Alpha, weight)
	f.Specular = mmath.Mix(f.Specular, mmath.MulElem(f.Specular, val.Specular), weight)
	f.SpecularPower = lerp(f.SpecularPower, f.SpecularPower*val.SpecularPower, weight)
	f.Ambient = mmath.Mix(f.Ambient, mmath.MulElem(f.Ambient, val.Ambient), weight)
	f.EdgeColor = mmath.Mix4(f.EdgeColor, mmath.MulElem4(f.EdgeColor, val.EdgeColor), weight)
	f.EdgeSize = lerp(f.EdgeSize, f.EdgeSize*val.EdgeSize, weight)
	f.TextureFactor = mmath.Mix4(f.TextureFactor, mmath.MulElem4(f.TextureFactor, val.TextureFactor), weight)
	f.SphereTextureFactor = mmath.Mix4(f.SphereTextureFactor, mmath.MulElem4(f.SphereTextureFactor, val.SphereTextureFactor), weight)
	f.ToonTextureFactor = mmath.Mix4(f.ToonTextureFactor, mmath.MulElem4(f.ToonTextureFactor, val.ToonTextureFactor), weight)
}

// Add adds val*weight to f.
func (f *Factor) Add(val Factor, weight float32) {
	f.Diffuse = f.Diffuse.Add(val.Diffuse.Mul(weight))
	f.Alpha += val.Alpha * weight
	f.Specular = f.Specular.Add(val.Specular.Mul(weight))
	f.SpecularPower += val.SpecularPower * weight
	f.Ambient = f.Ambient.Add(val.Ambient.Mul(weight))
	f.EdgeColor = f.EdgeColor.Add(val.EdgeColor.Mul(weight))
	f.EdgeSize += val.EdgeSize * weight
	f.TextureFactor = f.TextureFactor.Add(val.TextureFactor.Mul(weight))
	f.SphereTextureFactor = f.SphereTextureFactor.Add(val.SphereTextureFactor.Mul(weight))
	f.ToonTextureFactor = f.ToonTextureFactor.Add(val.ToonTextureFactor.Mul(weight))
}

// Material is a material's post-morph state. Texture factors are not
// folded into any base value; renderers apply Mul then Add to the sampled
// texture colour.
type Material struct {
	rig.Material

	TextureMul       mgl32.Vec4
	TextureAdd       mgl32.Vec4
	SphereTextureMul mgl32.Vec4
	SphereTextureAdd mgl32.Vec4
	ToonTextureMul   mgl32.Vec4
	ToonTextureAdd   mgl32.Vec4
}

// compose sets m to base*mul + add.
func (m *Material) compose(base *rig.Material, mul, add *Factor) {
	m.Material = *base
	m.Diffuse = mmath.MulElem(base.Diffuse, mul.Diffuse).Add(add.Diffuse)
	m.Alpha = base.Alpha*mul.Alpha + add.Alpha
	m.Specular = mmath.MulElem(base.Specular, mul.Specular).Add(add.Specular)
	m.SpecularPower = base.SpecularPower*mul.SpecularPower + add.SpecularPower
	m.Ambient = mmath.MulElem(base.Ambient, mul.Ambient).Add(add.Ambient)
	m.EdgeColor = mmath.MulElem4(base.EdgeColor, mul.EdgeColor).Add(add.EdgeColor)
	m.EdgeSize = base.EdgeSize*mul.EdgeSize + add.EdgeSize
	m.TextureMul, m.TextureAdd = mul.TextureFactor, add.TextureFactor
	m.SphereTextureMul, m.SphereTextureAdd = mul.SphereTextureFactor, add.SphereTextureFactor
	m.ToonTextureMul, m.ToonTextureAdd = mul.ToonTextureFactor, add.ToonTextureFactor
}
