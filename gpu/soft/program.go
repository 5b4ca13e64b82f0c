package soft

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/mreinstein/cobalt-bloom/gpu"
)

// ShadeFunc computes the outputs of one fragment. It writes f.Out[i] for each
// draw buffer i it produces.
type ShadeFunc func(f *Fragment)

// Program is a gpu.Program whose fragment stage is a Go function. Samplers
// are int uniforms that hold a texture unit index.
type Program struct {
	gpu.Uniforms
	label    string
	samplers []string
	shade    ShadeFunc
}

// NewProgram builds a program. uniforms lists the scalar uniforms, samplers
// the sampler uniforms, both addressable through SetInt/SetFloat.
func NewProgram(label string, uniforms, samplers []string, shade ShadeFunc) *Program {
	names := append(append([]string{}, uniforms...), samplers...)
	p := &Program{
		Uniforms: gpu.NewUniforms(names...),
		label:    label,
		samplers: samplers,
		shade:    shade,
	}
	// samplers default to consecutive units
	for i, s := range samplers {
		p.SetInt(s, int32(i))
	}
	return p
}

func (p *Program) Label() string { return p.label }

// Fragment is the per-pixel input and output of a ShadeFunc.
type Fragment struct {
	UV  mgl32.Vec2
	Out [gpu.MaxDrawBuffers]mgl32.Vec4

	prog     *Program
	textures map[string]*texture
}

func (f *Fragment) Int(name string) int32 { return f.prog.Int(name) }

func (f *Fragment) Float(name string) float32 { return f.prog.Float(name) }

// Sample reads the texture bound on the unit the sampler uniform points at.
// Unbound samplers read transparent black.
func (f *Fragment) Sample(sampler string, uv mgl32.Vec2) mgl32.Vec4 {
	t := f.textures[sampler]
	if t == nil {
		return mgl32.Vec4{}
	}
	return t.sample(uv)
}

// TexelSize returns 1/size of the texture behind sampler.
func (f *Fragment) TexelSize(sampler string) mgl32.Vec2 {
	t := f.textures[sampler]
	if t == nil {
		return mgl32.Vec2{}
	}
	return mgl32.Vec2{1 / float32(t.desc.Width), 1 / float32(t.desc.Height)}
}
