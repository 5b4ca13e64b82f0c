package webgpu

import "github.com/mreinstein/cobalt-bloom/gpu/webgpu/shaders"

// NewGaussianBlur compiles the separable blur: "horizontal" selects the
// direction, "image" is the source.
func (d *Device) NewGaussianBlur() (*Program, error) {
	return d.NewProgram(ProgramDesc{
		Label:    "gaussian blur",
		WGSL:     shaders.Blur,
		Uniforms: []Uniform{{Name: "horizontal", Kind: UniformInt}},
		Samplers: []string{"image"},
	})
}

// NewBloomComposite compiles the final program: "scene" plus "bloomBlur"
// scaled by "bloomIntensity".
func (d *Device) NewBloomComposite() (*Program, error) {
	return d.NewProgram(ProgramDesc{
		Label:    "bloom composite",
		WGSL:     shaders.Composite,
		Uniforms: []Uniform{{Name: "bloomIntensity", Kind: UniformFloat}},
		Samplers: []string{"scene", "bloomBlur"},
	})
}

// NewBrightPassScene compiles a scene program that writes its color to
// output 0 and the part brighter than "threshold" to output 1.
func (d *Device) NewBrightPassScene() (*Program, error) {
	p, err := d.NewProgram(ProgramDesc{
		Label: "bright-pass scene",
		WGSL:  shaders.Scene,
		Uniforms: []Uniform{
			{Name: "r", Kind: UniformFloat},
			{Name: "g", Kind: UniformFloat},
			{Name: "b", Kind: UniformFloat},
			{Name: "threshold", Kind: UniformFloat},
			{Name: "useBackdrop", Kind: UniformInt},
		},
		Samplers: []string{"backdrop"},
	})
	if err != nil {
		return nil, err
	}
	p.SetFloat("threshold", 1)
	return p, nil
}
