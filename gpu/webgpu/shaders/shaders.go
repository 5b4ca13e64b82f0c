// Package shaders holds the WGSL sources of the bloom programs.
//
// Every shader follows one binding convention: the scalar uniforms are a
// struct at @group(0) @binding(0), and sampler i is a texture at binding
// 1+2i followed by its sampler at 2+2i. Vertex input is position at
// location 0 and uv at location 1.
package shaders

import _ "embed"

//go:embed blur.wgsl
var Blur string

//go:embed composite.wgsl
var Composite string

//go:embed scene.wgsl
var Scene string

// All maps file names to sources.
func All() map[string]string {
	return map[string]string{
		"blur.wgsl":      Blur,
		"composite.wgsl": Composite,
		"scene.wgsl":     Scene,
	}
}
