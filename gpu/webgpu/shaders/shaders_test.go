package shaders

import (
	"strings"
	"testing"

	"github.com/gogpu/naga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShadersCompile(t *testing.T) {
	for name, src := range All() {
		t.Run(name, func(t *testing.T) {
			require.NotEmpty(t, src)

			spirv, err := naga.Compile(src)
			if err != nil {
				msg := err.Error()
				if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
					t.Skipf("naga feature not yet implemented: %v", err)
				}
				t.Fatalf("compile %s: %v", name, err)
			}
			require.GreaterOrEqual(t, len(spirv), 20)
			assert.Zero(t, len(spirv)%4)
		})
	}
}

func TestShadersFollowBindingConvention(t *testing.T) {
	for name, src := range All() {
		assert.Contains(t, src, "@group(0) @binding(0) var<uniform> u: Uniforms;", name)
		assert.Contains(t, src, "fn vs_main(@location(0) pos: vec2<f32>, @location(1) uv: vec2<f32>)", name)
		assert.Contains(t, src, "1.0 - uv.y", name)
	}
}
