package bloom

import (
	"fmt"

	"github.com/mreinstein/cobalt-bloom/gpu"
)

// renderTarget owns a framebuffer, its color textures and an optional depth
// renderbuffer. release destroys each handle at most once.
type renderTarget struct {
	label  string
	fb     gpu.FramebufferID
	colors []gpu.TextureID
	depth  gpu.RenderbufferID
}

// bloom targets keep over-range values and are sampled bilinearly
func colorTexture(dev gpu.Checked, label string, w, h int) gpu.TextureID {
	return dev.CreateTexture(gpu.TextureDesc{
		Label:  label,
		Width:  w,
		Height: h,
		Format: gpu.FormatRGBA16Float,
		Filter: gpu.FilterLinear,
	})
}

// newRenderTarget builds a target with nColors color attachments at slots
// 0..nColors-1, all declared as draw buffers, plus a depth renderbuffer when
// withDepth is set. The target must be complete or the process fails.
func newRenderTarget(dev gpu.Checked, label string, w, h, nColors int, withDepth bool) renderTarget {
	rt := renderTarget{label: label}

	slots := make([]int, nColors)
	for i := range nColors {
		rt.colors = append(rt.colors, colorTexture(dev, fmt.Sprintf("%s color %d", label, i), w, h))
		slots[i] = i
	}
	if withDepth {
		rt.depth = dev.CreateRenderbuffer(gpu.RenderbufferDesc{
			Label:  label + " depth",
			Width:  w,
			Height: h,
			Format: gpu.FormatDepth24,
		})
	}

	rt.fb = dev.CreateFramebuffer(gpu.FramebufferDesc{
		Label: label,
		Color: rt.colors,
		Depth: rt.depth,
	})
	dev.SetDrawBuffers(rt.fb, slots...)

	status := dev.FramebufferStatus(rt.fb)
	guarantee(status == gpu.StatusComplete, ErrIncomplete, "%s is not complete: %v", label, status)
	return rt
}

func (rt *renderTarget) release(dev gpu.Checked) {
	if rt.fb != 0 {
		dev.DeleteFramebuffer(rt.fb)
		rt.fb = 0
	}
	for i, tex := range rt.colors {
		if tex != 0 {
			dev.DeleteTexture(tex)
			rt.colors[i] = 0
		}
	}
	rt.colors = nil
	if rt.depth != 0 {
		dev.DeleteRenderbuffer(rt.depth)
		rt.depth = 0
	}
}

// color returns the texture at slot, or 0 when the target is not allocated.
func (rt *renderTarget) color(slot int) gpu.TextureID {
	if slot >= len(rt.colors) {
		return 0
	}
	return rt.colors[slot]
}
