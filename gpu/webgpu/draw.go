package webgpu

import (
	"fmt"
	"image"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/mreinstein/cobalt-bloom/gpu"
)

// passTargets is a resolved framebuffer: the views its draw buffers point
// at, their formats, and the optional depth view.
type passTargets struct {
	label   string
	views   []*wgpu.TextureView
	formats []wgpu.TextureFormat
	ids     []gpu.TextureID
	depth   *wgpu.TextureView
	width   int
	height  int
}

func (d *Device) passTargets(id gpu.FramebufferID) (*passTargets, error) {
	if id == gpu.DefaultFramebuffer {
		return &passTargets{
			label:   "surface",
			views:   []*wgpu.TextureView{d.frame.view},
			formats: []wgpu.TextureFormat{d.config.Format},
			ids:     []gpu.TextureID{0},
			width:   int(d.config.Width),
			height:  int(d.config.Height),
		}, nil
	}

	fb, ok := d.framebuffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: framebuffer %d", gpu.ErrUnknownHandle, id)
	}
	if status := d.status(fb); status != gpu.StatusComplete {
		return nil, fmt.Errorf("%w: %q %v", gpu.ErrIncomplete, fb.label, status)
	}

	pt := &passTargets{label: fb.label}
	for _, slot := range fb.drawBuffers {
		if slot >= len(fb.color) {
			return nil, fmt.Errorf("%w: draw buffer slot %d of %q has no attachment", gpu.ErrIncomplete, slot, fb.label)
		}
		tid := fb.color[slot]
		t := d.textures[tid]
		format, err := textureFormat(t.format)
		if err != nil {
			return nil, err
		}
		pt.views = append(pt.views, t.view)
		pt.formats = append(pt.formats, format)
		pt.ids = append(pt.ids, tid)
		pt.width, pt.height = t.width, t.height
	}
	if fb.depth != 0 {
		pt.depth = d.renderbuffers[fb.depth].view
	}
	return pt, nil
}

func (pt *passTargets) descriptor(colorLoad, depthLoad wgpu.LoadOp, clear [4]float32) *wgpu.RenderPassDescriptor {
	desc := &wgpu.RenderPassDescriptor{Label: pt.label}
	for _, v := range pt.views {
		desc.ColorAttachments = append(desc.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:       v,
			LoadOp:     colorLoad,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: float64(clear[0]), G: float64(clear[1]), B: float64(clear[2]), A: float64(clear[3])},
		})
	}
	if pt.depth != nil {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            pt.depth,
			DepthLoadOp:     depthLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	return desc
}

// viewport converts a bottom-left origin viewport into the top-left origin
// WebGPU uses, clipped to the target since WebGPU rejects viewports outside
// the attachment.
func viewport(vp image.Rectangle, width, height int) image.Rectangle {
	flipped := image.Rect(vp.Min.X, height-vp.Max.Y, vp.Max.X, height-vp.Min.Y)
	return flipped.Intersect(image.Rect(0, 0, width, height))
}

func (d *Device) Clear(st *gpu.State, mask gpu.ClearMask) error {
	if d.frame == nil {
		return ErrNoFrame
	}
	pt, err := d.passTargets(st.Framebuffer)
	if err != nil {
		return err
	}

	colorLoad, depthLoad := wgpu.LoadOpLoad, wgpu.LoadOpLoad
	if mask&gpu.ClearColor != 0 {
		colorLoad = wgpu.LoadOpClear
	}
	if mask&gpu.ClearDepth != 0 {
		depthLoad = wgpu.LoadOpClear
	}

	pass := d.frame.encoder.BeginRenderPass(pt.descriptor(colorLoad, depthLoad, st.ClearColor))
	defer pass.Release()
	return pass.End()
}

func (d *Device) Draw(st *gpu.State, mode gpu.Primitive, first, count int) error {
	if d.frame == nil {
		return ErrNoFrame
	}
	if st.Program == nil {
		return gpu.ErrNoProgram
	}
	prog, ok := st.Program.(*Program)
	if !ok {
		return fmt.Errorf("%w: program %T", gpu.ErrUnsupported, st.Program)
	}
	if st.VertexBuffer == 0 {
		return gpu.ErrNoVertexBuffer
	}
	vb, ok := d.buffers[st.VertexBuffer]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpu.ErrUnknownHandle, st.VertexBuffer)
	}
	if first < 0 || count < 0 || first+count > vb.count {
		return fmt.Errorf("%w: vertices [%d, %d) of %d in %q", gpu.ErrInvalidSize, first, first+count, vb.count, vb.label)
	}
	pt, err := d.passTargets(st.Framebuffer)
	if err != nil {
		return err
	}

	ub, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    prog.desc.Label + " uniforms",
		Contents: prog.uniformBytes(),
		Usage:    wgpu.BufferUsageUniform,
	})
	if err != nil {
		return err
	}
	d.frame.garbage = append(d.frame.garbage, ub)

	entries := []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: ub, Offset: 0, Size: wgpu.WholeSize},
	}
	for i, s := range prog.desc.Samplers {
		tid := st.Texture(int(prog.Int(s)))
		t := d.blank
		if tid != 0 {
			if t, ok = d.textures[tid]; !ok {
				return fmt.Errorf("%w: texture %d bound for %q", gpu.ErrUnknownHandle, tid, s)
			}
			for _, target := range pt.ids {
				if target == tid {
					return fmt.Errorf("%w: texture %d via %q in %q", gpu.ErrFeedbackLoop, tid, s, prog.desc.Label)
				}
			}
		}
		entries = append(entries,
			wgpu.BindGroupEntry{Binding: uint32(1 + 2*i), TextureView: t.view},
			wgpu.BindGroupEntry{Binding: uint32(2 + 2*i), Sampler: t.sampler},
		)
	}

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   prog.desc.Label,
		Layout:  prog.bindGroupLayout,
		Entries: entries,
	})
	if err != nil {
		return err
	}
	d.frame.garbage = append(d.frame.garbage, bg)

	rp, err := prog.pipeline(d, pt, st.DepthTest, vb.layout, mode)
	if err != nil {
		return err
	}

	vp := viewport(st.Viewport, pt.width, pt.height)
	if vp.Empty() {
		return nil
	}

	pass := d.frame.encoder.BeginRenderPass(pt.descriptor(wgpu.LoadOpLoad, wgpu.LoadOpLoad, st.ClearColor))
	defer pass.Release()

	pass.SetPipeline(rp)
	pass.SetBindGroup(0, bg, nil)
	pass.SetVertexBuffer(0, vb.buf, 0, wgpu.WholeSize)
	pass.SetViewport(float32(vp.Min.X), float32(vp.Min.Y), float32(vp.Dx()), float32(vp.Dy()), 0, 1)
	pass.Draw(uint32(count), 1, uint32(first), 0)
	return pass.End()
}
