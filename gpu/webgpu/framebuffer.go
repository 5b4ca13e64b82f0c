package webgpu

import (
	"fmt"
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/mreinstein/cobalt-bloom/gpu"
)

// framebuffer is a record of attachments. WebGPU has no framebuffer object;
// the record becomes a render pass descriptor at draw time.
type framebuffer struct {
	label       string
	color       []gpu.TextureID
	depth       gpu.RenderbufferID
	drawBuffers []int
}

// vertexBuffer keeps the layout next to the buffer so pipelines can be keyed
// by it.
type vertexBuffer struct {
	label  string
	buf    *wgpu.Buffer
	layout gpu.VertexLayout
	count  int
}

func (d *Device) CreateFramebuffer(desc gpu.FramebufferDesc) (gpu.FramebufferID, error) {
	id := gpu.FramebufferID(d.id())
	d.framebuffers[id] = &framebuffer{
		label:       desc.Label,
		color:       slices.Clone(desc.Color),
		depth:       desc.Depth,
		drawBuffers: []int{0},
	}
	return id, nil
}

func (d *Device) DeleteFramebuffer(id gpu.FramebufferID) error {
	if id == gpu.DefaultFramebuffer {
		return nil
	}
	if _, ok := d.framebuffers[id]; !ok {
		return fmt.Errorf("%w: framebuffer %d", gpu.ErrUnknownHandle, id)
	}
	delete(d.framebuffers, id)
	return nil
}

func (d *Device) SetDrawBuffers(id gpu.FramebufferID, slots ...int) error {
	fb, ok := d.framebuffers[id]
	if !ok {
		return fmt.Errorf("%w: framebuffer %d", gpu.ErrUnknownHandle, id)
	}
	if len(slots) > gpu.MaxDrawBuffers {
		return fmt.Errorf("%w: %d draw buffers", gpu.ErrUnsupported, len(slots))
	}
	for _, s := range slots {
		if s < 0 || s >= gpu.MaxDrawBuffers {
			return fmt.Errorf("%w: draw buffer slot %d", gpu.ErrUnsupported, s)
		}
	}
	fb.drawBuffers = slices.Clone(slots)
	return nil
}

func (d *Device) FramebufferStatus(id gpu.FramebufferID) (gpu.Status, error) {
	if id == gpu.DefaultFramebuffer {
		return gpu.StatusComplete, nil
	}
	fb, ok := d.framebuffers[id]
	if !ok {
		return 0, fmt.Errorf("%w: framebuffer %d", gpu.ErrUnknownHandle, id)
	}
	return d.status(fb), nil
}

func (d *Device) status(fb *framebuffer) gpu.Status {
	colors := make([]gpu.Attachment, len(fb.color))
	for i, tid := range fb.color {
		colors[i] = d.textures[tid].attachment()
	}
	var depth *gpu.Attachment
	if fb.depth != 0 {
		a := d.renderbuffers[fb.depth].attachment()
		depth = &a
	}
	return gpu.CheckCompleteness(colors, depth)
}

func (d *Device) CreateVertexBuffer(desc gpu.VertexBufferDesc) (gpu.BufferID, error) {
	stride := desc.Layout.Stride()
	if desc.Layout.PositionSize < 2 || desc.Layout.PositionSize > 3 || stride == 0 || len(desc.Data) == 0 || len(desc.Data)%stride != 0 {
		return 0, fmt.Errorf("%w: vertex buffer %q layout %+v with %d floats", gpu.ErrInvalidFormat, desc.Label, desc.Layout, len(desc.Data))
	}
	buf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    desc.Label,
		Contents: wgpu.ToBytes(desc.Data),
		Usage:    wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return 0, err
	}
	id := gpu.BufferID(d.id())
	d.buffers[id] = &vertexBuffer{
		label:  desc.Label,
		buf:    buf,
		layout: desc.Layout,
		count:  len(desc.Data) / stride,
	}
	return id, nil
}

func (d *Device) DeleteVertexBuffer(id gpu.BufferID) error {
	if id == 0 {
		return nil
	}
	vb, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpu.ErrUnknownHandle, id)
	}
	vb.buf.Release()
	delete(d.buffers, id)
	return nil
}

// vertexLayout describes l as a WebGPU vertex buffer: position at location 0,
// uv at location 1.
func vertexLayout(l gpu.VertexLayout) wgpu.VertexBufferLayout {
	posFormat := wgpu.VertexFormatFloat32x2
	if l.PositionSize == 3 {
		posFormat = wgpu.VertexFormatFloat32x3
	}
	attrs := []wgpu.VertexAttribute{
		{ShaderLocation: 0, Offset: 0, Format: posFormat},
	}
	if l.UVSize == 2 {
		attrs = append(attrs, wgpu.VertexAttribute{
			ShaderLocation: 1,
			Offset:         uint64(l.PositionSize * 4),
			Format:         wgpu.VertexFormatFloat32x2,
		})
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(l.Stride() * 4),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}
}
