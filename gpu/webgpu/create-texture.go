package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/mreinstein/cobalt-bloom/gpu"
)

// texture backs both gpu textures and depth renderbuffers. Depth textures
// have no sampler.
type texture struct {
	label   string
	width   int
	height  int
	format  gpu.Format
	texture *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
}

func textureFormat(f gpu.Format) (wgpu.TextureFormat, error) {
	switch f {
	case gpu.FormatRGBA8:
		return wgpu.TextureFormatRGBA8Unorm, nil
	case gpu.FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float, nil
	case gpu.FormatDepth24:
		return wgpu.TextureFormatDepth24Plus, nil
	}
	return wgpu.TextureFormatUndefined, fmt.Errorf("%w: %v", gpu.ErrInvalidFormat, f)
}

func filterMode(f gpu.Filter) wgpu.FilterMode {
	if f == gpu.FilterLinear {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterModeNearest
}

func (d *Device) createTexture(desc gpu.TextureDesc) (*texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: texture %q %dx%d", gpu.ErrInvalidSize, desc.Label, desc.Width, desc.Height)
	}
	if !desc.Format.IsColor() {
		return nil, fmt.Errorf("%w: texture %q %v", gpu.ErrInvalidFormat, desc.Label, desc.Format)
	}
	format, err := textureFormat(desc.Format)
	if err != nil {
		return nil, err
	}

	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc
	t, err := d.allocTexture(desc.Label, desc.Width, desc.Height, format, usage)
	if err != nil {
		return nil, err
	}
	t.format = desc.Format

	filter := filterMode(desc.Filter)
	t.sampler, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label + " sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		MaxAnisotropy: 1,
		LodMinClamp:   0,
		LodMaxClamp:   0,
		Compare:       wgpu.CompareFunctionUndefined,
	})
	if err != nil {
		t.release()
		return nil, err
	}
	return t, nil
}

func (d *Device) createDepthTexture(desc gpu.RenderbufferDesc) (*texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: renderbuffer %q %dx%d", gpu.ErrInvalidSize, desc.Label, desc.Width, desc.Height)
	}
	if !desc.Format.IsDepth() {
		return nil, fmt.Errorf("%w: renderbuffer %q %v", gpu.ErrInvalidFormat, desc.Label, desc.Format)
	}
	format, err := textureFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	t, err := d.allocTexture(desc.Label, desc.Width, desc.Height, format, wgpu.TextureUsageRenderAttachment)
	if err != nil {
		return nil, err
	}
	t.format = desc.Format
	return t, nil
}

func (d *Device) allocTexture(label string, width, height int, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*texture, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		Format:        format,
		Usage:         usage,
		MipLevelCount: 1,
		Dimension:     wgpu.TextureDimension2D,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &texture{label: label, width: width, height: height, texture: tex, view: view}, nil
}

func (t *texture) release() {
	if t.sampler != nil {
		t.sampler.Release()
		t.sampler = nil
	}
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

func (t *texture) attachment() gpu.Attachment {
	if t == nil {
		return gpu.Attachment{}
	}
	return gpu.Attachment{Present: true, Width: t.width, Height: t.height, Format: t.format}
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.TextureID, error) {
	t, err := d.createTexture(desc)
	if err != nil {
		return 0, err
	}
	id := gpu.TextureID(d.id())
	d.textures[id] = t
	return id, nil
}

func (d *Device) DeleteTexture(id gpu.TextureID) error {
	if id == 0 {
		return nil
	}
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", gpu.ErrUnknownHandle, id)
	}
	t.release()
	delete(d.textures, id)
	return nil
}

func (d *Device) CreateRenderbuffer(desc gpu.RenderbufferDesc) (gpu.RenderbufferID, error) {
	t, err := d.createDepthTexture(desc)
	if err != nil {
		return 0, err
	}
	id := gpu.RenderbufferID(d.id())
	d.renderbuffers[id] = t
	return id, nil
}

func (d *Device) DeleteRenderbuffer(id gpu.RenderbufferID) error {
	if id == 0 {
		return nil
	}
	t, ok := d.renderbuffers[id]
	if !ok {
		return fmt.Errorf("%w: renderbuffer %d", gpu.ErrUnknownHandle, id)
	}
	t.release()
	delete(d.renderbuffers, id)
	return nil
}
