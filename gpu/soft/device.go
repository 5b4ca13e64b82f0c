// Package soft is a CPU implementation of gpu.Device. It renders into float
// RGBA buffers, samples with clamp-to-edge nearest or bilinear filtering, and
// rasterizes triangles one pixel center at a time. It is the reference the
// bloom pipeline is tested against and the renderer behind bloomsnap.
//
// Rows are stored bottom-up: y = 0 is the bottom row, matching NDC y = -1
// and texture v = 0.
package soft

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mreinstein/cobalt-bloom/gpu"
)

type texture struct {
	desc gpu.TextureDesc
	pix  []mgl32.Vec4
}

func newTexture(desc gpu.TextureDesc) *texture {
	return &texture{desc: desc, pix: make([]mgl32.Vec4, desc.Width*desc.Height)}
}

func (t *texture) at(x, y int) mgl32.Vec4 {
	x = min(max(x, 0), t.desc.Width-1)
	y = min(max(y, 0), t.desc.Height-1)
	return t.pix[y*t.desc.Width+x]
}

func (t *texture) store(i int, c mgl32.Vec4) {
	if t.desc.Format == gpu.FormatRGBA8 {
		for k := range c {
			c[k] = float32(math.Round(float64(clamp01(c[k])*255))) / 255
		}
	}
	t.pix[i] = c
}

func (t *texture) sample(uv mgl32.Vec2) mgl32.Vec4 {
	w, h := float32(t.desc.Width), float32(t.desc.Height)
	if t.desc.Filter == gpu.FilterNearest {
		return t.at(int(floor(uv.X()*w)), int(floor(uv.Y()*h)))
	}

	x := uv.X()*w - 0.5
	y := uv.Y()*h - 0.5
	x0, y0 := floor(x), floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)

	c00 := t.at(ix, iy)
	c10 := t.at(ix+1, iy)
	c01 := t.at(ix, iy+1)
	c11 := t.at(ix+1, iy+1)

	bottom := c00.Mul(1 - fx).Add(c10.Mul(fx))
	top := c01.Mul(1 - fx).Add(c11.Mul(fx))
	return bottom.Mul(1 - fy).Add(top.Mul(fy))
}

type renderbuffer struct {
	desc  gpu.RenderbufferDesc
	depth []float32
}

type framebuffer struct {
	desc        gpu.FramebufferDesc
	drawBuffers []int
}

type vertexBuffer struct {
	desc gpu.VertexBufferDesc
}

// Counts is the number of live resources of each kind.
type Counts struct {
	Textures      int
	Renderbuffers int
	Framebuffers  int
	Buffers       int
}

// Total returns the sum of all live resources.
func (c Counts) Total() int {
	return c.Textures + c.Renderbuffers + c.Framebuffers + c.Buffers
}

// DrawCall describes one Draw as the device saw it.
type DrawCall struct {
	Program     string
	Framebuffer gpu.FramebufferID
	Targets     []gpu.TextureID
	Sampled     map[string]gpu.TextureID
	Ints        map[string]int32
	Viewport    image.Rectangle
	DepthTest   bool
}

// Device is a CPU gpu.Device. The zero value is not usable; call New.
type Device struct {
	surface *texture

	nextID        uint32
	textures      map[gpu.TextureID]*texture
	renderbuffers map[gpu.RenderbufferID]*renderbuffer
	framebuffers  map[gpu.FramebufferID]*framebuffer
	buffers       map[gpu.BufferID]*vertexBuffer

	// OnDraw, when set, is called before every draw is rasterized.
	OnDraw func(DrawCall)
}

// New returns a device whose default framebuffer is width x height.
func New(width, height int) *Device {
	d := &Device{
		textures:      make(map[gpu.TextureID]*texture),
		renderbuffers: make(map[gpu.RenderbufferID]*renderbuffer),
		framebuffers:  make(map[gpu.FramebufferID]*framebuffer),
		buffers:       make(map[gpu.BufferID]*vertexBuffer),
	}
	d.ResizeSurface(width, height)
	return d
}

// ResizeSurface reallocates the default framebuffer.
func (d *Device) ResizeSurface(width, height int) {
	d.surface = newTexture(gpu.TextureDesc{
		Label:  "surface",
		Width:  max(width, 1),
		Height: max(height, 1),
		Format: gpu.FormatRGBA16Float,
	})
}

// SurfaceSize returns the default framebuffer size.
func (d *Device) SurfaceSize() (int, int) {
	return d.surface.desc.Width, d.surface.desc.Height
}

// Live returns how many resources are currently allocated.
func (d *Device) Live() Counts {
	return Counts{
		Textures:      len(d.textures),
		Renderbuffers: len(d.renderbuffers),
		Framebuffers:  len(d.framebuffers),
		Buffers:       len(d.buffers),
	}
}

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.TextureID, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("%w: texture %q %dx%d", gpu.ErrInvalidSize, desc.Label, desc.Width, desc.Height)
	}
	if !desc.Format.IsColor() {
		return 0, fmt.Errorf("%w: texture %q %v", gpu.ErrInvalidFormat, desc.Label, desc.Format)
	}
	id := gpu.TextureID(d.id())
	d.textures[id] = newTexture(desc)
	return id, nil
}

func (d *Device) WriteTexture(id gpu.TextureID, img image.Image) error {
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", gpu.ErrUnknownHandle, id)
	}
	if t.desc.Format != gpu.FormatRGBA8 {
		return fmt.Errorf("%w: upload into %v texture", gpu.ErrInvalidFormat, t.desc.Format)
	}
	b := img.Bounds()
	if b.Dx() != t.desc.Width || b.Dy() != t.desc.Height {
		return fmt.Errorf("%w: image %dx%d into texture %dx%d", gpu.ErrInvalidSize, b.Dx(), b.Dy(), t.desc.Width, t.desc.Height)
	}
	for y := 0; y < b.Dy(); y++ {
		row := t.desc.Height - 1 - y
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			t.store(row*t.desc.Width+x, mgl32.Vec4{
				float32(c.R) / 0xffff,
				float32(c.G) / 0xffff,
				float32(c.B) / 0xffff,
				float32(c.A) / 0xffff,
			})
		}
	}
	return nil
}

func (d *Device) DeleteTexture(id gpu.TextureID) error {
	if id == 0 {
		return nil
	}
	if _, ok := d.textures[id]; !ok {
		return fmt.Errorf("%w: texture %d", gpu.ErrUnknownHandle, id)
	}
	delete(d.textures, id)
	return nil
}

func (d *Device) CreateRenderbuffer(desc gpu.RenderbufferDesc) (gpu.RenderbufferID, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("%w: renderbuffer %q %dx%d", gpu.ErrInvalidSize, desc.Label, desc.Width, desc.Height)
	}
	if !desc.Format.IsDepth() {
		return 0, fmt.Errorf("%w: renderbuffer %q %v", gpu.ErrInvalidFormat, desc.Label, desc.Format)
	}
	id := gpu.RenderbufferID(d.id())
	d.renderbuffers[id] = &renderbuffer{desc: desc, depth: make([]float32, desc.Width*desc.Height)}
	return id, nil
}

func (d *Device) DeleteRenderbuffer(id gpu.RenderbufferID) error {
	if id == 0 {
		return nil
	}
	if _, ok := d.renderbuffers[id]; !ok {
		return fmt.Errorf("%w: renderbuffer %d", gpu.ErrUnknownHandle, id)
	}
	delete(d.renderbuffers, id)
	return nil
}

func (d *Device) CreateFramebuffer(desc gpu.FramebufferDesc) (gpu.FramebufferID, error) {
	id := gpu.FramebufferID(d.id())
	d.framebuffers[id] = &framebuffer{
		desc:        gpu.FramebufferDesc{Label: desc.Label, Color: slices.Clone(desc.Color), Depth: desc.Depth},
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

	colors := make([]gpu.Attachment, len(fb.desc.Color))
	for i, tid := range fb.desc.Color {
		if t, ok := d.textures[tid]; ok {
			colors[i] = gpu.Attachment{Present: true, Width: t.desc.Width, Height: t.desc.Height, Format: t.desc.Format}
		}
	}
	var depth *gpu.Attachment
	if fb.desc.Depth != 0 {
		depth = &gpu.Attachment{}
		if rb, ok := d.renderbuffers[fb.desc.Depth]; ok {
			*depth = gpu.Attachment{Present: true, Width: rb.desc.Width, Height: rb.desc.Height, Format: rb.desc.Format}
		}
	}
	return gpu.CheckCompleteness(colors, depth), nil
}

func (d *Device) CreateVertexBuffer(desc gpu.VertexBufferDesc) (gpu.BufferID, error) {
	stride := desc.Layout.Stride()
	if desc.Layout.PositionSize < 2 || desc.Layout.PositionSize > 3 || stride == 0 || len(desc.Data)%stride != 0 {
		return 0, fmt.Errorf("%w: vertex buffer %q layout %+v with %d floats", gpu.ErrInvalidFormat, desc.Label, desc.Layout, len(desc.Data))
	}
	id := gpu.BufferID(d.id())
	d.buffers[id] = &vertexBuffer{desc: gpu.VertexBufferDesc{
		Label:  desc.Label,
		Data:   slices.Clone(desc.Data),
		Layout: desc.Layout,
	}}
	return id, nil
}

func (d *Device) DeleteVertexBuffer(id gpu.BufferID) error {
	if id == 0 {
		return nil
	}
	if _, ok := d.buffers[id]; !ok {
		return fmt.Errorf("%w: buffer %d", gpu.ErrUnknownHandle, id)
	}
	delete(d.buffers, id)
	return nil
}

// TextureSize returns the size of a live texture.
func (d *Device) TextureSize(id gpu.TextureID) (int, int, error) {
	t, ok := d.textures[id]
	if !ok {
		return 0, 0, fmt.Errorf("%w: texture %d", gpu.ErrUnknownHandle, id)
	}
	return t.desc.Width, t.desc.Height, nil
}

// TextureDesc returns the description a live texture was created with.
func (d *Device) TextureDesc(id gpu.TextureID) (gpu.TextureDesc, error) {
	t, ok := d.textures[id]
	if !ok {
		return gpu.TextureDesc{}, fmt.Errorf("%w: texture %d", gpu.ErrUnknownHandle, id)
	}
	return t.desc, nil
}

// TexturePixel reads one texel, y counted from the bottom row.
func (d *Device) TexturePixel(id gpu.TextureID, x, y int) (mgl32.Vec4, error) {
	t, ok := d.textures[id]
	if !ok {
		return mgl32.Vec4{}, fmt.Errorf("%w: texture %d", gpu.ErrUnknownHandle, id)
	}
	return t.at(x, y), nil
}

// SurfacePixel reads one pixel of the default framebuffer, y counted from the
// bottom row.
func (d *Device) SurfacePixel(x, y int) mgl32.Vec4 {
	return d.surface.at(x, y)
}

// Image returns the default framebuffer as an image, top row first, with
// colors clamped to [0, 1].
func (d *Device) Image() *image.NRGBA64 {
	return toImage(d.surface)
}

// TextureImage returns a live texture as an image, top row first.
func (d *Device) TextureImage(id gpu.TextureID) (*image.NRGBA64, error) {
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: texture %d", gpu.ErrUnknownHandle, id)
	}
	return toImage(t), nil
}

func toImage(t *texture) *image.NRGBA64 {
	w, h := t.desc.Width, t.desc.Height
	img := image.NewNRGBA64(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := t.pix[(h-1-y)*w+x]
			img.SetNRGBA64(x, y, color.NRGBA64{
				R: uint16(clamp01(c[0]) * 0xffff),
				G: uint16(clamp01(c[1]) * 0xffff),
				B: uint16(clamp01(c[2]) * 0xffff),
				A: uint16(clamp01(c[3]) * 0xffff),
			})
		}
	}
	return img
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}

func floor(v float32) float32 {
	return float32(math.Floor(float64(v)))
}
