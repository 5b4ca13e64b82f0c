// Package webgpu implements gpu.Device on WebGPU, presenting to a glfw
// window. The bind-and-draw model is replayed as one render pass per Clear
// or Draw, recorded into the command encoder of the current frame.
package webgpu

import (
	"errors"
	"os"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/mreinstein/cobalt-bloom/gpu"
)

// ErrNoFrame is returned by Clear and Draw outside BeginFrame/EndFrame.
var ErrNoFrame = errors.New("webgpu: no frame in progress")

type releaser interface {
	Release()
}

// frame holds what one BeginFrame/EndFrame pair records into.
type frame struct {
	view    *wgpu.TextureView
	encoder *wgpu.CommandEncoder

	// per-draw uniform buffers and bind groups, released after submit
	garbage []releaser
}

// Device is a gpu.Device backed by a WebGPU device and window surface.
type Device struct {
	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device
	queue   *wgpu.Queue
	config  *wgpu.SurfaceConfiguration

	nextID        uint32
	textures      map[gpu.TextureID]*texture
	renderbuffers map[gpu.RenderbufferID]*texture
	framebuffers  map[gpu.FramebufferID]*framebuffer
	buffers       map[gpu.BufferID]*vertexBuffer
	programs      []*Program

	// sampled in place of unbound texture units
	blank *texture

	frame *frame
}

// Init creates a WebGPU device presenting to window. WGPU_LOG_LEVEL selects
// the native log level and WGPU_FORCE_FALLBACK_ADAPTER=1 requests a software
// adapter.
func Init(window *glfw.Window) (d *Device, err error) {
	d = newDevice()

	runtime.LockOSThread()

	switch os.Getenv("WGPU_LOG_LEVEL") {
	case "OFF":
		wgpu.SetLogLevel(wgpu.LogLevelOff)
	case "ERROR":
		wgpu.SetLogLevel(wgpu.LogLevelError)
	case "WARN":
		wgpu.SetLogLevel(wgpu.LogLevelWarn)
	case "INFO":
		wgpu.SetLogLevel(wgpu.LogLevelInfo)
	case "DEBUG":
		wgpu.SetLogLevel(wgpu.LogLevelDebug)
	case "TRACE":
		wgpu.SetLogLevel(wgpu.LogLevelTrace)
	}

	forceFallbackAdapter := os.Getenv("WGPU_FORCE_FALLBACK_ADAPTER") == "1"

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	d.surface = instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	d.adapter, err = instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		return d, err
	}

	d.device, err = d.adapter.RequestDevice(nil)
	if err != nil {
		return d, err
	}
	d.queue = d.device.GetQueue()

	caps := d.surface.GetCapabilities(d.adapter)
	width, height := window.GetFramebufferSize()

	d.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      wgpu.TextureFormatBGRA8Unorm,
		Width:       uint32(max(width, 1)),
		Height:      uint32(max(height, 1)),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	d.surface.Configure(d.adapter, d.device, d.config)

	d.blank, err = d.createTexture(gpu.TextureDesc{
		Label:  "blank",
		Width:  1,
		Height: 1,
		Format: gpu.FormatRGBA8,
	})
	if err != nil {
		return d, err
	}

	gpu.Logger().Info("webgpu: device ready",
		"w", d.config.Width, "h", d.config.Height,
		"fallback", forceFallbackAdapter)
	return d, nil
}

func newDevice() *Device {
	return &Device{
		textures:      make(map[gpu.TextureID]*texture),
		renderbuffers: make(map[gpu.RenderbufferID]*texture),
		framebuffers:  make(map[gpu.FramebufferID]*framebuffer),
		buffers:       make(map[gpu.BufferID]*vertexBuffer),
	}
}

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

// SurfaceSize returns the size of the presented surface.
func (d *Device) SurfaceSize() (int, int) {
	return int(d.config.Width), int(d.config.Height)
}

// SetSurfaceSize reconfigures the surface. Non-positive sizes, as reported
// for a minimized window, are ignored.
func (d *Device) SetSurfaceSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	d.config.Width = uint32(width)
	d.config.Height = uint32(height)
	d.surface.Configure(d.adapter, d.device, d.config)

	gpu.Logger().Info("webgpu: surface resized", "w", width, "h", height)
}

// BeginFrame acquires the next surface texture and starts recording.
func (d *Device) BeginFrame() error {
	if d.frame != nil {
		return errors.New("webgpu: frame already in progress")
	}
	next, err := d.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := next.CreateView(nil)
	if err != nil {
		return err
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		return err
	}
	d.frame = &frame{view: view, encoder: encoder}
	return nil
}

// EndFrame submits everything recorded since BeginFrame and presents it.
func (d *Device) EndFrame() error {
	f := d.frame
	if f == nil {
		return ErrNoFrame
	}
	d.frame = nil

	defer func() {
		for _, r := range f.garbage {
			r.Release()
		}
		f.encoder.Release()
		f.view.Release()
	}()

	cmdBuffer, err := f.encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmdBuffer.Release()

	d.queue.Submit(cmdBuffer)
	d.surface.Present()
	return nil
}

// Release destroys every remaining resource and the device itself.
func (d *Device) Release() {
	for id, t := range d.textures {
		t.release()
		delete(d.textures, id)
	}
	for id, t := range d.renderbuffers {
		t.release()
		delete(d.renderbuffers, id)
	}
	for id, vb := range d.buffers {
		vb.buf.Release()
		delete(d.buffers, id)
	}
	for _, p := range d.programs {
		p.release()
	}
	d.programs = nil
	clear(d.framebuffers)

	if d.blank != nil {
		d.blank.release()
		d.blank = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	d.config = nil
}

var _ gpu.Device = (*Device)(nil)
