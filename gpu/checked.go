package gpu

import (
	"fmt"
	"image"
)

// CallError is the panic value raised by Checked when the wrapped Device
// reports an error. It names the failing call so the failure surfaces where
// it happened instead of as a visual artifact frames later.
type CallError struct {
	Call string
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("gpu: %s failed: %v", e.Call, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Checked wraps a Device so that every call either succeeds or panics with a
// *CallError. There is no recoverable path: a failing graphics call is a
// programming or driver error.
type Checked struct {
	dev Device
}

// Check returns a Checked wrapper around dev.
func Check(dev Device) Checked {
	return Checked{dev: dev}
}

func (c Checked) check(call string, err error) {
	if err == nil {
		return
	}
	Logger().Error("gpu call failed", "call", call, "err", err)
	panic(&CallError{Call: call, Err: err})
}

func (c Checked) CreateTexture(desc TextureDesc) TextureID {
	id, err := c.dev.CreateTexture(desc)
	c.check("CreateTexture("+desc.Label+")", err)
	Logger().Debug("texture created", "label", desc.Label, "id", id, "w", desc.Width, "h", desc.Height, "format", desc.Format)
	return id
}

func (c Checked) WriteTexture(id TextureID, img image.Image) {
	c.check("WriteTexture", c.dev.WriteTexture(id, img))
}

func (c Checked) DeleteTexture(id TextureID) {
	c.check("DeleteTexture", c.dev.DeleteTexture(id))
}

func (c Checked) CreateRenderbuffer(desc RenderbufferDesc) RenderbufferID {
	id, err := c.dev.CreateRenderbuffer(desc)
	c.check("CreateRenderbuffer("+desc.Label+")", err)
	return id
}

func (c Checked) DeleteRenderbuffer(id RenderbufferID) {
	c.check("DeleteRenderbuffer", c.dev.DeleteRenderbuffer(id))
}

func (c Checked) CreateFramebuffer(desc FramebufferDesc) FramebufferID {
	id, err := c.dev.CreateFramebuffer(desc)
	c.check("CreateFramebuffer("+desc.Label+")", err)
	return id
}

func (c Checked) DeleteFramebuffer(id FramebufferID) {
	c.check("DeleteFramebuffer", c.dev.DeleteFramebuffer(id))
}

func (c Checked) SetDrawBuffers(fb FramebufferID, slots ...int) {
	c.check("SetDrawBuffers", c.dev.SetDrawBuffers(fb, slots...))
}

func (c Checked) FramebufferStatus(fb FramebufferID) Status {
	s, err := c.dev.FramebufferStatus(fb)
	c.check("FramebufferStatus", err)
	return s
}

func (c Checked) CreateVertexBuffer(desc VertexBufferDesc) BufferID {
	id, err := c.dev.CreateVertexBuffer(desc)
	c.check("CreateVertexBuffer("+desc.Label+")", err)
	return id
}

func (c Checked) DeleteVertexBuffer(id BufferID) {
	c.check("DeleteVertexBuffer", c.dev.DeleteVertexBuffer(id))
}

func (c Checked) Clear(st *State, mask ClearMask) {
	c.check("Clear", c.dev.Clear(st, mask))
}

func (c Checked) Draw(st *State, mode Primitive, first, count int) {
	c.check("Draw", c.dev.Draw(st, mode, first, count))
}
