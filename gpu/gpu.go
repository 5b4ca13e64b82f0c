// Package gpu describes the small slice of a graphics API the bloom pipeline
// consumes: render targets built from texture and renderbuffer attachments,
// multiple draw buffers, completeness queries and fullscreen draws.
//
// Binding state (the bound framebuffer, texture units, viewport, depth test)
// lives in an explicit State value that callers pass to every command, rather
// than in hidden driver globals.
package gpu

import (
	"errors"
	"fmt"
	"image"
)

// Handles are opaque. Zero is "none"; framebuffer zero is the default
// (window) framebuffer.
type (
	TextureID      uint32
	RenderbufferID uint32
	FramebufferID  uint32
	BufferID       uint32
)

// DefaultFramebuffer is the device's output surface.
const DefaultFramebuffer FramebufferID = 0

const (
	// MaxTextureUnits is the number of texture units a State tracks.
	MaxTextureUnits = 8

	// MaxDrawBuffers is the largest number of simultaneous color outputs.
	MaxDrawBuffers = 8
)

var (
	ErrUnknownHandle  = errors.New("gpu: unknown handle")
	ErrInvalidSize    = errors.New("gpu: invalid size")
	ErrInvalidFormat  = errors.New("gpu: invalid format")
	ErrNoProgram      = errors.New("gpu: no program in use")
	ErrNoVertexBuffer = errors.New("gpu: no vertex buffer bound")
	ErrIncomplete     = errors.New("gpu: framebuffer incomplete")
	ErrFeedbackLoop   = errors.New("gpu: texture is both sampled and attached to the draw framebuffer")
	ErrUnsupported    = errors.New("gpu: unsupported operation")
	ErrInvalidUnit    = errors.New("gpu: texture unit out of range")
)

type Format int

const (
	FormatUndefined Format = iota
	FormatRGBA8
	FormatRGBA16Float
	FormatDepth24
)

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGBA16Float:
		return "RGBA16F"
	case FormatDepth24:
		return "Depth24"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// IsColor reports whether f can back a color attachment.
func (f Format) IsColor() bool {
	return f == FormatRGBA8 || f == FormatRGBA16Float
}

// IsDepth reports whether f can back a depth attachment.
func (f Format) IsDepth() bool {
	return f == FormatDepth24
}

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

type TextureDesc struct {
	Label  string
	Width  int
	Height int
	Format Format
	Filter Filter
}

type RenderbufferDesc struct {
	Label  string
	Width  int
	Height int
	Format Format
}

// FramebufferDesc lists color attachments by slot: Color[i] is attached at
// slot i. Depth is optional.
type FramebufferDesc struct {
	Label string
	Color []TextureID
	Depth RenderbufferID
}

// VertexLayout describes interleaved float32 vertices.
type VertexLayout struct {
	PositionSize int // 2 or 3
	UVSize       int // 0 or 2
}

// Stride returns the number of float32 values per vertex.
func (l VertexLayout) Stride() int {
	return l.PositionSize + l.UVSize
}

// LayoutPos2UV2 is the fullscreen quad layout: x, y, u, v.
var LayoutPos2UV2 = VertexLayout{PositionSize: 2, UVSize: 2}

type VertexBufferDesc struct {
	Label  string
	Data   []float32
	Layout VertexLayout
}

type Primitive int

const (
	TriangleList Primitive = iota
	TriangleStrip
)

type ClearMask uint8

const (
	ClearColor ClearMask = 1 << iota
	ClearDepth
)

// Status is the result of a framebuffer completeness query.
type Status int

const (
	StatusComplete Status = iota
	StatusMissingAttachment
	StatusIncompleteAttachment
	StatusMismatchedSize
	StatusTooManyAttachments
	StatusUnsupported
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusMissingAttachment:
		return "missing attachment"
	case StatusIncompleteAttachment:
		return "incomplete attachment"
	case StatusMismatchedSize:
		return "attachments differ in size"
	case StatusTooManyAttachments:
		return "too many color attachments"
	case StatusUnsupported:
		return "unsupported attachment format"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Device is the graphics-target API. Implementations are used from a single
// rendering goroutine.
type Device interface {
	CreateTexture(desc TextureDesc) (TextureID, error)
	// WriteTexture uploads img into an RGBA8 texture of the same size.
	WriteTexture(id TextureID, img image.Image) error
	DeleteTexture(id TextureID) error

	CreateRenderbuffer(desc RenderbufferDesc) (RenderbufferID, error)
	DeleteRenderbuffer(id RenderbufferID) error

	CreateFramebuffer(desc FramebufferDesc) (FramebufferID, error)
	DeleteFramebuffer(id FramebufferID) error
	// SetDrawBuffers declares which color slots receive fragment outputs
	// 0..n-1. New framebuffers draw to slot 0 only.
	SetDrawBuffers(fb FramebufferID, slots ...int) error
	FramebufferStatus(fb FramebufferID) (Status, error)

	CreateVertexBuffer(desc VertexBufferDesc) (BufferID, error)
	DeleteVertexBuffer(id BufferID) error

	Clear(st *State, mask ClearMask) error
	Draw(st *State, mode Primitive, first, count int) error
}
