package gpu

import (
	"fmt"
	"image"
)

// State is the binding context a Device reads when it executes Clear and
// Draw. It replaces implicit driver-global state: whoever changes a binding
// does so on a State value they hold, and the order of those changes is
// visible at the call site.
type State struct {
	Framebuffer  FramebufferID
	Viewport     image.Rectangle
	DepthTest    bool
	ClearColor   [4]float32
	ActiveUnit   int
	Units        [MaxTextureUnits]TextureID
	VertexBuffer BufferID
	Program      Program
}

// NewState returns a State bound to the default framebuffer with the given
// viewport size and depth testing enabled.
func NewState(width, height int) *State {
	return &State{
		Viewport:  image.Rect(0, 0, width, height),
		DepthTest: true,
	}
}

func (s *State) BindFramebuffer(fb FramebufferID) {
	s.Framebuffer = fb
}

func (s *State) SetViewport(x, y, width, height int) {
	s.Viewport = image.Rect(x, y, x+width, y+height)
}

func (s *State) SetDepthTest(enabled bool) {
	s.DepthTest = enabled
}

func (s *State) SetClearColor(r, g, b, a float32) {
	s.ClearColor = [4]float32{r, g, b, a}
}

// ActiveTexture selects the unit BindTexture writes to. An out of range unit
// panics with a *CallError, leaving every binding untouched.
func (s *State) ActiveTexture(unit int) {
	if unit < 0 || unit >= MaxTextureUnits {
		panic(&CallError{Call: fmt.Sprintf("ActiveTexture(%d)", unit), Err: ErrInvalidUnit})
	}
	s.ActiveUnit = unit
}

func (s *State) BindTexture(tex TextureID) {
	s.Units[s.ActiveUnit] = tex
}

func (s *State) BindVertexBuffer(vb BufferID) {
	s.VertexBuffer = vb
}

func (s *State) UseProgram(p Program) {
	s.Program = p
}

// Texture returns the texture bound on unit, or 0.
func (s *State) Texture(unit int) TextureID {
	if unit < 0 || unit >= MaxTextureUnits {
		return 0
	}
	return s.Units[unit]
}
