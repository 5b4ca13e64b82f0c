// Package bloom implements a screen-space bloom post-process.
//
// A frame is bracketed by Begin and End. Between them, scene rendering writes
// into an off-screen target with two color outputs: the full scene color at
// slot 0 and a bright-pass color at slot 1. End blurs the bright-pass image
// with a separable Gaussian blur that ping-pongs between two targets, then
// draws the scene color plus the blurred bloom to the default framebuffer.
//
// Every graphics call goes through gpu.Checked, so an API error panics with
// the failing call's name. Setup guarantees (complete render targets, a
// composite program at draw time) panic with *FatalError. Both are meant to
// terminate the process.
package bloom

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mreinstein/cobalt-bloom/gpu"
)

const (
	DefaultBlurPasses         = 10
	DefaultIntensity  float32 = 1.0
)

// texture units the composite program reads from
const (
	sceneUnit = 0
	bloomUnit = 1
)

type Option func(*Pipeline)

// WithBlurPasses sets the number of one-directional blur iterations.
// Negative values are treated as zero, which composites the unblurred
// bright-pass image.
func WithBlurPasses(n int) Option {
	return func(p *Pipeline) { p.passes = max(n, 0) }
}

// WithIntensity scales the bloom term of the composite.
func WithIntensity(v float32) Option {
	return func(p *Pipeline) { p.intensity = v }
}

// FrameReport describes the blur schedule End ran for the last frame.
type FrameReport struct {
	Steps []BlurStep
	Final Source
}

// Pipeline owns the scene target, the ping-pong pair and the fullscreen quad.
// Programs are referenced, never owned.
type Pipeline struct {
	dev gpu.Checked
	st  *gpu.State

	width, height int
	passes        int
	intensity     float32

	blur      gpu.Program
	composite gpu.Program

	scene    renderTarget
	pingpong [2]renderTarget
	quad     fullscreenQuad

	// depth test state observed by Begin, restored by End
	depthTest bool
	captured  bool

	last FrameReport
}

// New returns a pipeline that issues commands to dev with binding state st.
// No GPU resources exist until Initialize.
func New(dev gpu.Device, st *gpu.State, opts ...Option) *Pipeline {
	p := &Pipeline{
		dev:       gpu.Check(dev),
		st:        st,
		passes:    DefaultBlurPasses,
		intensity: DefaultIntensity,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Initialize allocates every render target at width x height and stores the
// program references. Calling it again tears the previous targets down first.
func (p *Pipeline) Initialize(width, height int, blur, composite gpu.Program) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidSize, width, height)
	}
	p.blur = blur
	p.composite = composite
	p.allocate(width, height)
	return nil
}

// Resize tears down and reallocates every render target with the stored
// programs. It is safe before any frame and before Initialize.
func (p *Pipeline) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidSize, width, height)
	}
	Logger().Info("bloom: resize", "from_w", p.width, "from_h", p.height, "w", width, "h", height)
	p.allocate(width, height)
	return nil
}

func (p *Pipeline) allocate(width, height int) {
	p.releaseTargets()

	p.width, p.height = width, height
	p.scene = newRenderTarget(p.dev, "scene target", width, height, 2, true)
	for i := range p.pingpong {
		p.pingpong[i] = newRenderTarget(p.dev, fmt.Sprintf("ping-pong target %d", i), width, height, 1, false)
	}
	p.st.BindFramebuffer(gpu.DefaultFramebuffer)

	Logger().Info("bloom: targets allocated", "w", width, "h", height, "passes", p.passes)
}

func (p *Pipeline) releaseTargets() {
	p.scene.release(p.dev)
	for i := range p.pingpong {
		p.pingpong[i].release(p.dev)
	}
}

// Begin redirects rendering into the scene target and clears it. Scene
// geometry submitted until End lands in both outputs.
func (p *Pipeline) Begin() {
	guarantee(p.scene.fb != 0, ErrIncomplete, "scene target not allocated")

	p.depthTest = p.st.DepthTest
	p.captured = true

	p.st.BindFramebuffer(p.scene.fb)
	p.st.SetViewport(0, 0, p.width, p.height)
	// other passes may have changed the draw buffers since the last frame
	p.dev.SetDrawBuffers(p.scene.fb, 0, 1)
	p.dev.Clear(p.st, gpu.ClearColor|gpu.ClearDepth)
}

// End blurs the bright-pass output and composites it over the scene color
// into the default framebuffer at the given viewport size. Depth testing is
// off for the fullscreen draws and restored afterwards.
func (p *Pipeline) End(viewport mgl32.Vec2) {
	restore := p.st.DepthTest
	if p.captured {
		restore = p.depthTest
		p.captured = false
	}
	guarantee(p.scene.fb != 0, ErrIncomplete, "scene target not allocated")
	guarantee(p.blur != nil, ErrMissingProgram, "blur shader not initialized")

	p.st.SetDepthTest(false)
	p.st.BindFramebuffer(gpu.DefaultFramebuffer)

	steps, final := blurSchedule(p.passes)

	p.st.UseProgram(p.blur)
	p.blur.SetInt("image", 0)
	for _, step := range steps {
		p.st.BindFramebuffer(p.pingpong[step.Write].fb)
		p.st.SetViewport(0, 0, p.width, p.height)
		p.blur.SetInt("horizontal", boolInt(step.Horizontal))
		p.st.ActiveTexture(0)
		p.st.BindTexture(p.texture(step.Read))
		p.drawQuad()
	}
	p.st.BindFramebuffer(gpu.DefaultFramebuffer)

	p.st.SetViewport(0, 0, int(viewport.X()), int(viewport.Y()))
	guarantee(p.composite != nil, ErrMissingProgram, "final shader not initialized")
	p.st.UseProgram(p.composite)
	p.composite.SetInt("scene", sceneUnit)
	p.composite.SetInt("bloomBlur", bloomUnit)
	p.composite.SetFloat("bloomIntensity", p.intensity)

	p.st.ActiveTexture(sceneUnit)
	p.st.BindTexture(p.scene.color(0))
	p.st.ActiveTexture(bloomUnit)
	p.st.BindTexture(p.texture(final))
	p.drawQuad()

	// pipeline textures must not stay visible to the caller's next pass
	p.st.BindTexture(0)
	p.st.ActiveTexture(sceneUnit)
	p.st.BindTexture(0)

	p.st.SetDepthTest(restore)
	p.last = FrameReport{Steps: steps, Final: final}

	Logger().Debug("bloom: frame composited", "passes", len(steps), "final", final, "viewport", viewport)
}

func (p *Pipeline) drawQuad() {
	p.quad.draw(p.dev, p.st)
}

// Release destroys every owned resource. It may be called more than once.
func (p *Pipeline) Release() {
	p.releaseTargets()
	p.quad.release(p.dev)
	Logger().Info("bloom: released")
}

func (p *Pipeline) texture(s Source) gpu.TextureID {
	switch s {
	case SourcePingPong0:
		return p.pingpong[0].color(0)
	case SourcePingPong1:
		return p.pingpong[1].color(0)
	}
	return p.scene.color(1)
}

// Size returns the size the targets were last allocated at.
func (p *Pipeline) Size() (int, int) { return p.width, p.height }

func (p *Pipeline) BlurPasses() int { return p.passes }

func (p *Pipeline) Intensity() float32 { return p.intensity }

func (p *Pipeline) SceneFramebuffer() gpu.FramebufferID { return p.scene.fb }

func (p *Pipeline) SceneColor() gpu.TextureID { return p.scene.color(0) }

func (p *Pipeline) BrightPass() gpu.TextureID { return p.scene.color(1) }

// PingPong returns the color texture of ping-pong target i (0 or 1).
func (p *Pipeline) PingPong(i int) gpu.TextureID { return p.pingpong[i].color(0) }

// PingPongFramebuffer returns the framebuffer of ping-pong target i.
func (p *Pipeline) PingPongFramebuffer(i int) gpu.FramebufferID { return p.pingpong[i].fb }

// Texture returns the texture behind a blur source.
func (p *Pipeline) Texture(s Source) gpu.TextureID { return p.texture(s) }

// LastFrame returns the blur schedule of the most recent End.
func (p *Pipeline) LastFrame() FrameReport { return p.last }

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
