package bloom

import (
	"errors"
	"image"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mreinstein/cobalt-bloom/gpu"
	"github.com/mreinstein/cobalt-bloom/gpu/soft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dev   *soft.Device
	st    *gpu.State
	p     *Pipeline
	scene *soft.Program
}

func newFixture(t *testing.T, w, h int, opts ...Option) *fixture {
	t.Helper()
	dev := soft.New(w, h)
	st := gpu.NewState(w, h)
	p := New(dev, st, opts...)
	require.NoError(t, p.Initialize(w, h, soft.NewGaussianBlur(), soft.NewBloomComposite()))
	return &fixture{dev: dev, st: st, p: p, scene: soft.NewBrightPassScene()}
}

// rect returns two triangles covering the NDC rectangle x0,y0 .. x1,y1.
func rect(x0, y0, x1, y1 float32) []float32 {
	return []float32{
		x0, y0, 0, 0,
		x1, y0, 1, 0,
		x1, y1, 1, 1,
		x0, y0, 0, 0,
		x1, y1, 1, 1,
		x0, y1, 0, 1,
	}
}

// drawRect fills an NDC rectangle with a flat color through the bright-pass
// scene program. It must run between Begin and End.
func (f *fixture) drawRect(t *testing.T, c mgl32.Vec3, x0, y0, x1, y1 float32) {
	t.Helper()
	vb, err := f.dev.CreateVertexBuffer(gpu.VertexBufferDesc{
		Label:  "rect",
		Data:   rect(x0, y0, x1, y1),
		Layout: gpu.LayoutPos2UV2,
	})
	require.NoError(t, err)
	defer f.dev.DeleteVertexBuffer(vb)

	f.st.UseProgram(f.scene)
	f.scene.SetFloat("r", c.X())
	f.scene.SetFloat("g", c.Y())
	f.scene.SetFloat("b", c.Z())
	f.st.BindVertexBuffer(vb)
	require.NoError(t, f.dev.Draw(f.st, gpu.TriangleList, 0, 6))
	f.st.BindVertexBuffer(0)
}

func (f *fixture) trace() *[]soft.DrawCall {
	var calls []soft.DrawCall
	f.dev.OnDraw = func(c soft.DrawCall) { calls = append(calls, c) }
	return &calls
}

// fatal runs fn and returns the *FatalError it panics with.
func fatal(t *testing.T, fn func()) (fe *FatalError) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a fatal panic")
		var ok bool
		fe, ok = r.(*FatalError)
		require.True(t, ok, "panic value %T: %v", r, r)
	}()
	fn()
	return nil
}

func TestInitializeAllocatesCompleteTargets(t *testing.T) {
	f := newFixture(t, 16, 12)

	w, h := f.p.Size()
	assert.Equal(t, 16, w)
	assert.Equal(t, 12, h)
	assert.Equal(t, soft.Counts{Textures: 4, Renderbuffers: 1, Framebuffers: 3}, f.dev.Live())

	for _, fb := range []gpu.FramebufferID{f.p.SceneFramebuffer(), f.p.PingPongFramebuffer(0), f.p.PingPongFramebuffer(1)} {
		status, err := f.dev.FramebufferStatus(fb)
		require.NoError(t, err)
		assert.Equal(t, gpu.StatusComplete, status)
	}
	for _, tex := range []gpu.TextureID{f.p.SceneColor(), f.p.BrightPass(), f.p.PingPong(0), f.p.PingPong(1)} {
		desc, err := f.dev.TextureDesc(tex)
		require.NoError(t, err)
		assert.Equal(t, gpu.FormatRGBA16Float, desc.Format)
		assert.Equal(t, gpu.FilterLinear, desc.Filter)
		assert.Equal(t, 16, desc.Width)
		assert.Equal(t, 12, desc.Height)
	}
	assert.Equal(t, gpu.DefaultFramebuffer, f.st.Framebuffer)
}

func TestInitializeRejectsInvalidSize(t *testing.T) {
	for _, size := range [][2]int{{0, 10}, {10, 0}, {-4, 4}, {4, -1}} {
		dev := soft.New(8, 8)
		p := New(dev, gpu.NewState(8, 8))
		err := p.Initialize(size[0], size[1], soft.NewGaussianBlur(), soft.NewBloomComposite())
		assert.ErrorIs(t, err, ErrInvalidSize, "size %v", size)
		assert.Zero(t, dev.Live().Total(), "size %v", size)
	}
}

func TestResizeReleasesPreviousTargets(t *testing.T) {
	f := newFixture(t, 8, 8)
	f.p.Begin()
	f.p.End(mgl32.Vec2{8, 8})
	oldScene := f.p.SceneColor()

	for _, size := range [][2]int{{16, 4}, {3, 5}, {8, 8}, {8, 8}} {
		require.NoError(t, f.p.Resize(size[0], size[1]))
		assert.Equal(t, soft.Counts{Textures: 4, Renderbuffers: 1, Framebuffers: 3, Buffers: 1}, f.dev.Live())

		w, h, err := f.dev.TextureSize(f.p.BrightPass())
		require.NoError(t, err)
		assert.Equal(t, size[0], w)
		assert.Equal(t, size[1], h)
	}
	_, err := f.dev.TextureDesc(oldScene)
	assert.ErrorIs(t, err, gpu.ErrUnknownHandle)

	assert.ErrorIs(t, f.p.Resize(0, 8), ErrInvalidSize)
	w, h := f.p.Size()
	assert.Equal(t, [2]int{8, 8}, [2]int{w, h})

	f.p.Release()
	assert.Zero(t, f.dev.Live().Total())
	assert.NotPanics(t, f.p.Release)
}

func TestResizeBeforeInitialize(t *testing.T) {
	dev := soft.New(8, 8)
	p := New(dev, gpu.NewState(8, 8))
	for _, size := range [][2]int{{16, 4}, {3, 5}, {8, 8}} {
		require.NoError(t, p.Resize(size[0], size[1]))
	}

	fresh := soft.New(8, 8)
	require.NoError(t, New(fresh, gpu.NewState(8, 8)).Initialize(8, 8, soft.NewGaussianBlur(), soft.NewBloomComposite()))
	assert.Equal(t, fresh.Live(), dev.Live())

	w, h := p.Size()
	assert.Equal(t, [2]int{8, 8}, [2]int{w, h})

	// targets exist but no programs were ever given
	p.Begin()
	fe := fatal(t, func() { p.End(mgl32.Vec2{8, 8}) })
	assert.ErrorIs(t, fe, ErrMissingProgram)
	assert.Equal(t, "blur shader not initialized", fe.Error())
}

func TestResizeMatchesFreshInitialize(t *testing.T) {
	f := newFixture(t, 8, 8)
	f.p.Begin()
	f.p.End(mgl32.Vec2{8, 8})
	for range 3 {
		require.NoError(t, f.p.Resize(12, 10))
	}

	fresh := newFixture(t, 12, 10)
	fresh.p.Begin()
	fresh.p.End(mgl32.Vec2{12, 10})

	assert.Equal(t, fresh.dev.Live(), f.dev.Live())
}

func TestQuadCreatedOnce(t *testing.T) {
	f := newFixture(t, 8, 8)
	assert.Zero(t, f.p.quad.vb)

	f.p.Begin()
	f.p.End(mgl32.Vec2{8, 8})
	vb := f.p.quad.vb
	require.NotZero(t, vb)

	require.NoError(t, f.p.Resize(6, 6))
	f.p.Begin()
	f.p.End(mgl32.Vec2{6, 6})
	assert.Equal(t, vb, f.p.quad.vb)
	assert.Equal(t, 1, f.dev.Live().Buffers)
}

func TestEndRestoresDepthTest(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		f := newFixture(t, 8, 8)
		calls := f.trace()

		f.st.SetDepthTest(enabled)
		f.p.Begin()
		// scene passes may flip it; End restores what Begin saw
		f.st.SetDepthTest(!enabled)
		f.p.End(mgl32.Vec2{8, 8})

		assert.Equal(t, enabled, f.st.DepthTest)
		require.NotEmpty(t, *calls)
		for _, c := range *calls {
			assert.False(t, c.DepthTest, "%s ran with depth test on", c.Program)
		}
	}
}

func TestEndWithoutBeginKeepsDepthTest(t *testing.T) {
	f := newFixture(t, 8, 8)
	f.st.SetDepthTest(true)
	f.p.End(mgl32.Vec2{8, 8})
	assert.True(t, f.st.DepthTest)
}

func TestEndDrawSequence(t *testing.T) {
	f := newFixture(t, 8, 6)
	calls := f.trace()

	f.p.Begin()
	f.p.End(mgl32.Vec2{10, 7})

	require.Len(t, *calls, DefaultBlurPasses+1)

	read := f.p.BrightPass()
	horizontal := int32(1)
	for i, c := range (*calls)[:DefaultBlurPasses] {
		write := int(horizontal)
		assert.Equal(t, "gaussian blur", c.Program)
		assert.Equal(t, f.p.PingPongFramebuffer(write), c.Framebuffer, "pass %d", i)
		assert.Equal(t, []gpu.TextureID{f.p.PingPong(write)}, c.Targets, "pass %d", i)
		assert.Equal(t, read, c.Sampled["image"], "pass %d", i)
		assert.NotContains(t, c.Targets, c.Sampled["image"], "pass %d", i)
		assert.Equal(t, horizontal, c.Ints["horizontal"], "pass %d", i)
		assert.Equal(t, image.Rect(0, 0, 8, 6), c.Viewport)

		read = f.p.PingPong(write)
		horizontal = 1 - horizontal
	}

	final := (*calls)[DefaultBlurPasses]
	assert.Equal(t, "bloom composite", final.Program)
	assert.Equal(t, gpu.DefaultFramebuffer, final.Framebuffer)
	assert.Equal(t, f.p.SceneColor(), final.Sampled["scene"])
	assert.Equal(t, f.p.PingPong(0), final.Sampled["bloomBlur"])
	assert.Equal(t, int32(sceneUnit), final.Ints["scene"])
	assert.Equal(t, int32(bloomUnit), final.Ints["bloomBlur"])
	assert.Equal(t, image.Rect(0, 0, 10, 7), final.Viewport)

	assert.Equal(t, SourcePingPong0, f.p.LastFrame().Final)
	assert.Len(t, f.p.LastFrame().Steps, DefaultBlurPasses)

	// nothing the pipeline owns stays bound for the caller
	for unit := range gpu.MaxTextureUnits {
		assert.Zero(t, f.st.Texture(unit), "unit %d", unit)
	}
	assert.Equal(t, gpu.DefaultFramebuffer, f.st.Framebuffer)
}

func TestBeginTargetsScene(t *testing.T) {
	f := newFixture(t, 8, 6)
	f.st.SetViewport(0, 0, 100, 100)

	f.p.Begin()
	assert.Equal(t, f.p.SceneFramebuffer(), f.st.Framebuffer)
	assert.Equal(t, image.Rect(0, 0, 8, 6), f.st.Viewport)

	calls := f.trace()
	f.drawRect(t, mgl32.Vec3{2, 2, 2}, -1, -1, 1, 1)
	require.Len(t, *calls, 1)
	assert.Equal(t, []gpu.TextureID{f.p.SceneColor(), f.p.BrightPass()}, (*calls)[0].Targets)
}

func TestZeroPassesCompositesBrightPass(t *testing.T) {
	f := newFixture(t, 8, 8, WithBlurPasses(0))
	calls := f.trace()

	f.p.Begin()
	f.p.End(mgl32.Vec2{8, 8})

	require.Len(t, *calls, 1)
	assert.Equal(t, f.p.BrightPass(), (*calls)[0].Sampled["bloomBlur"])
	assert.Equal(t, SourceBrightPass, f.p.LastFrame().Final)
	assert.Equal(t, f.p.BrightPass(), f.p.Texture(f.p.LastFrame().Final))
	assert.Empty(t, f.p.LastFrame().Steps)
}

func TestOddPassesEndInPingPongOne(t *testing.T) {
	f := newFixture(t, 8, 8, WithBlurPasses(3))
	calls := f.trace()

	f.p.Begin()
	f.p.End(mgl32.Vec2{8, 8})

	require.Len(t, *calls, 4)
	assert.Equal(t, f.p.PingPong(1), (*calls)[3].Sampled["bloomBlur"])
	assert.Equal(t, f.p.PingPong(1), f.p.Texture(f.p.LastFrame().Final))
	assert.Equal(t, f.p.PingPong(0), f.p.Texture(SourcePingPong0))
}

func TestBloomSpreadsBrightLight(t *testing.T) {
	f := newFixture(t, 64, 64)

	f.p.Begin()
	// bright square over pixels 30..33, dim square over pixels 0..7
	f.drawRect(t, mgl32.Vec3{4, 4, 4}, -0.0625, -0.0625, 0.0625, 0.0625)
	f.drawRect(t, mgl32.Vec3{0.5, 0.5, 0.5}, -1, -1, -0.75, -0.75)
	f.p.End(mgl32.Vec2{64, 64})

	center := f.dev.SurfacePixel(32, 32)
	assert.Greater(t, center.X(), float32(4))

	// light leaks past the square's edges, evenly on both sides
	left := f.dev.SurfacePixel(28, 32)
	right := f.dev.SurfacePixel(35, 32)
	assert.Greater(t, left.X(), float32(0))
	assert.InDelta(t, left.X(), right.X(), 1e-4)
	above := f.dev.SurfacePixel(32, 36)
	assert.Greater(t, above.Y(), float32(0))

	// below-threshold color passes through unchanged
	dim := f.dev.SurfacePixel(2, 2)
	assert.InDelta(t, 0.5, dim.X(), 1e-6)

	// beyond the kernel reach nothing changes
	far := f.dev.SurfacePixel(63, 0)
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, far)
}

func TestZeroIntensityShowsSceneOnly(t *testing.T) {
	f := newFixture(t, 16, 16, WithIntensity(0))

	f.p.Begin()
	f.drawRect(t, mgl32.Vec3{3, 2, 1}, -0.25, -0.25, 0.25, 0.25)
	f.p.End(mgl32.Vec2{16, 16})

	assert.InDelta(t, 3, f.dev.SurfacePixel(8, 8).X(), 1e-6)
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, f.dev.SurfacePixel(1, 8))
}

func TestEndWithoutCompositeIsFatal(t *testing.T) {
	dev := soft.New(8, 8)
	p := New(dev, gpu.NewState(8, 8))
	require.NoError(t, p.Initialize(8, 8, soft.NewGaussianBlur(), nil))

	p.Begin()
	fe := fatal(t, func() { p.End(mgl32.Vec2{8, 8}) })
	assert.ErrorIs(t, fe, ErrMissingProgram)
	assert.Equal(t, "final shader not initialized", fe.Error())
}

func TestBeginBeforeInitializeIsFatal(t *testing.T) {
	p := New(soft.New(8, 8), gpu.NewState(8, 8))
	fe := fatal(t, p.Begin)
	assert.ErrorIs(t, fe, ErrIncomplete)
}

// incompleteDevice reports every offscreen framebuffer as incomplete.
type incompleteDevice struct {
	*soft.Device
}

func (incompleteDevice) FramebufferStatus(gpu.FramebufferID) (gpu.Status, error) {
	return gpu.StatusIncompleteAttachment, nil
}

func TestIncompleteTargetIsFatal(t *testing.T) {
	p := New(incompleteDevice{soft.New(8, 8)}, gpu.NewState(8, 8))
	fe := fatal(t, func() {
		_ = p.Initialize(8, 8, soft.NewGaussianBlur(), soft.NewBloomComposite())
	})
	assert.ErrorIs(t, fe, ErrIncomplete)
	assert.Contains(t, fe.Error(), "scene target is not complete")
}

// mismatchedDevice reports the framebuffer created with label as having
// attachments of different sizes.
type mismatchedDevice struct {
	*soft.Device
	label string
	fb    gpu.FramebufferID
}

func (d *mismatchedDevice) CreateFramebuffer(desc gpu.FramebufferDesc) (gpu.FramebufferID, error) {
	id, err := d.Device.CreateFramebuffer(desc)
	if desc.Label == d.label {
		d.fb = id
	}
	return id, err
}

func (d *mismatchedDevice) FramebufferStatus(id gpu.FramebufferID) (gpu.Status, error) {
	if d.fb != 0 && id == d.fb {
		return gpu.StatusMismatchedSize, nil
	}
	return d.Device.FramebufferStatus(id)
}

func TestIncompletePingPongNamesIndex(t *testing.T) {
	for _, label := range []string{"ping-pong target 0", "ping-pong target 1"} {
		t.Run(label, func(t *testing.T) {
			p := New(&mismatchedDevice{Device: soft.New(8, 8), label: label}, gpu.NewState(8, 8))
			fe := fatal(t, func() {
				_ = p.Initialize(8, 8, soft.NewGaussianBlur(), soft.NewBloomComposite())
			})
			assert.ErrorIs(t, fe, ErrIncomplete)
			assert.Equal(t, label+" is not complete: attachments differ in size", fe.Error())
		})
	}
}

// failingDevice rejects every texture allocation.
type failingDevice struct {
	*soft.Device
}

var errOutOfMemory = errors.New("out of memory")

func (failingDevice) CreateTexture(gpu.TextureDesc) (gpu.TextureID, error) {
	return 0, errOutOfMemory
}

func TestFailingCallPanics(t *testing.T) {
	p := New(failingDevice{soft.New(8, 8)}, gpu.NewState(8, 8))

	defer func() {
		r := recover()
		ce, ok := r.(*gpu.CallError)
		require.True(t, ok, "panic value %T: %v", r, r)
		assert.Equal(t, "CreateTexture(scene target color 0)", ce.Call)
		assert.ErrorIs(t, ce, errOutOfMemory)
	}()
	_ = p.Initialize(8, 8, soft.NewGaussianBlur(), soft.NewBloomComposite())
}

func TestLargeTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 800x600 blur in short mode")
	}
	f := newFixture(t, 800, 600)
	f.p.Begin()
	f.drawRect(t, mgl32.Vec3{5, 5, 5}, -0.1, -0.1, 0.1, 0.1)
	f.p.End(mgl32.Vec2{800, 600})

	assert.Greater(t, f.dev.SurfacePixel(400, 300).X(), float32(5))
	f.p.Release()
	assert.Zero(t, f.dev.Live().Total())
}
