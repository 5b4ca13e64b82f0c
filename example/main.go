package main

import (
	"flag"
	"log/slog"
	"math"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/mreinstein/cobalt-bloom/bloom"
	"github.com/mreinstein/cobalt-bloom/gpu"
	"github.com/mreinstein/cobalt-bloom/gpu/webgpu"
)

// light is one quad of the demo scene. Colors above 1 end up in the bloom.
type light struct {
	min, max mgl32.Vec2
	color    mgl32.Vec3
	pulse    float32
}

var lights = []light{
	{min: mgl32.Vec2{-1, -1}, max: mgl32.Vec2{1, -0.6}, color: mgl32.Vec3{0.05, 0.05, 0.12}},
	{min: mgl32.Vec2{-0.7, -0.2}, max: mgl32.Vec2{-0.5, 0.2}, color: mgl32.Vec3{4, 1.2, 0.3}, pulse: 1.5},
	{min: mgl32.Vec2{-0.1, -0.1}, max: mgl32.Vec2{0.1, 0.1}, color: mgl32.Vec3{0.4, 2.5, 5}, pulse: 0.7},
	{min: mgl32.Vec2{0.5, 0.3}, max: mgl32.Vec2{0.55, 0.6}, color: mgl32.Vec3{3, 3, 3}},
	{min: mgl32.Vec2{0.4, -0.5}, max: mgl32.Vec2{0.8, -0.3}, color: mgl32.Vec3{0.6, 0.5, 0.4}},
}

func quad(a, b mgl32.Vec2) []float32 {
	return []float32{
		a.X(), a.Y(), 0, 0,
		b.X(), a.Y(), 1, 0,
		b.X(), b.Y(), 1, 1,
		a.X(), a.Y(), 0, 0,
		b.X(), b.Y(), 1, 1,
		a.X(), b.Y(), 0, 1,
	}
}

func main() {
	runtime.LockOSThread()

	configPath := flag.String("config", "", "TOML config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	bloom.SetLogger(logger)

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	dev, err := webgpu.Init(window)
	defer dev.Release()
	if err != nil {
		panic(err)
	}

	blur, err := dev.NewGaussianBlur()
	if err != nil {
		panic(err)
	}
	composite, err := dev.NewBloomComposite()
	if err != nil {
		panic(err)
	}
	scene, err := dev.NewBrightPassScene()
	if err != nil {
		panic(err)
	}

	width, height := dev.SurfaceSize()
	st := gpu.NewState(width, height)

	p := bloom.New(dev, st, cfg.Bloom.Options()...)
	if err := p.Initialize(width, height, blur, composite); err != nil {
		panic(err)
	}
	defer p.Release()

	var verts []float32
	for _, l := range lights {
		verts = append(verts, quad(l.min, l.max)...)
	}
	g := gpu.Check(dev)
	vb := g.CreateVertexBuffer(gpu.VertexBufferDesc{
		Label:  "scene lights",
		Data:   verts,
		Layout: gpu.LayoutPos2UV2,
	})
	defer g.DeleteVertexBuffer(vb)

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		updateWindowSize(dev, p, width, height)
	})

	target := time.Second / 120 // cap at ~120 FPS
	epoch := time.Now()

	for !window.ShouldClose() {
		start := time.Now()

		glfw.PollEvents()

		if window.GetKey(glfw.KeyEscape) == glfw.Press {
			window.SetShouldClose(true)
		}

		if err := dev.BeginFrame(); err != nil {
			if surfaceLost(err) {
				logger.Warn("skipping frame", "err", err)
				continue
			}
			panic(err)
		}

		p.Begin()

		st.UseProgram(scene)
		st.BindVertexBuffer(vb)
		scene.SetInt("useBackdrop", 0)

		t := float32(time.Since(epoch).Seconds())
		for i, l := range lights {
			c := l.color
			if l.pulse > 0 {
				c = c.Mul(0.75 + 0.25*float32(math.Sin(float64(t*l.pulse))))
			}
			scene.SetFloat("r", c.X())
			scene.SetFloat("g", c.Y())
			scene.SetFloat("b", c.Z())
			g.Draw(st, gpu.TriangleList, i*6, 6)
		}

		fbw, fbh := dev.SurfaceSize()
		p.End(mgl32.Vec2{float32(fbw), float32(fbh)})

		if err := dev.EndFrame(); err != nil {
			panic(err)
		}

		if sleep := target - time.Since(start); sleep > 0 {
			time.Sleep(sleep)
		}
	}
}

// surfaceLost reports errors from acquiring the surface texture that go
// away once the surface is reconfigured.
func surfaceLost(err error) bool {
	errstr := err.Error()
	switch {
	case strings.Contains(errstr, "Surface timed out"),
		strings.Contains(errstr, "Surface is outdated"),
		strings.Contains(errstr, "Surface was lost"):
		return true
	}
	return false
}

func updateWindowSize(dev *webgpu.Device, p *bloom.Pipeline, width, height int) {
	// minimized
	if width <= 0 || height <= 0 {
		return
	}

	dev.SetSurfaceSize(width, height)
	if err := p.Resize(width, height); err != nil {
		panic(err)
	}
}
