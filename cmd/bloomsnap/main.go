// Command bloomsnap renders one frame through the bloom pipeline on the CPU
// device and writes it as a PNG.
//
//	bloomsnap -in scene.png -out bloom.png -threshold 0.7
//
// Without -in a built-in scene of flat HDR quads is rendered.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mreinstein/cobalt-bloom/bloom"
	"github.com/mreinstein/cobalt-bloom/gpu"
	"github.com/mreinstein/cobalt-bloom/gpu/soft"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

type options struct {
	in, out, config string
	width, height   int
	passes          int
	intensity       float64
	threshold       float64
	scale           float64
	verbose         bool
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "bloomsnap:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	var o options
	fs := flag.NewFlagSet("bloomsnap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.in, "in", "", "scene image (png, bmp or webp); empty renders the built-in scene")
	fs.StringVar(&o.out, "out", "bloom.png", "output PNG, - for stdout")
	fs.StringVar(&o.config, "config", "", "TOML file with a [bloom] table")
	fs.IntVar(&o.width, "width", 0, "render width, defaults to the input width or 256")
	fs.IntVar(&o.height, "height", 0, "render height, defaults to the input height or 256")
	fs.IntVar(&o.passes, "passes", bloom.DefaultBlurPasses, "blur passes")
	fs.Float64Var(&o.intensity, "intensity", float64(bloom.DefaultIntensity), "bloom intensity")
	fs.Float64Var(&o.threshold, "threshold", 0.8, "bright-pass luminance threshold")
	fs.Float64Var(&o.scale, "scale", 1, "output scale factor")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	bloom.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	cfg := bloom.DefaultConfig()
	if o.config != "" {
		var err error
		if cfg, err = bloom.LoadConfig(o.config); err != nil {
			return err
		}
	}
	// explicit flags win over the config file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "passes":
			cfg.BlurPasses = o.passes
		case "intensity":
			cfg.Intensity = float32(o.intensity)
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	if o.scale <= 0 {
		return fmt.Errorf("scale %g must be positive", o.scale)
	}

	var backdrop image.Image
	if o.in != "" {
		img, err := readImage(o.in)
		if err != nil {
			return err
		}
		backdrop = img
		if o.width == 0 {
			o.width = img.Bounds().Dx()
		}
		if o.height == 0 {
			o.height = img.Bounds().Dy()
		}
	}
	if o.width == 0 {
		o.width = 256
	}
	if o.height == 0 {
		o.height = 256
	}

	frame, err := render(cfg, o, backdrop)
	if err != nil {
		return err
	}
	return writePNG(o.out, scale(frame, o.scale))
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// builtin is the scene rendered without -in: a dim floor, two bright
// lights and a mid-grey block that stays below the threshold.
var builtin = []struct {
	min, max mgl32.Vec2
	color    mgl32.Vec3
}{
	{mgl32.Vec2{-1, -1}, mgl32.Vec2{1, -0.7}, mgl32.Vec3{0.08, 0.08, 0.1}},
	{mgl32.Vec2{-0.6, -0.1}, mgl32.Vec2{-0.4, 0.1}, mgl32.Vec3{4, 1.5, 0.4}},
	{mgl32.Vec2{0.3, 0.3}, mgl32.Vec2{0.4, 0.6}, mgl32.Vec3{0.5, 2, 4}},
	{mgl32.Vec2{0.2, -0.5}, mgl32.Vec2{0.7, -0.3}, mgl32.Vec3{0.5, 0.5, 0.5}},
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

// render draws the scene between Begin and End and returns the composited
// frame. A backdrop, when given, is scaled to the render size and drawn
// fullscreen.
func render(cfg bloom.Config, o options, backdrop image.Image) (out *image.NRGBA64, err error) {
	// pipeline guarantees panic; report them as errors
	defer func() {
		if r := recover(); r != nil {
			var fe *bloom.FatalError
			var ce *gpu.CallError
			if e, ok := r.(error); ok && (errors.As(e, &fe) || errors.As(e, &ce)) {
				err = e
				return
			}
			panic(r)
		}
	}()

	dev := soft.New(o.width, o.height)
	st := gpu.NewState(o.width, o.height)
	g := gpu.Check(dev)

	scene := soft.NewBrightPassScene()
	scene.SetFloat("threshold", float32(o.threshold))

	p := bloom.New(dev, st, cfg.Options()...)
	if err := p.Initialize(o.width, o.height, soft.NewGaussianBlur(), soft.NewBloomComposite()); err != nil {
		return nil, err
	}
	defer p.Release()

	var verts []float32
	if backdrop != nil {
		verts = quad(mgl32.Vec2{-1, -1}, mgl32.Vec2{1, 1})
	} else {
		for _, q := range builtin {
			verts = append(verts, quad(q.min, q.max)...)
		}
	}
	vb := g.CreateVertexBuffer(gpu.VertexBufferDesc{Label: "bloomsnap scene", Data: verts, Layout: gpu.LayoutPos2UV2})
	defer g.DeleteVertexBuffer(vb)

	var tex gpu.TextureID
	if backdrop != nil {
		scaled := image.NewNRGBA(image.Rect(0, 0, o.width, o.height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), backdrop, backdrop.Bounds(), draw.Src, nil)

		tex = g.CreateTexture(gpu.TextureDesc{
			Label:  "backdrop",
			Width:  o.width,
			Height: o.height,
			Format: gpu.FormatRGBA8,
			Filter: gpu.FilterLinear,
		})
		defer g.DeleteTexture(tex)
		g.WriteTexture(tex, scaled)
	}

	p.Begin()

	st.UseProgram(scene)
	st.BindVertexBuffer(vb)
	if backdrop != nil {
		scene.SetInt("useBackdrop", 1)
		st.ActiveTexture(int(scene.Int("backdrop")))
		st.BindTexture(tex)
		g.Draw(st, gpu.TriangleList, 0, 6)
	} else {
		for i, q := range builtin {
			scene.SetFloat("r", q.color.X())
			scene.SetFloat("g", q.color.Y())
			scene.SetFloat("b", q.color.Z())
			g.Draw(st, gpu.TriangleList, i*6, 6)
		}
	}

	p.End(mgl32.Vec2{float32(o.width), float32(o.height)})

	report := p.LastFrame()
	bloom.Logger().Debug("bloomsnap: frame rendered", "steps", len(report.Steps), "final", report.Final)
	return dev.Image(), nil
}

func scale(img *image.NRGBA64, factor float64) image.Image {
	if factor == 1 {
		return img
	}
	b := img.Bounds()
	w := max(int(float64(b.Dx())*factor+0.5), 1)
	h := max(int(float64(b.Dy())*factor+0.5), 1)
	dst := image.NewNRGBA64(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func writePNG(path string, img image.Image) error {
	if path == "-" {
		return png.Encode(os.Stdout, img)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
