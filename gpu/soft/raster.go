package soft

import (
	"fmt"
	"image"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mreinstein/cobalt-bloom/gpu"
)

type vertex struct {
	pos mgl32.Vec3 // window space x, y; depth in [0, 1]
	uv  mgl32.Vec2
}

// drawTargets resolves the color buffers and depth buffer the bound
// framebuffer's draw buffers point at.
func (d *Device) drawTargets(id gpu.FramebufferID) ([]*texture, []gpu.TextureID, *renderbuffer, error) {
	if id == gpu.DefaultFramebuffer {
		return []*texture{d.surface}, []gpu.TextureID{0}, nil, nil
	}
	fb, ok := d.framebuffers[id]
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: framebuffer %d", gpu.ErrUnknownHandle, id)
	}
	status, err := d.FramebufferStatus(id)
	if err != nil {
		return nil, nil, nil, err
	}
	if status != gpu.StatusComplete {
		return nil, nil, nil, fmt.Errorf("%w: %q %v", gpu.ErrIncomplete, fb.desc.Label, status)
	}

	var targets []*texture
	var ids []gpu.TextureID
	for _, slot := range fb.drawBuffers {
		if slot >= len(fb.desc.Color) {
			return nil, nil, nil, fmt.Errorf("%w: draw buffer slot %d of %q has no attachment", gpu.ErrIncomplete, slot, fb.desc.Label)
		}
		tid := fb.desc.Color[slot]
		targets = append(targets, d.textures[tid])
		ids = append(ids, tid)
	}
	return targets, ids, d.renderbuffers[fb.desc.Depth], nil
}

func (d *Device) Clear(st *gpu.State, mask gpu.ClearMask) error {
	targets, _, depth, err := d.drawTargets(st.Framebuffer)
	if err != nil {
		return err
	}
	if mask&gpu.ClearColor != 0 {
		c := mgl32.Vec4(st.ClearColor)
		for _, t := range targets {
			for i := range t.pix {
				t.store(i, c)
			}
		}
	}
	if mask&gpu.ClearDepth != 0 && depth != nil {
		for i := range depth.depth {
			depth.depth[i] = 1
		}
	}
	return nil
}

func (d *Device) Draw(st *gpu.State, mode gpu.Primitive, first, count int) error {
	if st.Program == nil {
		return gpu.ErrNoProgram
	}
	prog, ok := st.Program.(*Program)
	if !ok {
		return fmt.Errorf("%w: program %T", gpu.ErrUnsupported, st.Program)
	}
	if st.VertexBuffer == 0 {
		return gpu.ErrNoVertexBuffer
	}
	vb, ok := d.buffers[st.VertexBuffer]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpu.ErrUnknownHandle, st.VertexBuffer)
	}
	targets, targetIDs, depth, err := d.drawTargets(st.Framebuffer)
	if err != nil {
		return err
	}

	frag := &Fragment{prog: prog, textures: make(map[string]*texture, len(prog.samplers))}
	sampled := make(map[string]gpu.TextureID, len(prog.samplers))
	for _, s := range prog.samplers {
		tid := st.Texture(int(prog.Int(s)))
		if tid == 0 {
			continue
		}
		t, ok := d.textures[tid]
		if !ok {
			return fmt.Errorf("%w: texture %d bound for %q", gpu.ErrUnknownHandle, tid, s)
		}
		for _, target := range targetIDs {
			if target == tid {
				return fmt.Errorf("%w: texture %d via %q in %q", gpu.ErrFeedbackLoop, tid, s, prog.label)
			}
		}
		frag.textures[s] = t
		sampled[s] = tid
	}

	if d.OnDraw != nil {
		d.OnDraw(DrawCall{
			Program:     prog.label,
			Framebuffer: st.Framebuffer,
			Targets:     targetIDs,
			Sampled:     sampled,
			Ints:        prog.Ints(),
			Viewport:    st.Viewport,
			DepthTest:   st.DepthTest,
		})
	}

	verts, err := vb.vertices(st.Viewport, first, count)
	if err != nil {
		return err
	}
	r := rasterizer{targets: targets, depthTest: st.DepthTest, frag: frag, shade: prog.shade}
	if depth != nil {
		r.depth = depth.depth
	}
	r.clip = st.Viewport.Intersect(image.Rect(0, 0, targets[0].desc.Width, targets[0].desc.Height))

	switch mode {
	case gpu.TriangleList:
		for i := 0; i+2 < len(verts); i += 3 {
			r.triangle(verts[i], verts[i+1], verts[i+2])
		}
	case gpu.TriangleStrip:
		for i := 0; i+2 < len(verts); i++ {
			r.triangle(verts[i], verts[i+1], verts[i+2])
		}
	default:
		return fmt.Errorf("%w: primitive %d", gpu.ErrUnsupported, mode)
	}
	return nil
}

// vertices maps count vertices starting at first from NDC into the viewport.
func (vb *vertexBuffer) vertices(vp image.Rectangle, first, count int) ([]vertex, error) {
	layout := vb.desc.Layout
	stride := layout.Stride()
	n := len(vb.desc.Data) / stride
	if first < 0 || count < 0 || first+count > n {
		return nil, fmt.Errorf("%w: vertices [%d, %d) of %d in %q", gpu.ErrInvalidSize, first, first+count, n, vb.desc.Label)
	}

	out := make([]vertex, count)
	for i := range out {
		v := vb.desc.Data[(first+i)*stride:]
		x, y, z := v[0], v[1], float32(0)
		if layout.PositionSize == 3 {
			z = v[2]
		}
		out[i].pos = mgl32.Vec3{
			float32(vp.Min.X) + (x+1)/2*float32(vp.Dx()),
			float32(vp.Min.Y) + (y+1)/2*float32(vp.Dy()),
			(z + 1) / 2,
		}
		if layout.UVSize == 2 {
			out[i].uv = mgl32.Vec2{v[layout.PositionSize], v[layout.PositionSize+1]}
		}
	}
	return out, nil
}

type rasterizer struct {
	targets   []*texture
	depth     []float32
	depthTest bool
	clip      image.Rectangle
	frag      *Fragment
	shade     ShadeFunc
}

func edge(a, b mgl32.Vec3, px, py float32) float32 {
	return (b.X()-a.X())*(py-a.Y()) - (b.Y()-a.Y())*(px-a.X())
}

// triangle shades every pixel whose center lies inside a, b, c.
func (r *rasterizer) triangle(a, b, c vertex) {
	area := edge(a.pos, b.pos, c.pos.X(), c.pos.Y())
	if area == 0 {
		return
	}

	minX := int(floor(min(a.pos.X(), b.pos.X(), c.pos.X())))
	maxX := int(floor(max(a.pos.X(), b.pos.X(), c.pos.X()))) + 1
	minY := int(floor(min(a.pos.Y(), b.pos.Y(), c.pos.Y())))
	maxY := int(floor(max(a.pos.Y(), b.pos.Y(), c.pos.Y()))) + 1
	box := image.Rect(minX, minY, maxX, maxY).Intersect(r.clip)

	width := r.targets[0].desc.Width
	for y := box.Min.Y; y < box.Max.Y; y++ {
		py := float32(y) + 0.5
		for x := box.Min.X; x < box.Max.X; x++ {
			px := float32(x) + 0.5
			w0 := edge(b.pos, c.pos, px, py) / area
			w1 := edge(c.pos, a.pos, px, py) / area
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			i := y*width + x
			if r.depthTest && r.depth != nil {
				z := a.pos.Z()*w0 + b.pos.Z()*w1 + c.pos.Z()*w2
				if z >= r.depth[i] {
					continue
				}
				r.depth[i] = z
			}

			r.frag.UV = a.uv.Mul(w0).Add(b.uv.Mul(w1)).Add(c.uv.Mul(w2))
			r.frag.Out = [gpu.MaxDrawBuffers]mgl32.Vec4{}
			r.shade(r.frag)
			for k, t := range r.targets {
				t.store(i, r.frag.Out[k])
			}
		}
	}
}
