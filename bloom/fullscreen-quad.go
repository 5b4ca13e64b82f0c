package bloom

import "github.com/mreinstein/cobalt-bloom/gpu"

// two triangles covering NDC -1..1 with 0..1 texture coordinates, drawn as a
// triangle strip
var quadVertices = []float32{
	// x, y, u, v
	-1, 1, 0, 1,
	-1, -1, 0, 0,
	1, 1, 1, 1,
	1, -1, 1, 0,
}

type fullscreenQuad struct {
	vb gpu.BufferID
}

// draw creates the vertex buffer on first use, then draws it.
func (q *fullscreenQuad) draw(dev gpu.Checked, st *gpu.State) {
	if q.vb == 0 {
		q.vb = dev.CreateVertexBuffer(gpu.VertexBufferDesc{
			Label:  "fullscreen quad",
			Data:   quadVertices,
			Layout: gpu.LayoutPos2UV2,
		})
		Logger().Debug("fullscreen quad created", "buffer", q.vb)
	}
	st.BindVertexBuffer(q.vb)
	dev.Draw(st, gpu.TriangleStrip, 0, 4)
	st.BindVertexBuffer(0)
}

func (q *fullscreenQuad) release(dev gpu.Checked) {
	if q.vb != 0 {
		dev.DeleteVertexBuffer(q.vb)
		q.vb = 0
	}
}
