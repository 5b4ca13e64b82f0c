package webgpu

import (
	"fmt"
	"image"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/mreinstein/cobalt-bloom/gpu"
	"golang.org/x/image/draw"
)

// WebGPU requires bytesPerRow to be a multiple of 256.
const rowAlignment = 256

// padRows copies tightly packed rows of rowBytes into rows padded to the
// copy alignment. It returns pix unchanged when no padding is needed.
func padRows(pix []byte, stride, rowBytes, rows int) ([]byte, int) {
	padded := (rowBytes + rowAlignment - 1) / rowAlignment * rowAlignment
	if padded == stride && len(pix) >= padded*rows {
		return pix, padded
	}
	out := make([]byte, padded*rows)
	for y := 0; y < rows; y++ {
		copy(out[y*padded:y*padded+rowBytes], pix[y*stride:y*stride+rowBytes])
	}
	return out, padded
}

func (d *Device) WriteTexture(id gpu.TextureID, img image.Image) error {
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", gpu.ErrUnknownHandle, id)
	}
	if t.format != gpu.FormatRGBA8 {
		return fmt.Errorf("%w: upload into %v texture", gpu.ErrInvalidFormat, t.format)
	}
	b := img.Bounds()
	if b.Dx() != t.width || b.Dy() != t.height {
		return fmt.Errorf("%w: image %dx%d into texture %dx%d", gpu.ErrInvalidSize, b.Dx(), b.Dy(), t.width, t.height)
	}

	// straight alpha, top row first, which is texture row 0
	rgba := image.NewNRGBA(image.Rect(0, 0, t.width, t.height))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	upload, bytesPerRow := padRows(rgba.Pix, rgba.Stride, t.width*4, t.height)

	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: 0},
			Aspect:   wgpu.TextureAspectAll,
		},
		upload,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(bytesPerRow),
			RowsPerImage: uint32(t.height),
		},
		&wgpu.Extent3D{
			Width:              uint32(t.width),
			Height:             uint32(t.height),
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}
