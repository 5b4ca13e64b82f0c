package soft

import "github.com/go-gl/mathgl/mgl32"

// gaussian weights for a 9-tap kernel: center, then offsets 1..4
var gaussWeights = [5]float32{0.227027, 0.1945946, 0.1216216, 0.054054, 0.016216}

var luma = mgl32.Vec3{0.2126, 0.7152, 0.0722}

// NewGaussianBlur returns the separable blur program: one direction per draw,
// selected by the int uniform "horizontal", sampling "image".
func NewGaussianBlur() *Program {
	return NewProgram("gaussian blur", []string{"horizontal"}, []string{"image"}, func(f *Fragment) {
		ts := f.TexelSize("image")
		dir := mgl32.Vec2{0, ts.Y()}
		if f.Int("horizontal") != 0 {
			dir = mgl32.Vec2{ts.X(), 0}
		}

		res := f.Sample("image", f.UV).Mul(gaussWeights[0])
		for i := 1; i < len(gaussWeights); i++ {
			off := dir.Mul(float32(i))
			res = res.Add(f.Sample("image", f.UV.Add(off)).Mul(gaussWeights[i]))
			res = res.Add(f.Sample("image", f.UV.Sub(off)).Mul(gaussWeights[i]))
		}
		f.Out[0] = res
	})
}

// NewBloomComposite returns the final program: scene color plus the blurred
// bright-pass scaled by "bloomIntensity".
func NewBloomComposite() *Program {
	return NewProgram("bloom composite", []string{"bloomIntensity"}, []string{"scene", "bloomBlur"}, func(f *Fragment) {
		scene := f.Sample("scene", f.UV).Vec3()
		bloom := f.Sample("bloomBlur", f.UV).Vec3()
		f.Out[0] = scene.Add(bloom.Mul(f.Float("bloomIntensity"))).Vec4(1)
	})
}

// NewBrightPassScene returns a scene program writing color to output 0 and
// the part of it brighter than "threshold" to output 1. The color is the
// "backdrop" texture when "useBackdrop" is non-zero, otherwise the uniform
// color ("r", "g", "b").
func NewBrightPassScene() *Program {
	p := NewProgram("bright-pass scene", []string{"r", "g", "b", "threshold", "useBackdrop"}, []string{"backdrop"}, func(f *Fragment) {
		c := mgl32.Vec3{f.Float("r"), f.Float("g"), f.Float("b")}
		if f.Int("useBackdrop") != 0 {
			c = f.Sample("backdrop", f.UV).Vec3()
		}
		f.Out[0] = c.Vec4(1)
		if c.Dot(luma) > f.Float("threshold") {
			f.Out[1] = c.Vec4(1)
		} else {
			f.Out[1] = mgl32.Vec4{0, 0, 0, 1}
		}
	})
	p.SetFloat("threshold", 1)
	return p
}
