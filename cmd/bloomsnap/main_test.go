package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/mreinstein/cobalt-bloom/bloom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(t *testing.T, args ...string) image.Image {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out.png")
	var stderr bytes.Buffer
	require.NoError(t, run(append([]string{"-out", out}, args...), &stderr), stderr.String())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func brightness(img image.Image) uint64 {
	var sum uint64
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum += uint64(r + g + bl)
		}
	}
	return sum
}

func TestBuiltinScene(t *testing.T) {
	lit := snap(t, "-width", "32", "-height", "32")
	flat := snap(t, "-width", "32", "-height", "32", "-intensity", "0")

	assert.Equal(t, image.Rect(0, 0, 32, 32), lit.Bounds())
	assert.Greater(t, brightness(lit), brightness(flat))
}

func TestScaleOutput(t *testing.T) {
	img := snap(t, "-width", "32", "-height", "24", "-passes", "2", "-scale", "0.5")
	assert.Equal(t, image.Rect(0, 0, 16, 12), img.Bounds())
}

func TestImageInput(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 6; y < 10; y++ {
		for x := 6; x < 10; x++ {
			src.Set(x, y, color.White)
		}
	}
	in := filepath.Join(t.TempDir(), "in.png")
	f, err := os.Create(in)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	lit := snap(t, "-in", in, "-threshold", "0.5", "-passes", "4")
	flat := snap(t, "-in", in, "-threshold", "0.5", "-passes", "4", "-intensity", "0")

	assert.Equal(t, src.Bounds(), lit.Bounds())
	assert.Greater(t, brightness(lit), brightness(flat))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[bloom]\nblur_passes = -1\n"), 0o644))

	var stderr bytes.Buffer
	err := run([]string{"-config", bad, "-out", filepath.Join(dir, "x.png")}, &stderr)
	assert.ErrorIs(t, err, bloom.ErrInvalidConfig)

	good := filepath.Join(dir, "good.toml")
	require.NoError(t, os.WriteFile(good, []byte("[bloom]\nblur_passes = 3\n"), 0o644))

	stderr.Reset()
	require.NoError(t, run([]string{"-config", good, "-v", "-width", "8", "-height", "8", "-out", filepath.Join(dir, "a.png")}, &stderr))
	assert.Contains(t, stderr.String(), "steps=3")

	// explicit flags win over the file
	stderr.Reset()
	require.NoError(t, run([]string{"-config", good, "-passes", "1", "-v", "-width", "8", "-height", "8", "-out", filepath.Join(dir, "b.png")}, &stderr))
	assert.Contains(t, stderr.String(), "steps=1")
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer

	err := run([]string{"-in", filepath.Join(dir, "missing.png")}, &stderr)
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = run([]string{"-passes", "-3", "-out", filepath.Join(dir, "x.png")}, &stderr)
	assert.ErrorIs(t, err, bloom.ErrInvalidConfig)

	err = run([]string{"-scale", "0", "-out", filepath.Join(dir, "x.png")}, &stderr)
	assert.Error(t, err)
}
