package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/database/memory"
	"github.com/kozaktomas/face-index/internal/facematch"
	"github.com/kozaktomas/face-index/internal/facenet"
)

// blankDetector reports one face covering the whole image unless every pixel is black.
type blankDetector struct {
	calls atomic.Int32
}

func (d *blankDetector) Detect(ctx context.Context, img *facematch.Image) ([]facematch.Detection, error) {
	d.calls.Add(1)
	for _, v := range img.Pix {
		if v != 0 {
			return []facematch.Detection{{
				BBox:     []float64{0, 0, float64(img.Width), float64(img.Height)},
				DetScore: 0.99,
			}}, nil
		}
	}
	return nil, nil
}

func (d *blankDetector) ChannelOrder() facematch.ChannelOrder {
	return facematch.RGB
}

// brightnessModel embeds a face as its mean red value spread over every dimension,
// so near-identical images land close together.
type brightnessModel struct {
	dim   int
	calls atomic.Int32
}

func (m *brightnessModel) Represent(ctx context.Context, path string) ([]float32, error) {
	m.calls.Add(1)
	img, err := facenet.LoadImage(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	var sum, n float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			sum += float64(r >> 8)
			n++
		}
	}
	mean := float32(sum / n)

	v := make([]float32, m.dim)
	for i := range v {
		v[i] = mean/40 + float32(i%4)
	}
	return v, nil
}

func (m *brightnessModel) InputSize() int { return 32 }
func (m *brightnessModel) Name() string   { return "brightness" }

// solidPNG encodes a 48x48 image filled with (r, 100, 50); r = 0 and
// black = true yields an all-black image with no face.
func solidPNG(t *testing.T, r uint8, black bool) []byte {
	t.Helper()
	c := color.RGBA{R: r, G: 100, B: 50, A: 255}
	if black {
		c = color.RGBA{A: 255}
	}
	img := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for y := range 48 {
		for x := range 48 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// colorModel embeds a face as its mean (r, g, b), repeated over every dimension.
type colorModel struct {
	dim int
}

func (m *colorModel) Represent(ctx context.Context, path string) ([]float32, error) {
	img, err := facenet.LoadImage(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	var sum [3]float64
	var n float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum[0] += float64(r >> 8)
			sum[1] += float64(g >> 8)
			sum[2] += float64(bl >> 8)
			n++
		}
	}

	v := make([]float32, m.dim)
	for i := range v {
		v[i] = float32(sum[i%3]/n) / 40
	}
	return v, nil
}

func (m *colorModel) InputSize() int { return 32 }
func (m *colorModel) Name() string   { return "color" }

// panicModel stands in for a model runtime that crashes.
type panicModel struct{}

func (panicModel) Represent(ctx context.Context, path string) ([]float32, error) {
	panic("model runtime crashed")
}

func (panicModel) InputSize() int { return 32 }
func (panicModel) Name() string   { return "panic" }

// gridPNG encodes a 48x48 image in color cell c of an 8x8x8 grid with a
// spacing of 32 per channel. Cell 0 is black.
func gridPNG(t *testing.T, c int) []byte {
	t.Helper()
	col := color.RGBA{R: uint8(c%8) * 32, G: uint8(c/8%8) * 32, B: uint8(c/64%8) * 32, A: 255}
	img := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for y := range 48 {
		for x := range 48 {
			img.Set(x, y, col)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type testEnv struct {
	pipeline *Pipeline
	index    *memory.Index
	gateway  *database.Gateway
	detector *blankDetector
	model    *brightnessModel
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	model := &brightnessModel{dim: facematch.DefaultDimension}
	env := newTestEnvWithModel(t, model)
	env.model = model
	return env
}

// newTestEnvWithModel builds a pipeline over a fresh memory index configured with opts.
func newTestEnvWithModel(t *testing.T, model facematch.Model, opts ...memory.Option) *testEnv {
	t.Helper()
	const dim = facematch.DefaultDimension

	detector := &blankDetector{}
	idx := memory.New(dim, facematch.MetricEuclidean, opts...)
	gw := database.NewGateway(idx, database.GatewayConfig{Dimension: dim}, nil)

	p := New(
		facematch.NewLocalizer(detector, nil),
		facematch.NewExtractor(model, dim, t.TempDir(), nil),
		gw,
		Options{
			Thresholds: facematch.Thresholds{Metric: facematch.MetricEuclidean, Exact: 15, Similar: 100},
			Workers:    4,
		},
		nil,
	)
	return &testEnv{pipeline: p, index: idx, gateway: gw, detector: detector}
}
