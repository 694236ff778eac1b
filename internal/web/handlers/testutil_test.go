package handlers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/database/memory"
	"github.com/kozaktomas/face-index/internal/facematch"
	"github.com/kozaktomas/face-index/internal/facenet"
	"github.com/kozaktomas/face-index/internal/pipeline"
)

// wholeImageDetector reports one face covering the image unless it is all black.
type wholeImageDetector struct{}

func (wholeImageDetector) Detect(ctx context.Context, img *facematch.Image) ([]facematch.Detection, error) {
	for _, v := range img.Pix {
		if v != 0 {
			return []facematch.Detection{{BBox: []float64{0, 0, float64(img.Width), float64(img.Height)}}}, nil
		}
	}
	return nil, nil
}

func (wholeImageDetector) ChannelOrder() facematch.ChannelOrder { return facematch.RGB }

// redModel embeds a face by its mean red channel.
type redModel struct{}

func (redModel) Represent(ctx context.Context, path string) ([]float32, error) {
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
	v := make([]float32, facematch.DefaultDimension)
	for i := range v {
		v[i] = float32(sum/n)/40 + float32(i%3)
	}
	return v, nil
}

func (redModel) InputSize() int { return 32 }
func (redModel) Name() string   { return "red" }

// testPipeline creates a pipeline over an empty in-memory index.
func testPipeline(t *testing.T) (*pipeline.Pipeline, *memory.Index) {
	t.Helper()
	dim := facematch.DefaultDimension
	idx := memory.New(dim, facematch.MetricEuclidean)
	gw := database.NewGateway(idx, database.GatewayConfig{Dimension: dim}, nil)
	p := pipeline.New(
		facematch.NewLocalizer(wholeImageDetector{}, nil),
		facematch.NewExtractor(redModel{}, dim, t.TempDir(), nil),
		gw,
		pipeline.Options{
			Thresholds: facematch.Thresholds{Metric: facematch.MetricEuclidean, Exact: 15, Similar: 100},
			Workers:    2,
		},
		nil,
	)
	return p, idx
}

// pngBytes encodes a 40x40 image of a single color.
func pngBytes(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := range 40 {
		for x := range 40 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// uploadRequest builds a multipart request with data in the "file" field.
func uploadRequest(t *testing.T, method, target, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
