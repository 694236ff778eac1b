// Package facenet runs a Facenet face embedding model locally through ONNX Runtime.
package facenet

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"math"
	"os"

	"golang.org/x/image/draw"
)

const (
	// DefaultInputSize is the square input edge of Facenet.
	DefaultInputSize = 160
	// DefaultDimension is the Facenet embedding length.
	DefaultDimension = 128
)

// LoadImage reads an image file from disk.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open face image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode face image: %w", err)
	}
	return img, nil
}

// Prewhiten resizes img to size x size and returns it as an NHWC float tensor
// with zero mean and unit variance over all pixels and channels.
func Prewhiten(img image.Image, size int) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	n := size * size * 3
	out := make([]float32, n)
	var sum float64
	for i, o := 0, 0; o < n; i, o = i+4, o+3 {
		for c := range 3 {
			v := float64(dst.Pix[i+c])
			out[o+c] = float32(v)
			sum += v
		}
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range out {
		d := float64(v) - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(n))
	// Floor the deviation so flat images do not divide by zero.
	std = math.Max(std, 1/math.Sqrt(float64(n)))

	for i, v := range out {
		out[i] = float32((float64(v) - mean) / std)
	}
	return out
}
