// Package facematch turns an uploaded photo into a face embedding and scores
// index matches against configurable distance thresholds.
package facematch

import (
	"context"
	"image"
	"math"
)

// DefaultDimension is the embedding length produced by Facenet-style models.
const DefaultDimension = 128

// Embedding is a fixed-length face identity vector. It is never mutated after creation.
type Embedding []float32

// Validate checks the embedding has exactly dim finite values.
func (e Embedding) Validate(dim int) error {
	if len(e) == 0 || len(e) != dim {
		return ErrDimensionMismatch
	}
	for _, v := range e {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrDimensionMismatch
		}
	}
	return nil
}

// Detection is a single face candidate reported by a Detector.
type Detection struct {
	BBox     []float64 // [x1, y1, x2, y2] in pixels
	DetScore float64
}

// FaceRegion is the crop of the source image around the selected face.
type FaceRegion struct {
	Box    image.Rectangle
	Pixels *Image
	Source string // shape of the source image, for diagnostics
}

// Detector finds face candidates in an image. Implementations declare the
// channel order they expect; the Localizer converts before calling Detect.
type Detector interface {
	Detect(ctx context.Context, img *Image) ([]Detection, error)
	ChannelOrder() ChannelOrder
}

// Model produces an embedding from a face image file on disk.
type Model interface {
	Represent(ctx context.Context, path string) ([]float32, error)
	InputSize() int
	Name() string
}

// MatchResult is one scored index match returned to the caller.
type MatchResult struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Label   Label   `json:"-"`
	Message string  `json:"message"`
}
