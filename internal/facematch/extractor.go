package facematch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const scratchJPEGQuality = 95

// Extractor converts a cropped face into an embedding using a Model.
type Extractor struct {
	model      Model
	dim        int
	scratchDir string
	logger     *zap.Logger
}

// NewExtractor creates an Extractor that expects embeddings of length dim.
// Scratch files go to the OS temp directory unless scratchDir is set.
func NewExtractor(model Model, dim int, scratchDir string, logger *zap.Logger) *Extractor {
	if dim <= 0 {
		dim = DefaultDimension
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{model: model, dim: dim, scratchDir: scratchDir, logger: logger}
}

// Dimension returns the embedding length this extractor enforces.
func (e *Extractor) Dimension() int {
	return e.dim
}

// Embed resizes the face to the model input, hands it over through a scratch
// file and validates the returned vector. The scratch file is always removed.
func (e *Extractor) Embed(ctx context.Context, face *FaceRegion) (Embedding, error) {
	if face == nil || face.Pixels == nil || face.Pixels.Width == 0 || face.Pixels.Height == 0 {
		return nil, &ExtractionError{Reason: "malformed input", InputType: "FaceRegion", ImageSize: "none", FaceSize: "none"}
	}

	fail := func(reason string, err error) error {
		return &ExtractionError{
			Reason:    reason,
			InputType: "FaceRegion",
			ImageSize: face.Source,
			FaceSize:  face.Pixels.Shape(),
			Err:       err,
		}
	}

	path, err := e.writeScratch(face.Pixels)
	if err != nil {
		return nil, fail("cannot prepare model input", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("failed to remove scratch file", zap.String("path", path), zap.Error(err))
		}
	}()

	values, err := e.model.Represent(ctx, path)
	if err != nil {
		return nil, fail("model error", err)
	}
	if len(values) == 0 {
		return nil, fail("Embedding could not be created.", nil)
	}

	emb := Embedding(values)
	if err := emb.Validate(e.dim); err != nil {
		return nil, fail(fmt.Sprintf("model %s returned %d values, want %d", e.model.Name(), len(values), e.dim), err)
	}
	return emb, nil
}

// writeScratch resizes the face to the model's square input and stores it as JPEG.
func (e *Extractor) writeScratch(face *Image) (string, error) {
	src := face.RGBA()
	var img image.Image = src
	if size := e.model.InputSize(); size > 0 {
		dst := image.NewRGBA(image.Rect(0, 0, size, size))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
		img = dst
	}

	f, err := os.CreateTemp(e.scratchDir, "face-*.jpg")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: scratchJPEGQuality}); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to encode face: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	return f.Name(), nil
}
