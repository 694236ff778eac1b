package facematch

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Localizer finds the face in an image and crops it.
type Localizer struct {
	detector Detector
	logger   *zap.Logger
}

// NewLocalizer creates a Localizer around a face detector.
func NewLocalizer(detector Detector, logger *zap.Logger) *Localizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Localizer{detector: detector, logger: logger}
}

// Locate runs the detector over the full image and returns the crop of the first
// reported candidate. ErrNoFace is returned when there is no usable candidate.
// The returned region keeps the channel order of the input image.
func (l *Localizer) Locate(ctx context.Context, img *Image) (*FaceRegion, error) {
	if img == nil || img.Width == 0 || img.Height == 0 {
		return nil, fmt.Errorf("locate face: %w", errEmptyImage)
	}

	detections, err := l.detector.Detect(ctx, img.Convert(l.detector.ChannelOrder()))
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(detections) == 0 {
		l.logger.Info("no face detected in the image", zap.String("shape", img.Shape()))
		return nil, ErrNoFace
	}

	box := BBoxToRect(detections[0].BBox, img.Bounds())
	if box.Empty() {
		l.logger.Info("detected face lies outside the image",
			zap.Float64s("bbox", detections[0].BBox), zap.String("shape", img.Shape()))
		return nil, ErrNoFace
	}

	l.logger.Debug("face detected",
		zap.Int("candidates", len(detections)),
		zap.Stringer("box", box),
		zap.Float64("det_score", detections[0].DetScore))

	return &FaceRegion{
		Box:    box,
		Pixels: img.Crop(box),
		Source: img.Shape(),
	}, nil
}
