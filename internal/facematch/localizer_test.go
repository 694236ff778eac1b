package facematch

import (
	"context"
	"errors"
	"image"
	"testing"
)

type fakeDetector struct {
	order      ChannelOrder
	detections []Detection
	err        error
	seen       *Image
	calls      int
}

func (d *fakeDetector) Detect(ctx context.Context, img *Image) ([]Detection, error) {
	d.calls++
	d.seen = img
	return d.detections, d.err
}

func (d *fakeDetector) ChannelOrder() ChannelOrder {
	return d.order
}

func TestLocalizer_Locate_FirstCandidate(t *testing.T) {
	det := &fakeDetector{
		order: RGB,
		detections: []Detection{
			{BBox: []float64{2, 3, 5, 6}, DetScore: 0.9},
			{BBox: []float64{0, 0, 10, 8}, DetScore: 0.99},
		},
	}
	l := NewLocalizer(det, nil)

	region, err := l.Locate(context.Background(), gradientImage(10, 8))
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if region.Box != image.Rect(2, 3, 5, 6) {
		t.Errorf("Box = %v, want first candidate (2,3)-(5,6)", region.Box)
	}
	if region.Pixels.Width != 3 || region.Pixels.Height != 3 {
		t.Errorf("crop size = %dx%d, want 3x3", region.Pixels.Width, region.Pixels.Height)
	}
	if region.Source != "(8, 10, 3)" {
		t.Errorf("Source = %q, want (8, 10, 3)", region.Source)
	}
}

func TestLocalizer_Locate_ConvertsChannelOrder(t *testing.T) {
	det := &fakeDetector{
		order:      BGR,
		detections: []Detection{{BBox: []float64{0, 0, 1, 1}}},
	}
	l := NewLocalizer(det, nil)

	img := NewImage(1, 1, RGB)
	copy(img.Pix, []uint8{10, 20, 30})

	region, err := l.Locate(context.Background(), img)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if det.seen.Order != BGR || det.seen.Pix[0] != 30 {
		t.Errorf("detector saw order %v pixel %v, want BGR [30 20 10]", det.seen.Order, det.seen.Pix)
	}
	if region.Pixels.Order != RGB || region.Pixels.Pix[0] != 10 {
		t.Errorf("region order %v pixel %v, want RGB crop of the input", region.Pixels.Order, region.Pixels.Pix)
	}
}

func TestLocalizer_Locate_NoFace(t *testing.T) {
	tests := []struct {
		name       string
		detections []Detection
	}{
		{"no candidates", nil},
		{"candidate outside image", []Detection{{BBox: []float64{50, 50, 60, 60}}}},
		{"malformed candidate", []Detection{{BBox: []float64{1, 2}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLocalizer(&fakeDetector{detections: tt.detections}, nil)
			_, err := l.Locate(context.Background(), gradientImage(10, 8))
			if !errors.Is(err, ErrNoFace) {
				t.Errorf("Locate() error = %v, want ErrNoFace", err)
			}
		})
	}
}

func TestLocalizer_Locate_DetectorError(t *testing.T) {
	boom := errors.New("detector offline")
	l := NewLocalizer(&fakeDetector{err: boom}, nil)

	_, err := l.Locate(context.Background(), gradientImage(4, 4))
	if !errors.Is(err, boom) {
		t.Errorf("Locate() error = %v, want wrapped detector error", err)
	}
	if errors.Is(err, ErrNoFace) {
		t.Error("detector failure must not be reported as ErrNoFace")
	}
}

func TestLocalizer_Locate_EmptyImage(t *testing.T) {
	det := &fakeDetector{}
	l := NewLocalizer(det, nil)

	if _, err := l.Locate(context.Background(), NewImage(0, 0, RGB)); err == nil {
		t.Error("Locate() expected error for empty image")
	}
	if det.calls != 0 {
		t.Errorf("detector called %d times for empty image, want 0", det.calls)
	}
}
