package facematch

import (
	"image"
	"math"
)

// BBoxToRect converts a detector box [x1, y1, x2, y2] in pixels to an integer
// rectangle clamped to bounds. Malformed boxes yield an empty rectangle.
func BBoxToRect(bbox []float64, bounds image.Rectangle) image.Rectangle {
	if len(bbox) != 4 {
		return image.Rectangle{}
	}
	for _, v := range bbox {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return image.Rectangle{}
		}
	}
	r := image.Rect(
		int(math.Floor(bbox[0])),
		int(math.Floor(bbox[1])),
		int(math.Ceil(bbox[2])),
		int(math.Ceil(bbox[3])),
	)
	return r.Intersect(bounds)
}

// XYWHToBBox converts an (x, y, width, height) box to corner format.
func XYWHToBBox(x, y, w, h float64) []float64 {
	return []float64{x, y, x + w, y + h}
}
