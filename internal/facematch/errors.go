package facematch

import (
	"errors"
	"fmt"
)

// ErrNoFace is returned when the detector finds no face. It is an expected
// outcome, not a fault, and is never retried.
var ErrNoFace = errors.New("no face detected")

// ErrDimensionMismatch marks an embedding whose length differs from the index dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

var errEmptyImage = errors.New("empty image data")

// ExtractionError reports a failed embedding extraction together with the
// shapes that were involved, for diagnostics.
type ExtractionError struct {
	Reason    string
	InputType string
	ImageSize string
	FaceSize  string
	Err       error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("error during embedding extraction: %s (input_type=%s, image_shape=%s, face_shape=%s)",
		e.Reason, e.InputType, e.ImageSize, e.FaceSize)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
