//go:build !cgo
// +build !cgo

package facenet

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("ONNX model requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXModel stub type when built without CGO (see onnx.go for real implementation).
type ONNXModel struct{}

// NewONNXModel returns an error when built without CGO.
func NewONNXModel(_ string, _, _ int) (*ONNXModel, error) {
	return nil, errNoCGO
}

func (m *ONNXModel) Represent(context.Context, string) ([]float32, error) {
	return nil, errNoCGO
}

func (m *ONNXModel) InputSize() int { return DefaultInputSize }

func (m *ONNXModel) Name() string { return "Facenet" }

func (m *ONNXModel) Close() error { return nil }
