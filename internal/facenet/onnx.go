//go:build cgo
// +build cgo

package facenet

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXModel is a facematch.Model running Facenet in-process. Inference is
// serialized because the session reuses pre-allocated tensors.
type ONNXModel struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputSize    int
	dimension    int
	mu           sync.Mutex
}

// NewONNXModel loads a Facenet ONNX graph with a single NHWC float input and a
// single embedding output.
func NewONNXModel(modelPath string, inputSize, dimension int) (*ONNXModel, error) {
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(inputSize), int64(inputSize), 3))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(dimension)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"embeddings"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXModel{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputSize:    inputSize,
		dimension:    dimension,
	}, nil
}

// Represent embeds the face stored at path.
func (m *ONNXModel) Represent(ctx context.Context, path string) ([]float32, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	input := Prewhiten(img, m.inputSize)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.inputTensor.GetData(), input)
	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	embedding := make([]float32, m.dimension)
	copy(embedding, m.outputTensor.GetData())
	return embedding, nil
}

// InputSize returns the square input edge.
func (m *ONNXModel) InputSize() int {
	return m.inputSize
}

// Name returns the model name.
func (m *ONNXModel) Name() string {
	return "Facenet"
}

// Close destroys the session and tensors.
func (m *ONNXModel) Close() error {
	var err error
	if m.session != nil {
		err = m.session.Destroy()
		m.session = nil
	}
	if m.inputTensor != nil {
		_ = m.inputTensor.Destroy()
		m.inputTensor = nil
	}
	if m.outputTensor != nil {
		_ = m.outputTensor.Destroy()
		m.outputTensor = nil
	}
	return err
}
