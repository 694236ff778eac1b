// Package faceapi talks to the face model server: face detection and
// Facenet-style embedding over multipart HTTP uploads.
package faceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/face-index/internal/facematch"
)

const (
	defaultBaseURL   = "http://localhost:8000"
	defaultModel     = "Facenet"
	defaultInputSize = 160
	defaultTimeout   = 60 * time.Second
	uploadQuality    = 95
)

// Client is both a facematch.Detector and a facematch.Model backed by the model server.
type Client struct {
	baseURL   string
	model     string
	inputSize int
	client    *http.Client
}

// NewClient creates a new face API client
func NewClient(baseURL, model string, inputSize int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	if inputSize <= 0 {
		inputSize = defaultInputSize
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		model:     model,
		inputSize: inputSize,
		client:    &http.Client{Timeout: defaultTimeout},
	}
}

// detection is one face reported by /detect/face
type detection struct {
	BBox     []float64 `json:"bbox"`
	Box      []float64 `json:"box"` // [x, y, w, h], MTCNN style
	DetScore float64   `json:"det_score"`
}

type detectResponse struct {
	FacesCount int         `json:"faces_count"`
	Faces      []detection `json:"faces"`
}

type embedResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// Detect uploads the image and returns the reported face candidates in server order.
func (c *Client) Detect(ctx context.Context, img *facematch.Image) ([]facematch.Detection, error) {
	data, err := img.EncodeJPEG(uploadQuality)
	if err != nil {
		return nil, err
	}

	body, err := c.postMultipartImage(ctx, "/detect/face", "image.jpg", data)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := make([]facematch.Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		bbox := f.BBox
		if len(bbox) == 0 && len(f.Box) == 4 {
			bbox = facematch.XYWHToBBox(f.Box[0], f.Box[1], f.Box[2], f.Box[3])
		}
		out = append(out, facematch.Detection{BBox: bbox, DetScore: f.DetScore})
	}
	return out, nil
}

// ChannelOrder reports that the server expects RGB uploads.
func (c *Client) ChannelOrder() facematch.ChannelOrder {
	return facematch.RGB
}

// Represent uploads the prepared face file and returns its embedding.
// An empty vector is returned as-is; the extractor decides what that means.
func (c *Client) Represent(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read face file: %w", err)
	}

	body, err := c.postMultipartImage(ctx, "/embed/face?model="+c.model, filepath.Base(path), data)
	if err != nil {
		return nil, err
	}

	var resp embedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.Embedding, nil
}

// InputSize returns the square input edge the model expects.
func (c *Client) InputSize() int {
	return c.inputSize
}

// Name returns the model name
func (c *Client) Name() string {
	return c.model
}

func (c *Client) postMultipartImage(ctx context.Context, endpoint, filename string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
