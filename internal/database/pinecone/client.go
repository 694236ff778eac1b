// Package pinecone is a client for the Pinecone vector database data plane.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kozaktomas/face-index/internal/config"
	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/facematch"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from Pinecone.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pinecone API error (status %d): %s", e.StatusCode, e.Body)
}

// Temporary reports rate limiting and server-side failures.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is a database.Index backed by a Pinecone index.
type Client struct {
	baseURL   string
	apiKey    string
	namespace string
	metric    facematch.Metric
	client    *http.Client
}

// IndexHost builds the data-plane URL for a pod-based index.
func IndexHost(name, project, environment string) string {
	return fmt.Sprintf("https://%s-%s.svc.%s.pinecone.io", name, project, environment)
}

// NewClient creates a client for the index named indexName. cfg.Host wins
// over the host derived from project and environment.
func NewClient(cfg *config.PineconeConfig, indexName string, metric facematch.Metric) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone API key is required")
	}
	host := cfg.Host
	if host == "" {
		if cfg.Project == "" || cfg.Environment == "" {
			return nil, errors.New("pinecone host or project and environment are required")
		}
		host = IndexHost(indexName, cfg.Project, cfg.Environment)
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	if metric == "" {
		metric = facematch.MetricEuclidean
	}

	return &Client{
		baseURL:   strings.TrimSuffix(host, "/"),
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		metric:    metric,
		client:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

type vector struct {
	ID     string    `json:"id"`
	Values []float32 `json:"values"`
}

type fetchResponse struct {
	Vectors map[string]vector `json:"vectors"`
}

type upsertRequest struct {
	Vectors   []vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type queryRequest struct {
	Vector        []float32 `json:"vector"`
	TopK          int       `json:"topK"`
	IncludeValues bool      `json:"includeValues"`
	Namespace     string    `json:"namespace,omitempty"`
}

type queryMatch struct {
	ID     string    `json:"id"`
	Score  float64   `json:"score"`
	Values []float32 `json:"values"`
}

type queryResponse struct {
	Matches []queryMatch `json:"matches"`
}

type updateRequest struct {
	ID        string    `json:"id"`
	Values    []float32 `json:"values"`
	Namespace string    `json:"namespace,omitempty"`
}

type deleteRequest struct {
	IDs       []string `json:"ids"`
	Namespace string   `json:"namespace,omitempty"`
}

type statsResponse struct {
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
	Namespaces       map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
}

// do sends a request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// Name returns the backend name.
func (c *Client) Name() string {
	return "pinecone"
}

// Fetch returns the vectors stored under ids.
func (c *Client) Fetch(ctx context.Context, ids []string) (map[string]database.Entry, error) {
	out := make(map[string]database.Entry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	q := url.Values{}
	for _, id := range ids {
		q.Add("ids", id)
	}
	if c.namespace != "" {
		q.Set("namespace", c.namespace)
	}

	var resp fetchResponse
	if err := c.do(ctx, http.MethodGet, "/vectors/fetch?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	for id, v := range resp.Vectors {
		out[id] = database.Entry{ID: id, Vector: v.Values}
	}
	return out, nil
}

// Upsert writes entries.
func (c *Client) Upsert(ctx context.Context, entries []database.Entry) error {
	req := upsertRequest{Namespace: c.namespace, Vectors: make([]vector, len(entries))}
	for i, e := range entries {
		req.Vectors[i] = vector{ID: e.ID, Values: e.Vector}
	}
	return c.do(ctx, http.MethodPost, "/vectors/upsert", req, nil)
}

// Query returns up to topK nearest vectors. Cosine similarity scores are
// converted to distances so lower is always closer.
func (c *Client) Query(ctx context.Context, vec []float32, topK int, includeValues bool) ([]database.Match, error) {
	req := queryRequest{Vector: vec, TopK: topK, IncludeValues: includeValues, Namespace: c.namespace}

	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, "/query", req, &resp); err != nil {
		return nil, err
	}

	matches := make([]database.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		dist := m.Score
		if c.metric == facematch.MetricCosine {
			dist = 1 - m.Score
		}
		match := database.Match{ID: m.ID, Distance: dist}
		if includeValues {
			match.Values = m.Values
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Update overwrites the values of id.
func (c *Client) Update(ctx context.Context, id string, vec []float32) error {
	return c.do(ctx, http.MethodPost, "/vectors/update", updateRequest{ID: id, Values: vec, Namespace: c.namespace}, nil)
}

// Delete removes ids.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	return c.do(ctx, http.MethodPost, "/vectors/delete", deleteRequest{IDs: ids, Namespace: c.namespace}, nil)
}

// Count returns the vector count of the configured namespace.
func (c *Client) Count(ctx context.Context) (int, error) {
	var resp statsResponse
	if err := c.do(ctx, http.MethodPost, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return 0, err
	}
	if c.namespace != "" {
		return resp.Namespaces[c.namespace].VectorCount, nil
	}
	return resp.TotalVectorCount, nil
}
