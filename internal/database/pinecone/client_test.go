package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-index/internal/config"
	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/facematch"
)

// fakePinecone is an in-memory stand-in for the data plane.
type fakePinecone struct {
	mu      sync.Mutex
	vectors map[string][]float32
	score   float64
	status  int
	paths   []string
}

func (f *fakePinecone) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	if r.Header.Get("Api-Key") != "secret" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if f.status != 0 {
		http.Error(w, "failure", f.status)
		return
	}

	switch r.URL.Path {
	case "/vectors/fetch":
		out := map[string]vector{}
		for _, id := range r.URL.Query()["ids"] {
			if v, ok := f.vectors[id]; ok {
				out[id] = vector{ID: id, Values: v}
			}
		}
		json.NewEncoder(w).Encode(fetchResponse{Vectors: out})
	case "/vectors/upsert":
		var req upsertRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, v := range req.Vectors {
			f.vectors[v.ID] = v.Values
		}
		json.NewEncoder(w).Encode(map[string]int{"upsertedCount": len(req.Vectors)})
	case "/query":
		var req queryRequest
		json.NewDecoder(r.Body).Decode(&req)
		var matches []queryMatch
		for id, v := range f.vectors {
			m := queryMatch{ID: id, Score: f.score}
			if req.IncludeValues {
				m.Values = v
			}
			matches = append(matches, m)
		}
		json.NewEncoder(w).Encode(queryResponse{Matches: matches})
	case "/vectors/update":
		var req updateRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.vectors[req.ID] = req.Values
		w.Write([]byte("{}"))
	case "/vectors/delete":
		var req deleteRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, id := range req.IDs {
			delete(f.vectors, id)
		}
		w.Write([]byte("{}"))
	case "/describe_index_stats":
		json.NewEncoder(w).Encode(map[string]any{"dimension": 3, "totalVectorCount": len(f.vectors)})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakePinecone) setScore(score float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.score = score
}

func (f *fakePinecone) setStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *fakePinecone) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func newTestClient(t *testing.T, metric facematch.Metric) (*Client, *fakePinecone) {
	t.Helper()
	fake := &fakePinecone{vectors: map[string][]float32{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	c, err := NewClient(&config.PineconeConfig{APIKey: "secret", Host: server.URL}, "faces", metric)
	require.NoError(t, err)
	return c, fake
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t, facematch.MetricEuclidean)

	require.NoError(t, c.Upsert(ctx, []database.Entry{{ID: "a", Vector: []float32{1, 2, 3}}}))

	got, err := c.Fetch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, facematch.Embedding{1, 2, 3}, got["a"].Vector)

	fake.setScore(12.5)
	matches, err := c.Query(ctx, []float32{1, 2, 3}, 1, true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, 12.5, matches[0].Distance)
	assert.Equal(t, facematch.Embedding{1, 2, 3}, matches[0].Values)

	require.NoError(t, c.Update(ctx, "a", []float32{4, 5, 6}))
	got, err = c.Fetch(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, facematch.Embedding{4, 5, 6}, got["a"].Vector)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, c.Delete(ctx, []string{"a"}))
	got, err = c.Fetch(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, got)

	calls := fake.calls()
	for _, want := range []string{"GET /vectors/fetch", "POST /vectors/upsert", "POST /query", "POST /vectors/update", "POST /vectors/delete"} {
		assert.Contains(t, calls, want)
	}
}

func TestClient_CosineScoreBecomesDistance(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t, facematch.MetricCosine)
	require.NoError(t, c.Upsert(ctx, []database.Entry{{ID: "a", Vector: []float32{1, 0, 0}}}))

	fake.setScore(0.95)
	matches, err := c.Query(ctx, []float32{1, 0, 0}, 1, false)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 0.05, matches[0].Distance, 1e-9)
	assert.Nil(t, matches[0].Values)
}

func TestClient_APIError(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t, facematch.MetricEuclidean)

	fake.setStatus(http.StatusTooManyRequests)
	err := c.Upsert(ctx, []database.Entry{{ID: "a", Vector: []float32{1}}})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.True(t, apiErr.Temporary())

	fake.setStatus(http.StatusBadRequest)
	_, err = c.Fetch(ctx, []string{"a"})
	require.True(t, errors.As(err, &apiErr))
	assert.False(t, apiErr.Temporary())
}

func TestNewClient_Host(t *testing.T) {
	c, err := NewClient(&config.PineconeConfig{APIKey: "k", Project: "abc123", Environment: "us-west1-gcp"}, "faces", "")
	require.NoError(t, err)
	assert.Equal(t, "https://faces-abc123.svc.us-west1-gcp.pinecone.io", c.baseURL)

	c, err = NewClient(&config.PineconeConfig{APIKey: "k", Host: "faces-xyz.svc.pinecone.io/"}, "faces", "")
	require.NoError(t, err)
	assert.Equal(t, "https://faces-xyz.svc.pinecone.io", c.baseURL)

	_, err = NewClient(&config.PineconeConfig{Host: "h"}, "faces", "")
	assert.Error(t, err)

	_, err = NewClient(&config.PineconeConfig{APIKey: "k"}, "faces", "")
	assert.Error(t, err)
}
