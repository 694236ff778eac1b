// Package mock provides a mock implementation of database.Index for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/facematch"
)

// Index is an in-memory database.Index with error injection and call counting.
type Index struct {
	mu      sync.RWMutex
	vectors map[string]facematch.Embedding
	calls   map[string]int

	// Metric ranks query results; defaults to euclidean.
	Metric facematch.Metric

	// Error injection
	FetchError  error
	UpsertError error
	QueryError  error
	UpdateError error
	DeleteError error

	// BlockUntilDone makes every call wait for its context to end and return its error.
	BlockUntilDone bool
}

// NewIndex creates a new mock index
func NewIndex() *Index {
	return &Index{
		vectors: make(map[string]facematch.Embedding),
		calls:   make(map[string]int),
	}
}

// Put stores a vector directly, bypassing counters.
func (m *Index) Put(id string, v []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[id] = append(facematch.Embedding(nil), v...)
}

// Calls returns how many times op was invoked.
func (m *Index) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// Len returns the number of stored vectors.
func (m *Index) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

func (m *Index) enter(ctx context.Context, op string) error {
	m.mu.Lock()
	m.calls[op]++
	m.mu.Unlock()

	if m.BlockUntilDone {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (m *Index) Name() string {
	return "mock"
}

func (m *Index) Fetch(ctx context.Context, ids []string) (map[string]database.Entry, error) {
	if err := m.enter(ctx, "fetch"); err != nil {
		return nil, err
	}
	if m.FetchError != nil {
		return nil, m.FetchError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]database.Entry)
	for _, id := range ids {
		if v, ok := m.vectors[id]; ok {
			out[id] = database.Entry{ID: id, Vector: v}
		}
	}
	return out, nil
}

func (m *Index) Upsert(ctx context.Context, entries []database.Entry) error {
	if err := m.enter(ctx, "upsert"); err != nil {
		return err
	}
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.vectors[e.ID] = append(facematch.Embedding(nil), e.Vector...)
	}
	return nil
}

func (m *Index) Query(ctx context.Context, vector []float32, topK int, includeValues bool) ([]database.Match, error) {
	if err := m.enter(ctx, "query"); err != nil {
		return nil, err
	}
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]database.Match, 0, len(m.vectors))
	for id, v := range m.vectors {
		match := database.Match{ID: id, Distance: database.Distance(m.Metric, vector, v)}
		if includeValues {
			match.Values = v
		}
		matches = append(matches, match)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance == matches[j].Distance {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *Index) Update(ctx context.Context, id string, vector []float32) error {
	if err := m.enter(ctx, "update"); err != nil {
		return err
	}
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[id] = append(facematch.Embedding(nil), vector...)
	return nil
}

func (m *Index) Delete(ctx context.Context, ids []string) error {
	if err := m.enter(ctx, "delete"); err != nil {
		return err
	}
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.vectors, id)
	}
	return nil
}

func (m *Index) Count(ctx context.Context) (int, error) {
	if err := m.enter(ctx, "count"); err != nil {
		return 0, err
	}
	return m.Len(), nil
}

// ConditionalIndex additionally implements database.ConditionalInserter.
type ConditionalIndex struct {
	*Index
}

// NewConditionalIndex creates a mock index with compare-and-set inserts.
func NewConditionalIndex() *ConditionalIndex {
	return &ConditionalIndex{Index: NewIndex()}
}

func (m *ConditionalIndex) InsertIfAbsent(ctx context.Context, entry database.Entry) (bool, error) {
	if err := m.enter(ctx, "insert_if_absent"); err != nil {
		return false, err
	}
	if m.UpsertError != nil {
		return false, m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vectors[entry.ID]; ok {
		return false, nil
	}
	m.vectors[entry.ID] = append(facematch.Embedding(nil), entry.Vector...)
	return true, nil
}
