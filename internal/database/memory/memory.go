// Package memory is an in-process vector index backed by an HNSW graph, with
// compressed snapshots for persistence between runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-index/internal/constants"
	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/facematch"
)

// HNSW graph parameters for 128-dim face embeddings
const (
	// MaxNeighbors (M) is the maximum number of neighbors per node.
	MaxNeighbors = 16

	// EfSearch is the search candidate pool size.
	EfSearch = 100

	// SearchMultiplier is the factor to request more candidates from HNSW
	// so that stale nodes filtered out afterwards still leave topK results.
	SearchMultiplier = 3

	// CompactMinTombstones is the number of stale graph nodes below which the
	// graph is never rebuilt.
	CompactMinTombstones = 64

	// DefaultExactSearchLimit is the entry count up to which queries scan every
	// vector instead of searching the graph.
	DefaultExactSearchLimit = constants.ExactSearchLimit
)

// Index keeps every vector in a map and mirrors it into an HNSW graph for search.
//
// Graph nodes are never deleted: hnsw.Graph.Delete leaves dangling entry points
// that make later searches panic. A replaced or deleted id instead leaves a
// stale node behind (a tombstone) which queries skip, and the graph is rebuilt
// from the live vectors once tombstones outnumber half of them.
type Index struct {
	graph      *hnsw.Graph[uint64]
	vectors    map[string]facematch.Embedding
	keys       map[string]uint64 // id -> live graph key
	owners     map[uint64]string // live graph key -> id
	nextKey    uint64
	tombstones int
	exactLimit int
	metric     facematch.Metric
	dim        int
	mu         sync.RWMutex
}

// Option configures an Index.
type Option func(*Index)

// WithExactSearchLimit sets the entry count up to which queries scan every
// vector. Zero makes every query search the graph.
func WithExactSearchLimit(n int) Option {
	return func(x *Index) {
		x.exactLimit = max(n, 0)
	}
}

// New creates an empty index for vectors of length dim ranked by metric.
func New(dim int, metric facematch.Metric, opts ...Option) *Index {
	if dim <= 0 {
		dim = facematch.DefaultDimension
	}
	if metric == "" {
		metric = facematch.MetricEuclidean
	}
	x := &Index{
		exactLimit: DefaultExactSearchLimit,
		metric:     metric,
		dim:        dim,
	}
	for _, opt := range opts {
		opt(x)
	}
	x.reset(0)
	return x
}

// reset drops all entries and the graph. Caller holds the write lock.
func (x *Index) reset(capacity int) {
	x.graph = nil
	x.vectors = make(map[string]facematch.Embedding, capacity)
	x.keys = make(map[string]uint64, capacity)
	x.owners = make(map[uint64]string, capacity)
	x.tombstones = 0
}

func (x *Index) newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.M = MaxNeighbors
	g.Ml = 1.0 / float64(MaxNeighbors)
	g.EfSearch = EfSearch
	if x.metric == facematch.MetricCosine {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}
	return g
}

// Name returns the backend name.
func (x *Index) Name() string {
	return "memory"
}

// Metric returns the configured metric.
func (x *Index) Metric() facematch.Metric {
	return x.metric
}

func (x *Index) checkDim(id string, v []float32) error {
	if len(v) != x.dim {
		return fmt.Errorf("vector %s has dimension %d, index expects %d", id, len(v), x.dim)
	}
	return nil
}

// addNode links vec into the graph under a fresh key. Caller holds the write lock.
func (x *Index) addNode(id string, vec facematch.Embedding) {
	if x.graph == nil {
		x.graph = x.newGraph()
	}
	key := x.nextKey
	x.nextKey++
	x.graph.Add(hnsw.MakeNode(key, []float32(vec)))
	x.keys[id] = key
	x.owners[key] = id
}

// retire turns the graph node of id into a tombstone. Caller holds the write lock.
func (x *Index) retire(id string) {
	key, ok := x.keys[id]
	if !ok {
		return
	}
	delete(x.keys, id)
	delete(x.owners, key)
	x.tombstones++
}

// put stores a copy of v and links it into the graph. Caller holds the write lock.
func (x *Index) put(id string, v []float32) {
	vec := make(facematch.Embedding, len(v))
	copy(vec, v)

	x.retire(id)
	x.vectors[id] = vec
	x.addNode(id, vec)
	x.maybeCompact()
}

// remove drops id. Caller holds the write lock.
func (x *Index) remove(id string) {
	if _, ok := x.vectors[id]; !ok {
		return
	}
	delete(x.vectors, id)
	x.retire(id)
	if len(x.vectors) == 0 {
		x.reset(0)
		return
	}
	x.maybeCompact()
}

// maybeCompact rebuilds the graph from live vectors when tombstones dominate it.
// Caller holds the write lock.
func (x *Index) maybeCompact() {
	if x.tombstones < CompactMinTombstones || x.tombstones <= len(x.vectors)/2 {
		return
	}
	x.rebuild()
}

// rebuild relinks every live vector into a new graph in id order. Caller holds
// the write lock.
func (x *Index) rebuild() {
	ids := make([]string, 0, len(x.vectors))
	for id := range x.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	x.graph = nil
	x.keys = make(map[string]uint64, len(ids))
	x.owners = make(map[uint64]string, len(ids))
	x.tombstones = 0
	for _, id := range ids {
		x.addNode(id, x.vectors[id])
	}
}

// Fetch returns copies of the stored entries among ids.
func (x *Index) Fetch(ctx context.Context, ids []string) (map[string]database.Entry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make(map[string]database.Entry, len(ids))
	for _, id := range ids {
		if v, ok := x.vectors[id]; ok {
			out[id] = database.Entry{ID: id, Vector: cloneVector(v)}
		}
	}
	return out, nil
}

func cloneVector(v facematch.Embedding) facematch.Embedding {
	out := make(facematch.Embedding, len(v))
	copy(out, v)
	return out
}

// Upsert writes entries, replacing existing ids.
func (x *Index) Upsert(ctx context.Context, entries []database.Entry) error {
	for _, e := range entries {
		if err := x.checkDim(e.ID, e.Vector); err != nil {
			return err
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, e := range entries {
		x.put(e.ID, e.Vector)
	}
	return nil
}

// InsertIfAbsent writes entry only when its id is not stored yet.
func (x *Index) InsertIfAbsent(ctx context.Context, entry database.Entry) (bool, error) {
	if err := x.checkDim(entry.ID, entry.Vector); err != nil {
		return false, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.vectors[entry.ID]; ok {
		return false, nil
	}
	x.put(entry.ID, entry.Vector)
	return true, nil
}

// Update overwrites the vector of id, creating it when absent.
func (x *Index) Update(ctx context.Context, id string, vector []float32) error {
	return x.Upsert(ctx, []database.Entry{{ID: id, Vector: vector}})
}

// Delete removes ids.
func (x *Index) Delete(ctx context.Context, ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range ids {
		x.remove(id)
	}
	return nil
}

// Query ranks stored vectors by exact distance. Small indexes are scanned in
// full; larger ones take their candidates from the graph.
func (x *Index) Query(ctx context.Context, vector []float32, topK int, includeValues bool) ([]database.Match, error) {
	if err := x.checkDim("query", vector); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.vectors) == 0 {
		return nil, nil
	}

	var candidates []string
	if len(x.vectors) <= x.exactLimit || x.graph == nil {
		candidates = make([]string, 0, len(x.vectors))
		for id := range x.vectors {
			candidates = append(candidates, id)
		}
	} else {
		searchK := max(topK*SearchMultiplier, EfSearch) + x.tombstones
		neighbors := x.graph.Search(vector, searchK)
		candidates = make([]string, 0, len(neighbors))
		for _, n := range neighbors {
			if id, ok := x.owners[n.Key]; ok {
				candidates = append(candidates, id)
			}
		}
	}

	matches := make([]database.Match, 0, len(candidates))
	for _, id := range candidates {
		v := x.vectors[id]
		m := database.Match{ID: id, Distance: database.Distance(x.metric, vector, v)}
		if includeValues {
			m.Values = cloneVector(v)
		}
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count returns the number of stored entries.
func (x *Index) Count(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors), nil
}
