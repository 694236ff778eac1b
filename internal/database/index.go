// Package database is the index gateway: a thin, failure-aware layer over a
// vector index holding one face embedding per id.
package database

import (
	"context"

	"github.com/kozaktomas/face-index/internal/facematch"
)

// Entry is one stored (id, vector) pair.
type Entry struct {
	ID     string              `json:"id"`
	Vector facematch.Embedding `json:"values"`
}

// Match is a nearest-neighbour result. Distance is lower-is-closer in the
// configured metric, whatever the backend reports natively.
type Match struct {
	ID       string              `json:"id"`
	Distance float64             `json:"distance"`
	Values   facematch.Embedding `json:"values,omitempty"`
}

// Index is the vector-index service the gateway talks to. Implementations are
// safe for concurrent use and shared by all requests.
type Index interface {
	// Fetch returns the entries that exist among ids, keyed by id.
	Fetch(ctx context.Context, ids []string) (map[string]Entry, error)
	// Upsert writes entries, overwriting existing ids.
	Upsert(ctx context.Context, entries []Entry) error
	// Query returns up to topK nearest entries to vector.
	Query(ctx context.Context, vector []float32, topK int, includeValues bool) ([]Match, error)
	// Update overwrites the vector of id.
	Update(ctx context.Context, id string, vector []float32) error
	// Delete removes ids. Missing ids are not an error.
	Delete(ctx context.Context, ids []string) error
	// Name identifies the backend in logs and health output.
	Name() string
}

// Counter is implemented by backends that can report their size.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// ConditionalInserter is implemented by backends that can insert an entry only
// when its id is absent, as one atomic write. It reports whether the entry was created.
type ConditionalInserter interface {
	InsertIfAbsent(ctx context.Context, entry Entry) (bool, error)
}
