package database

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kozaktomas/face-index/internal/facematch"
)

// DefaultTimeout bounds each call to the index.
const DefaultTimeout = 30 * time.Second

// InsertResult is the outcome of Gateway.InsertIfAbsent.
type InsertResult int

const (
	// InsertCreated means a new entry was written.
	InsertCreated InsertResult = iota
	// InsertExisting means the id was already present; nothing was written.
	InsertExisting
	// InsertSkipped means the embedding was unusable; nothing was written.
	InsertSkipped
)

func (r InsertResult) String() string {
	switch r {
	case InsertCreated:
		return "created"
	case InsertExisting:
		return "existing"
	default:
		return "skipped"
	}
}

// UpdateResponse acknowledges an overwrite.
type UpdateResponse struct {
	ID        string `json:"id"`
	Dimension int    `json:"dimension"`
}

// DeleteAck acknowledges a removal. Single and batch removals share this shape.
type DeleteAck struct {
	IDs []string `json:"ids"`
}

// GatewayConfig tunes the gateway.
type GatewayConfig struct {
	Dimension         int
	Timeout           time.Duration
	RateLimit         float64 // index calls per second, 0 = unlimited
	ConditionalInsert bool
}

// Gateway applies id/embedding validation, idempotent insert, timeouts and
// rate limiting on top of an Index.
type Gateway struct {
	index       Index
	dim         int
	timeout     time.Duration
	limiter     *rate.Limiter
	conditional ConditionalInserter
	logger      *zap.Logger
}

// NewGateway wraps index. The index handle is shared and must not be closed
// while the gateway is in use.
func NewGateway(index Index, cfg GatewayConfig, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = facematch.DefaultDimension
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	g := &Gateway{
		index:   index,
		dim:     cfg.Dimension,
		timeout: cfg.Timeout,
		logger:  logger.With(zap.String("backend", index.Name())),
	}
	if cfg.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}
	if cfg.ConditionalInsert {
		if ci, ok := index.(ConditionalInserter); ok {
			g.conditional = ci
		} else {
			g.logger.Warn("backend has no conditional insert, falling back to fetch-then-upsert")
		}
	}
	return g
}

// Backend returns the index backend name.
func (g *Gateway) Backend() string {
	return g.index.Name()
}

// Dimension returns the embedding length the gateway accepts.
func (g *Gateway) Dimension() int {
	return g.dim
}

// call runs fn under the rate limiter and a per-call timeout.
func (g *Gateway) call(ctx context.Context, op string, ids []string, fn func(ctx context.Context) error) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return newIndexError(op, ids, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := fn(callCtx); err != nil {
		ie := newIndexError(op, ids, err)
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			ie.Retryable = true
		}
		g.logger.Error("index call failed", zap.String("op", op), zap.Strings("ids", ids), zap.Error(err))
		return ie
	}
	return nil
}

// InsertIfAbsent stores emb under id unless id already exists. A malformed
// embedding is skipped with a warning instead of failing the call.
// Without conditional insert, two concurrent calls for the same new id may both write.
func (g *Gateway) InsertIfAbsent(ctx context.Context, id string, emb facematch.Embedding) (InsertResult, error) {
	if id == "" {
		return InsertSkipped, validationErrorf("id is required")
	}
	ids := []string{id}

	if g.conditional != nil {
		if err := emb.Validate(g.dim); err != nil {
			g.logger.Warn("embedding is malformed, not inserting", zap.String("id", id), zap.Int("len", len(emb)))
			return InsertSkipped, nil
		}
		var created bool
		err := g.call(ctx, "insert", ids, func(ctx context.Context) error {
			var err error
			created, err = g.conditional.InsertIfAbsent(ctx, Entry{ID: id, Vector: emb})
			return err
		})
		if err != nil {
			return InsertSkipped, err
		}
		if !created {
			g.logger.Info("id already present in index", zap.String("id", id))
			return InsertExisting, nil
		}
		return InsertCreated, nil
	}

	var existing map[string]Entry
	err := g.call(ctx, "fetch", ids, func(ctx context.Context) error {
		var err error
		existing, err = g.index.Fetch(ctx, ids)
		return err
	})
	if err != nil {
		return InsertSkipped, err
	}
	if _, ok := existing[id]; ok {
		g.logger.Info("id already present in index", zap.String("id", id))
		return InsertExisting, nil
	}

	if err := emb.Validate(g.dim); err != nil {
		g.logger.Warn("embedding is malformed, not inserting", zap.String("id", id), zap.Int("len", len(emb)))
		return InsertSkipped, nil
	}

	err = g.call(ctx, "upsert", ids, func(ctx context.Context) error {
		return g.index.Upsert(ctx, []Entry{{ID: id, Vector: emb}})
	})
	if err != nil {
		return InsertSkipped, err
	}
	g.logger.Debug("entry inserted", zap.String("id", id))
	return InsertCreated, nil
}

// Query returns up to topK nearest entries with their vectors, closest first.
func (g *Gateway) Query(ctx context.Context, emb facematch.Embedding, topK int) ([]Match, error) {
	if topK < 1 {
		return nil, validationErrorf("top_k must be at least 1, got %d", topK)
	}
	if err := emb.Validate(g.dim); err != nil {
		return nil, validationErrorf("query embedding has %d values, want %d finite values", len(emb), g.dim)
	}

	var matches []Match
	err := g.call(ctx, "query", nil, func(ctx context.Context) error {
		var err error
		matches, err = g.index.Query(ctx, emb, topK, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Update overwrites the vector stored under id. Existence is not checked.
func (g *Gateway) Update(ctx context.Context, id string, emb facematch.Embedding) (*UpdateResponse, error) {
	if id == "" {
		return nil, validationErrorf("id is required")
	}
	if err := emb.Validate(g.dim); err != nil {
		return nil, validationErrorf("embedding for %s has %d values, want %d finite values", id, len(emb), g.dim)
	}

	err := g.call(ctx, "update", []string{id}, func(ctx context.Context) error {
		return g.index.Update(ctx, id, emb)
	})
	if err != nil {
		return nil, err
	}
	return &UpdateResponse{ID: id, Dimension: len(emb)}, nil
}

// Remove deletes one or more ids in a single batch.
func (g *Gateway) Remove(ctx context.Context, ids ...string) (*DeleteAck, error) {
	if len(ids) == 0 {
		return nil, validationErrorf("at least one id is required")
	}
	for _, id := range ids {
		if id == "" {
			return nil, validationErrorf("id is required")
		}
	}

	err := g.call(ctx, "delete", ids, func(ctx context.Context) error {
		return g.index.Delete(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	return &DeleteAck{IDs: ids}, nil
}

// Fetch returns the entry stored under id, or nil when absent.
func (g *Gateway) Fetch(ctx context.Context, id string) (*Entry, error) {
	if id == "" {
		return nil, validationErrorf("id is required")
	}

	var found map[string]Entry
	err := g.call(ctx, "fetch", []string{id}, func(ctx context.Context) error {
		var err error
		found, err = g.index.Fetch(ctx, []string{id})
		return err
	})
	if err != nil {
		return nil, err
	}
	entry, ok := found[id]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Count returns the number of stored entries. Backends that cannot count
// return errors.ErrUnsupported.
func (g *Gateway) Count(ctx context.Context) (int, error) {
	counter, ok := g.index.(Counter)
	if !ok {
		return 0, errors.ErrUnsupported
	}

	var n int
	err := g.call(ctx, "count", nil, func(ctx context.Context) error {
		var err error
		n, err = counter.Count(ctx)
		return err
	})
	return n, err
}
