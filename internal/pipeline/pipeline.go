// Package pipeline wires face localization, embedding extraction and the index
// gateway into the four request flows: insert, query, update and delete.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/facematch"
)

// ErrValidation is returned for requests rejected before any stage runs.
var ErrValidation = database.ErrValidation

// Mode selects the request flow.
type Mode int

const (
	ModeInsert Mode = iota
	ModeQuery
	ModeUpdate
	ModeDelete
)

func (m Mode) String() string {
	switch m {
	case ModeInsert:
		return "insert"
	case ModeQuery:
		return "query"
	case ModeUpdate:
		return "update"
	case ModeDelete:
		return "delete"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Request is one unit of work. Image is required for insert, query and
// update; ID for insert and update; IDs (or ID) for delete.
type Request struct {
	Mode  Mode
	ID    string
	IDs   []string
	Image []byte
}

// Outcome carries the flow's result or the first stage failure.
// Value is *IndexResult, []facematch.MatchResult, *database.UpdateResponse or
// *database.DeleteAck depending on the mode.
type Outcome struct {
	Value any
	Err   error
}

// IndexResult reports what an insert did.
type IndexResult struct {
	ID     string
	Result database.InsertResult
}

// Options tune the pipeline.
type Options struct {
	Thresholds facematch.Thresholds
	TopK       int // matches scored per query, default 1
	Workers    int // worker pool size
}

// Pipeline runs requests through Localizer, Extractor and Gateway.
type Pipeline struct {
	localizer  *facematch.Localizer
	extractor  *facematch.Extractor
	gateway    *database.Gateway
	thresholds facematch.Thresholds
	topK       int
	pool       *WorkerPool
	logger     *zap.Logger
}

// New creates a pipeline. The gateway is shared; the pipeline does not own it.
func New(localizer *facematch.Localizer, extractor *facematch.Extractor, gateway *database.Gateway, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		localizer:  localizer,
		extractor:  extractor,
		gateway:    gateway,
		thresholds: opts.Thresholds,
		topK:       max(opts.TopK, 1),
		pool:       NewWorkerPool(opts.Workers, logger),
		logger:     logger,
	}
}

// Gateway returns the index gateway.
func (p *Pipeline) Gateway() *database.Gateway {
	return p.gateway
}

// Thresholds returns the scoring thresholds in use.
func (p *Pipeline) Thresholds() facematch.Thresholds {
	return p.thresholds
}

// Execute dispatches req to its flow. Any stage failure short-circuits the rest.
func (p *Pipeline) Execute(ctx context.Context, req Request) Outcome {
	switch req.Mode {
	case ModeInsert:
		res, err := p.Index(ctx, req.ID, req.Image)
		if err != nil {
			return Outcome{Err: err}
		}
		return Outcome{Value: &IndexResult{ID: req.ID, Result: res}}
	case ModeQuery:
		results, err := p.Validate(ctx, req.Image)
		return Outcome{Value: results, Err: err}
	case ModeUpdate:
		resp, err := p.Replace(ctx, req.ID, req.Image)
		if err != nil {
			return Outcome{Err: err}
		}
		return Outcome{Value: resp}
	case ModeDelete:
		ids := req.IDs
		if len(ids) == 0 && req.ID != "" {
			ids = []string{req.ID}
		}
		ack, err := p.Delete(ctx, ids...)
		if err != nil {
			return Outcome{Err: err}
		}
		return Outcome{Value: ack}
	}
	return Outcome{Err: fmt.Errorf("%w: unknown mode %s", ErrValidation, req.Mode)}
}

// runLogger tags log lines of one request.
func (p *Pipeline) runLogger(mode Mode, id string) *zap.Logger {
	return p.logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.Stringer("mode", mode),
		zap.String("id", id),
	)
}

// embed decodes the upload, finds the face and extracts its embedding.
// Callers hold a pool slot.
func (p *Pipeline) embed(ctx context.Context, data []byte, logger *zap.Logger) (facematch.Embedding, error) {
	img, err := facematch.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	face, err := p.localizer.Locate(ctx, img)
	if err != nil {
		return nil, err
	}

	emb, err := p.extractor.Embed(ctx, face)
	if err != nil {
		return nil, err
	}
	if len(emb) != p.gateway.Dimension() {
		return nil, &facematch.ExtractionError{
			Reason:    fmt.Sprintf("embedding has %d values, index expects %d", len(emb), p.gateway.Dimension()),
			InputType: "FaceRegion",
			ImageSize: img.Shape(),
			FaceSize:  face.Pixels.Shape(),
			Err:       facematch.ErrDimensionMismatch,
		}
	}
	logger.Debug("embedding extracted", zap.Stringer("box", face.Box))
	return emb, nil
}

// Index inserts the face in image under id unless id is already indexed.
func (p *Pipeline) Index(ctx context.Context, id string, image []byte) (database.InsertResult, error) {
	if id == "" {
		return database.InsertSkipped, fmt.Errorf("%w: id is required", ErrValidation)
	}
	logger := p.runLogger(ModeInsert, id)

	var res database.InsertResult
	err := p.pool.Do(ctx, func(ctx context.Context) error {
		emb, err := p.embed(ctx, image, logger)
		if err != nil {
			return err
		}
		res, err = p.gateway.InsertIfAbsent(ctx, id, emb)
		return err
	})
	if err != nil {
		logger.Info("insert failed", zap.Error(err))
		return database.InsertSkipped, err
	}
	logger.Info("insert finished", zap.Stringer("result", res))
	return res, nil
}

// Validate scores the nearest indexed faces to the face in image.
func (p *Pipeline) Validate(ctx context.Context, image []byte) ([]facematch.MatchResult, error) {
	logger := p.runLogger(ModeQuery, "")

	var matches []database.Match
	err := p.pool.Do(ctx, func(ctx context.Context) error {
		emb, err := p.embed(ctx, image, logger)
		if err != nil {
			return err
		}
		matches, err = p.gateway.Query(ctx, emb, p.topK)
		return err
	})
	if err != nil {
		logger.Info("query failed", zap.Error(err))
		return nil, err
	}

	results := make([]facematch.MatchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, p.thresholds.Score(m.ID, m.Distance))
	}
	if len(results) > 0 {
		logger.Info("query finished",
			zap.String("top_id", results[0].ID),
			zap.Float64("score", results[0].Score),
			zap.Stringer("label", results[0].Label))
	} else {
		logger.Info("query finished with empty index")
	}
	return results, nil
}

// Replace overwrites the vector of id with the face in image.
func (p *Pipeline) Replace(ctx context.Context, id string, image []byte) (*database.UpdateResponse, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrValidation)
	}
	logger := p.runLogger(ModeUpdate, id)

	var resp *database.UpdateResponse
	err := p.pool.Do(ctx, func(ctx context.Context) error {
		emb, err := p.embed(ctx, image, logger)
		if err != nil {
			return err
		}
		resp, err = p.gateway.Update(ctx, id, emb)
		return err
	})
	if err != nil {
		logger.Info("update failed", zap.Error(err))
		return nil, err
	}
	logger.Info("update finished")
	return resp, nil
}

// Delete removes ids from the index in one batch.
func (p *Pipeline) Delete(ctx context.Context, ids ...string) (*database.DeleteAck, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: id is required", ErrValidation)
	}
	logger := p.runLogger(ModeDelete, ids[0])

	var ack *database.DeleteAck
	err := p.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		ack, err = p.gateway.Remove(ctx, ids...)
		return err
	})
	if err != nil {
		logger.Info("delete failed", zap.Error(err))
		return nil, err
	}
	logger.Info("delete finished", zap.Int("count", len(ids)))
	return ack, nil
}

// Item is one file to bulk index.
type Item struct {
	ID   string
	Path string
}

// ItemResult is the per-item outcome of BulkIndex.
type ItemResult struct {
	Item   Item
	Result database.InsertResult
	Err    error
}

// BulkIndex inserts many images concurrently. Failures are reported per item
// and never stop the rest. onDone, if set, is called after each item and
// may be called concurrently.
func (p *Pipeline) BulkIndex(ctx context.Context, items []Item, onDone func(ItemResult)) []ItemResult {
	results := make([]ItemResult, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.pool.Size())
	for i, item := range items {
		g.Go(func() error {
			r := ItemResult{Item: item, Result: database.InsertSkipped}
			data, err := os.ReadFile(item.Path)
			if err != nil {
				r.Err = fmt.Errorf("failed to read %s: %w", item.Path, err)
			} else {
				r.Result, r.Err = p.Index(ctx, item.ID, data)
			}
			results[i] = r
			if onDone != nil {
				onDone(r)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
