package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-index/internal/config"
	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/database/memory"
	"github.com/kozaktomas/face-index/internal/database/pinecone"
	"github.com/kozaktomas/face-index/internal/database/postgres"
	"github.com/kozaktomas/face-index/internal/faceapi"
	"github.com/kozaktomas/face-index/internal/facematch"
	"github.com/kozaktomas/face-index/internal/facenet"
	"github.com/kozaktomas/face-index/internal/logging"
	"github.com/kozaktomas/face-index/internal/pipeline"
	"github.com/kozaktomas/face-index/internal/snapshot"
)

// app holds the wired pipeline and everything that must be released with it.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	pipeline  *pipeline.Pipeline
	memory    *memory.Index
	snapshots snapshot.Store
	closers   []func() error
}

// signalContext returns the command context, cancelled on Ctrl+C or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp connects the configured index backend and embedding model and
// builds the pipeline. The memory backend is restored from its snapshot.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: logging.Must(cfg.LogDebug)}

	thresholds, err := cfg.Thresholds()
	if err != nil {
		return nil, err
	}

	index, err := a.openIndex(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	faceAPI := faceapi.NewClient(cfg.Embedding.URL, cfg.Embedding.Model, cfg.Embedding.InputSize)
	var model facematch.Model = faceAPI
	if cfg.Embedding.Backend == "onnx" {
		onnx, err := facenet.NewONNXModel(cfg.Embedding.ModelPath, cfg.Embedding.InputSize, cfg.Index.Dimension)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to load ONNX model: %w", err)
		}
		a.closers = append(a.closers, onnx.Close)
		model = onnx
	}

	gateway := database.NewGateway(index, database.GatewayConfig{
		Dimension:         cfg.Index.Dimension,
		Timeout:           cfg.Index.Timeout,
		RateLimit:         cfg.Index.RateLimit,
		ConditionalInsert: cfg.Index.ConditionalInsert,
	}, a.logger)

	a.pipeline = pipeline.New(
		facematch.NewLocalizer(faceAPI, a.logger),
		facematch.NewExtractor(model, cfg.Index.Dimension, cfg.Pipeline.ScratchDir, a.logger),
		gateway,
		pipeline.Options{
			Thresholds: thresholds,
			TopK:       cfg.Index.TopK,
			Workers:    cfg.Pipeline.Workers,
		},
		a.logger,
	)

	a.logger.Info("pipeline ready",
		zap.String("backend", gateway.Backend()),
		zap.String("model", model.Name()),
		zap.String("metric", string(thresholds.Metric)),
		zap.Int("workers", cfg.Pipeline.Workers))
	return a, nil
}

func (a *app) openIndex(ctx context.Context) (database.Index, error) {
	cfg := a.cfg
	switch cfg.Index.Backend {
	case "pinecone":
		client, err := pinecone.NewClient(&cfg.Pinecone, cfg.Index.Name, cfg.Index.Metric)
		if err != nil {
			return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
		}
		return client, nil

	case "postgres":
		pool, err := postgres.Open(ctx, &cfg.Database, cfg.Index.Dimension, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		return postgres.NewVectorIndex(pool, cfg.Index.Dimension, cfg.Index.Metric), nil

	case "memory":
		a.memory = memory.New(cfg.Index.Dimension, cfg.Index.Metric,
			memory.WithExactSearchLimit(cfg.Index.ExactSearchLimit))
		store, err := snapshot.NewStore(cfg)
		if err != nil {
			return nil, err
		}
		if store == nil {
			a.logger.Warn("memory index has no snapshot location; entries are lost on exit")
			return a.memory, nil
		}
		n, err := snapshot.Restore(ctx, store, a.memory)
		if err != nil {
			return nil, err
		}
		a.snapshots = store
		a.logger.Info("memory index restored", zap.String("location", store.Location()), zap.Int("entries", n))
		return a.memory, nil
	}
	return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
}

// Save persists the memory index snapshot, if there is one to persist.
func (a *app) Save(ctx context.Context) error {
	if a.memory == nil || a.snapshots == nil {
		return nil
	}
	size, err := snapshot.Save(ctx, a.snapshots, a.memory)
	if err != nil {
		return err
	}
	a.logger.Info("memory index saved", zap.String("location", a.snapshots.Location()), zap.Int("bytes", size))
	return nil
}

// Close saves the snapshot and releases backends and models.
func (a *app) Close(ctx context.Context) error {
	errs := []error{a.Save(ctx)}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
