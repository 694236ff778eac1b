package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-index/internal/constants"
	"github.com/kozaktomas/face-index/internal/facematch"
)

//go:embed scoring.yaml
var scoringYAML []byte

type Config struct {
	API       APIConfig
	Index     IndexConfig
	Pinecone  PineconeConfig
	Database  DatabaseConfig
	Snapshot  SnapshotConfig
	Embedding EmbeddingConfig
	Scoring   ScoringConfig
	Pipeline  PipelineConfig
	Web       WebConfig
	LogDebug  bool
	ASCIIIDs  bool // strip diacritics from ids derived from filenames
}

type APIConfig struct {
	Key    string // shared secret expected in Header
	Header string // defaults to access_token
}

type IndexConfig struct {
	Backend           string // pinecone, postgres or memory
	Name              string
	Dimension         int
	Metric            facematch.Metric
	Timeout           time.Duration
	RateLimit         float64 // calls per second, 0 = unlimited
	ConditionalInsert bool
	TopK              int
	ExactSearchLimit  int // memory backend: scan every vector up to this many entries
}

type PineconeConfig struct {
	APIKey      string
	Environment string
	Project     string
	Host        string // overrides the host derived from name/project/environment
	Namespace   string
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the in-memory index snapshot (optional)
}

type SnapshotConfig struct {
	Endpoint  string // S3-compatible endpoint; empty keeps snapshots on local disk
	Bucket    string
	Object    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Enabled reports whether an object store is configured for snapshots.
func (c *SnapshotConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

type EmbeddingConfig struct {
	Backend   string // http or onnx
	URL       string // face model server, defaults to http://localhost:8000
	Model     string // defaults to Facenet
	ModelPath string // ONNX graph for the onnx backend
	InputSize int    // defaults to 160
}

type ScoringConfig struct {
	Models map[string]ModelThresholds `yaml:"models"`
}

// ModelThresholds holds per-metric defaults for one model.
type ModelThresholds map[facematch.Metric]ThresholdPair

type ThresholdPair struct {
	Exact   float64 `yaml:"exact"`
	Similar float64 `yaml:"similar"`
}

type PipelineConfig struct {
	Workers    int
	ScratchDir string
}

type WebConfig struct {
	Host string
	Port int
}

// Addr returns host:port for the HTTP listener.
func (c *WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a non-negative float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var scoring ScoringConfig
	if err := yaml.Unmarshal(scoringYAML, &scoring); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded scoring.yaml: " + err.Error())
	}

	// An unknown metric is kept as-is so Validate can report it.
	metric := facematch.Metric(strings.ToLower(envString("INDEX_METRIC", string(facematch.MetricEuclidean))))

	return &Config{
		API: APIConfig{
			Key:    os.Getenv("API_KEY"),
			Header: envString("API_KEY_HEADER", constants.DefaultTokenHeader),
		},
		Index: IndexConfig{
			Backend:           strings.ToLower(envString("INDEX_BACKEND", "memory")),
			Name:              envString("INDEX_NAME", "faces"),
			Dimension:         envInt("INDEX_DIMENSION", facematch.DefaultDimension),
			Metric:            metric,
			Timeout:           envDuration("INDEX_TIMEOUT", 30*time.Second),
			RateLimit:         envFloat("INDEX_RATE_LIMIT", 0),
			ConditionalInsert: envBool("INDEX_CONDITIONAL_INSERT", false),
			TopK:              envInt("INDEX_TOP_K", constants.DefaultTopK),
			ExactSearchLimit:  envInt("INDEX_EXACT_SEARCH_LIMIT", constants.ExactSearchLimit),
		},
		Pinecone: PineconeConfig{
			APIKey:      os.Getenv("PINECONE_API_KEY"),
			Environment: os.Getenv("PINECONE_ENVIRONMENT"),
			Project:     os.Getenv("PINECONE_PROJECT"),
			Host:        os.Getenv("PINECONE_HOST"),
			Namespace:   os.Getenv("PINECONE_NAMESPACE"),
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Snapshot: SnapshotConfig{
			Endpoint:  os.Getenv("SNAPSHOT_S3_ENDPOINT"),
			Bucket:    os.Getenv("SNAPSHOT_S3_BUCKET"),
			Object:    envString("SNAPSHOT_S3_OBJECT", "face-index.snapshot"),
			AccessKey: os.Getenv("SNAPSHOT_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("SNAPSHOT_S3_SECRET_KEY"),
			UseSSL:    envBool("SNAPSHOT_S3_USE_SSL", true),
		},
		Embedding: EmbeddingConfig{
			Backend:   strings.ToLower(envString("EMBEDDING_BACKEND", "http")),
			URL:       os.Getenv("FACE_API_URL"),
			Model:     envString("EMBEDDING_MODEL", "Facenet"),
			ModelPath: os.Getenv("ONNX_MODEL_PATH"),
			InputSize: envInt("EMBEDDING_INPUT_SIZE", 160),
		},
		Scoring: scoring,
		Pipeline: PipelineConfig{
			Workers:    envInt("WORKER_POOL_SIZE", constants.WorkerPoolSize),
			ScratchDir: os.Getenv("SCRATCH_DIR"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
		LogDebug: envBool("LOG_DEBUG", false),
		ASCIIIDs: envBool("ASCII_IDS", false),
	}
}

// Thresholds returns the scoring thresholds for the configured model and
// metric. SCORE_EXACT_THRESHOLD and SCORE_SIMILAR_THRESHOLD override the
// embedded defaults.
func (c *Config) Thresholds() (facematch.Thresholds, error) {
	t := facematch.Thresholds{Metric: c.Index.Metric}

	pair, ok := c.Scoring.Models[c.Embedding.Model][c.Index.Metric]
	if ok {
		t.Exact, t.Similar = pair.Exact, pair.Similar
	}

	exact, exactSet := os.LookupEnv("SCORE_EXACT_THRESHOLD")
	similar, similarSet := os.LookupEnv("SCORE_SIMILAR_THRESHOLD")
	if !ok && (!exactSet || !similarSet) {
		return t, fmt.Errorf("no default thresholds for model %s with metric %s; set SCORE_EXACT_THRESHOLD and SCORE_SIMILAR_THRESHOLD",
			c.Embedding.Model, c.Index.Metric)
	}
	if exactSet {
		v, err := strconv.ParseFloat(exact, 64)
		if err != nil {
			return t, fmt.Errorf("invalid SCORE_EXACT_THRESHOLD: %w", err)
		}
		t.Exact = v
	}
	if similarSet {
		v, err := strconv.ParseFloat(similar, 64)
		if err != nil {
			return t, fmt.Errorf("invalid SCORE_SIMILAR_THRESHOLD: %w", err)
		}
		t.Similar = v
	}

	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Validate reports missing or inconsistent settings for the selected backends.
func (c *Config) Validate() error {
	var errs []error

	if _, err := facematch.ParseMetric(string(c.Index.Metric)); err != nil {
		errs = append(errs, fmt.Errorf("INDEX_METRIC: %w", err))
	}

	switch c.Index.Backend {
	case "pinecone":
		if c.Pinecone.APIKey == "" {
			errs = append(errs, errors.New("PINECONE_API_KEY is required for the pinecone backend"))
		}
		if c.Pinecone.Host == "" && (c.Pinecone.Environment == "" || c.Pinecone.Project == "") {
			errs = append(errs, errors.New("PINECONE_HOST or PINECONE_ENVIRONMENT and PINECONE_PROJECT are required for the pinecone backend"))
		}
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown INDEX_BACKEND %q (want pinecone, postgres or memory)", c.Index.Backend))
	}

	switch c.Embedding.Backend {
	case "http":
	case "onnx":
		if c.Embedding.ModelPath == "" {
			errs = append(errs, errors.New("ONNX_MODEL_PATH is required for the onnx embedding backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_BACKEND %q (want http or onnx)", c.Embedding.Backend))
	}

	if c.Snapshot.Endpoint != "" && c.Snapshot.Bucket == "" {
		errs = append(errs, errors.New("SNAPSHOT_S3_BUCKET is required when SNAPSHOT_S3_ENDPOINT is set"))
	}

	if _, err := c.Thresholds(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
