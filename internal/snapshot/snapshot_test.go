package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-index/internal/config"
	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/database/memory"
	"github.com/kozaktomas/face-index/internal/facematch"
)

func vector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)/float32(dim)
	}
	return v
}

func TestFileStore_PutGet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "index.snapshot")
	store := NewFileStore(path)

	_, err := store.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, []byte("first")))
	require.NoError(t, store.Put(ctx, []byte("second")))

	data, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, path, store.Location())
}

func TestSaveRestore_MemoryIndex(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "index.snapshot"))

	src := memory.New(8, facematch.MetricEuclidean)
	require.NoError(t, src.Upsert(ctx, []database.Entry{
		{ID: "a", Vector: vector(8, 1)},
		{ID: "b", Vector: vector(8, 5)},
	}))

	size, err := Save(ctx, store, src)
	require.NoError(t, err)
	assert.Positive(t, size)

	dst := memory.New(8, facematch.MetricEuclidean)
	n, err := Restore(ctx, store, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := dst.Fetch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, facematch.Embedding(vector(8, 5)), got["b"].Vector)
}

func TestRestore_MissingSnapshot(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "none.snapshot"))
	n, err := Restore(context.Background(), store, memory.New(8, facematch.MetricEuclidean))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRestore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "index.snapshot"))

	src := memory.New(8, facematch.MetricEuclidean)
	require.NoError(t, src.Upsert(ctx, []database.Entry{{ID: "a", Vector: vector(8, 1)}}))
	_, err := Save(ctx, store, src)
	require.NoError(t, err)

	_, err = Restore(ctx, store, memory.New(16, facematch.MetricEuclidean))
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	cfg := &config.Config{}
	store, err := NewStore(cfg)
	require.NoError(t, err)
	assert.Nil(t, store)

	cfg.Database.HNSWIndexPath = filepath.Join(t.TempDir(), "x.snapshot")
	store, err = NewStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	cfg.Snapshot = config.SnapshotConfig{Endpoint: "localhost:9000", Bucket: "faces", Object: "idx"}
	store, err = NewStore(cfg)
	require.NoError(t, err)
	assert.Equal(t, "s3://faces/idx", store.Location())
}
