package watcher

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	indexed []string
	removed []string
}

func (r *recorder) index(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, path)
}

func (r *recorder) remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.indexed), slices.Clone(r.removed)
}

func TestWatcher_IndexesNewImagesOnce(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := New([]string{dir}, true, rec.index, rec.remove, WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	img := filepath.Join(dir, "alice.jpg")
	require.NoError(t, os.WriteFile(img, []byte("part"), 0o600))
	require.NoError(t, os.WriteFile(img, []byte("partial write"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	require.Eventually(t, func() bool {
		indexed, _ := rec.snapshot()
		return len(indexed) == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	indexed, _ := rec.snapshot()
	assert.Equal(t, []string{img}, indexed)
}

func TestWatcher_ReportsRemovals(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "bob.png")
	require.NoError(t, os.WriteFile(img, []byte("x"), 0o600))

	rec := &recorder{}
	w := New([]string{dir}, false, rec.index, rec.remove, WithDebounce(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.Remove(img))
	require.Eventually(t, func() bool {
		_, removed := rec.snapshot()
		return slices.Contains(removed, img)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := New([]string{dir}, true, rec.index, nil, WithDebounce(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	sub := filepath.Join(dir, "team")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	img := filepath.Join(sub, "carol.jpeg")
	require.NoError(t, os.WriteFile(img, []byte("x"), 0o600))
	require.Eventually(t, func() bool {
		indexed, _ := rec.snapshot()
		return slices.Contains(indexed, img)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	for _, p := range []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "skip.txt"),
		filepath.Join(sub, "b.png"),
	} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}

	flat := &recorder{}
	New([]string{dir}, false, flat.index, nil).SyncExisting()
	indexed, _ := flat.snapshot()
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg")}, indexed)

	deep := &recorder{}
	New([]string{dir}, true, deep.index, nil).SyncExisting()
	indexed, _ = deep.snapshot()
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(sub, "b.png")}, indexed)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New([]string{t.TempDir()}, false, nil, nil)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
