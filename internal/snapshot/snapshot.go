// Package snapshot persists the in-memory index between restarts, either on
// local disk or in an S3-compatible bucket.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kozaktomas/face-index/internal/config"
)

// ErrNotFound is returned by Store.Get when no snapshot has been saved yet.
var ErrNotFound = errors.New("snapshot not found")

// Store holds a single snapshot blob.
type Store interface {
	Put(ctx context.Context, data []byte) error
	Get(ctx context.Context) ([]byte, error)
	Location() string
}

// Snapshotter is implemented by indexes that can export and rebuild themselves.
type Snapshotter interface {
	WriteSnapshot(w io.Writer) error
	ReadSnapshot(r io.Reader) (int, error)
}

// NewStore picks the object store when configured, otherwise a file at path.
// It returns nil when neither is set.
func NewStore(cfg *config.Config) (Store, error) {
	if cfg.Snapshot.Enabled() {
		store, err := NewMinioStore(&cfg.Snapshot)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	if cfg.Database.HNSWIndexPath != "" {
		return NewFileStore(cfg.Database.HNSWIndexPath), nil
	}
	return nil, nil
}

// Save writes the index snapshot to store.
func Save(ctx context.Context, store Store, idx Snapshotter) (int, error) {
	var buf bytes.Buffer
	if err := idx.WriteSnapshot(&buf); err != nil {
		return 0, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := store.Put(ctx, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("failed to store snapshot at %s: %w", store.Location(), err)
	}
	return buf.Len(), nil
}

// Restore loads the snapshot from store into idx and returns the entry count.
// A missing snapshot is not an error and restores nothing.
func Restore(ctx context.Context, store Store, idx Snapshotter) (int, error) {
	data, err := store.Get(ctx)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot from %s: %w", store.Location(), err)
	}
	n, err := idx.ReadSnapshot(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode snapshot from %s: %w", store.Location(), err)
	}
	return n, nil
}
