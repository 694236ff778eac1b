package memory

import (
	"encoding/gob"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/facematch"
)

const snapshotVersion = 1

// snapshotData is the gob payload inside the zstd stream.
type snapshotData struct {
	Version   int
	SavedAt   time.Time
	Metric    facematch.Metric
	Dimension int
	Entries   []database.Entry
}

// WriteSnapshot writes all entries as a zstd-compressed gob stream.
func (x *Index) WriteSnapshot(w io.Writer) error {
	x.mu.RLock()
	data := snapshotData{
		Version:   snapshotVersion,
		SavedAt:   time.Now().UTC(),
		Metric:    x.metric,
		Dimension: x.dim,
		Entries:   make([]database.Entry, 0, len(x.vectors)),
	}
	for id, v := range x.vectors {
		data.Entries = append(data.Entries, database.Entry{ID: id, Vector: v})
	}
	x.mu.RUnlock()

	sort.Slice(data.Entries, func(i, j int) bool { return data.Entries[i].ID < data.Entries[j].ID })

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := gob.NewEncoder(enc).Encode(data); err != nil {
		enc.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot replaces the index contents with a snapshot and rebuilds the
// graph. It returns the number of entries loaded.
func (x *Index) ReadSnapshot(r io.Reader) (int, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	var data snapshotData
	if err := gob.NewDecoder(dec).Decode(&data); err != nil {
		return 0, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if data.Version != snapshotVersion {
		return 0, fmt.Errorf("unsupported snapshot version %d", data.Version)
	}
	if data.Dimension != x.dim {
		return 0, fmt.Errorf("snapshot dimension %d does not match index dimension %d", data.Dimension, x.dim)
	}
	if data.Metric != x.metric {
		return 0, fmt.Errorf("snapshot metric %s does not match index metric %s", data.Metric, x.metric)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.reset(len(data.Entries))
	for _, e := range data.Entries {
		if len(e.Vector) != x.dim {
			continue
		}
		x.put(e.ID, e.Vector)
	}
	return len(x.vectors), nil
}
