package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Benny93/sentinel-go/internal/logging"
	"github.com/Benny93/sentinel-go/internal/pipeline"
)

// Recorder persists every finished cycle into a SnapshotStore.
type Recorder struct {
	store SnapshotStore
	log   *slog.Logger
}

// NewRecorder returns a pipeline.Recorder backed by store.
func NewRecorder(store SnapshotStore, log *slog.Logger) *Recorder {
	return &Recorder{store: store, log: logging.OrDefault(log)}
}

// Record implements pipeline.Recorder.
func (r *Recorder) Record(ctx context.Context, res *pipeline.CycleResult) error {
	meta, err := r.store.Save(ctx, res)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	r.log.Info("snapshot saved", "snapshot_id", meta.ID, "cycle_id", meta.CycleID, "bytes", meta.SizeBytes)
	return nil
}
