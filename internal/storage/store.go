// Package storage persists finished cycles as snapshots.
//
// It defines the SnapshotStore interface that all snapshot backends must
// satisfy, along with the types shared across backends.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Benny93/sentinel-go/internal/pipeline"
)

// ErrSnapshotNotFound is returned when no snapshot has the requested ID.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// idLayout formats the cycle timestamp into a snapshot ID.
const idLayout = "20060102_150405"

// SnapshotMeta describes a stored snapshot without its payload.
type SnapshotMeta struct {
	// ID is the UTC cycle timestamp as YYYYMMDD_HHMMSS, with a short suffix
	// when two cycles share a second.
	ID string `json:"id"`

	// CycleID is the cycle's own UUID.
	CycleID string `json:"cycle_id"`

	Timestamp time.Time        `json:"timestamp"`
	Summary   pipeline.Summary `json:"summary"`

	// SizeBytes is the encoded size of the snapshot.
	SizeBytes int `json:"size_bytes"`
}

// Snapshot is a persisted cycle.
type Snapshot struct {
	Meta  SnapshotMeta          `json:"meta"`
	Cycle *pipeline.CycleResult `json:"cycle"`
}

// Stats summarises the snapshot store.
type Stats struct {
	TotalCycles  int        `json:"total_cycles"`
	Oldest       *time.Time `json:"oldest,omitempty"`
	Newest       *time.Time `json:"newest,omitempty"`
	TotalBytes   int64      `json:"total_bytes"`
	AverageBytes float64    `json:"average_bytes"`
}

// SnapshotStore defines the interface for snapshot backends.
//
// Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Save persists a finished cycle and returns its metadata.
	Save(ctx context.Context, cycle *pipeline.CycleResult) (SnapshotMeta, error)

	// List returns up to limit snapshots, newest first. A limit <= 0 lists all.
	List(ctx context.Context, limit int) ([]SnapshotMeta, error)

	// Load returns the snapshot with the given ID or ErrSnapshotNotFound.
	Load(ctx context.Context, id string) (*Snapshot, error)

	// Latest returns the newest snapshot or ErrSnapshotNotFound.
	Latest(ctx context.Context) (*Snapshot, error)

	// Delete removes a snapshot or returns ErrSnapshotNotFound.
	Delete(ctx context.Context, id string) error

	// Stats summarises the stored snapshots.
	Stats(ctx context.Context) (Stats, error)

	// Search returns snapshots, newest first, whose signal titles contain
	// every word of term.
	Search(ctx context.Context, term string, limit int) ([]SnapshotMeta, error)

	// Close releases all resources held by the store.
	Close() error
}

// Open returns a Badger store under dataDir, or a memory store when persist
// is false.
func Open(dataDir string, persist bool) (SnapshotStore, error) {
	if !persist {
		return NewMemoryStore(), nil
	}
	return OpenBadgerStore(dataDir)
}

// baseID returns the collision-free part of a snapshot ID.
func baseID(ts time.Time) string {
	return ts.UTC().Format(idLayout)
}

// suffixedID disambiguates a colliding ID.
func suffixedID(base string) string {
	return base + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// encodeSnapshot builds and encodes the snapshot for cycle under id. The
// encoded size is recorded in the metadata before the final encoding.
func encodeSnapshot(id string, cycle *pipeline.CycleResult) (*Snapshot, []byte, error) {
	snap := &Snapshot{
		Meta: SnapshotMeta{
			ID:        id,
			CycleID:   cycle.ID,
			Timestamp: cycle.Timestamp,
			Summary:   cycle.Summary(),
		},
		Cycle: cycle,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	snap.Meta.SizeBytes = len(data)
	data, err = json.Marshal(snap)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	return snap, data, nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}

// titleTokens returns the distinct search tokens of the cycle's signal titles.
func titleTokens(cycle *pipeline.CycleResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range cycle.Signals {
		for _, tok := range tokenize(s.Title) {
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out
}

// tokenize lower-cases text and splits it on non-alphanumerics. Tokens
// shorter than two characters are dropped.
func tokenize(text string) []string {
	terms := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
	out := terms[:0]
	for _, t := range terms {
		if len(t) >= 2 {
			out = append(out, t)
		}
	}
	return out
}

func statsOf(metas []SnapshotMeta) Stats {
	var st Stats
	for i := range metas {
		m := metas[i]
		st.TotalCycles++
		st.TotalBytes += int64(m.SizeBytes)
		ts := m.Timestamp
		if st.Oldest == nil || ts.Before(*st.Oldest) {
			st.Oldest = &ts
		}
		if st.Newest == nil || ts.After(*st.Newest) {
			t := ts
			st.Newest = &t
		}
	}
	if st.TotalCycles > 0 {
		st.AverageBytes = float64(st.TotalBytes) / float64(st.TotalCycles)
	}
	return st
}
