package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Benny93/sentinel-go/internal/pipeline"
)

// MemoryStore is an in-memory snapshot store for tests and --no-persist runs.
// Snapshots are held encoded so loads return independent copies.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	metas  map[string]SnapshotMeta
	tokens map[string]map[string]bool // token -> set of snapshot IDs
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   make(map[string][]byte),
		metas:  make(map[string]SnapshotMeta),
		tokens: make(map[string]map[string]bool),
	}
}

// Save stores cycle.
func (m *MemoryStore) Save(ctx context.Context, cycle *pipeline.CycleResult) (SnapshotMeta, error) {
	if cycle == nil {
		return SnapshotMeta{}, errors.New("nil cycle")
	}
	if err := ctx.Err(); err != nil {
		return SnapshotMeta{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := baseID(cycle.Timestamp)
	if _, taken := m.data[id]; taken {
		id = suffixedID(id)
	}
	snap, data, err := encodeSnapshot(id, cycle)
	if err != nil {
		return SnapshotMeta{}, err
	}

	m.data[id] = data
	m.metas[id] = snap.Meta
	for _, tok := range titleTokens(cycle) {
		if m.tokens[tok] == nil {
			m.tokens[tok] = make(map[string]bool)
		}
		m.tokens[tok][id] = true
	}
	return snap.Meta, nil
}

// List returns metadata newest first.
func (m *MemoryStore) List(ctx context.Context, limit int) ([]SnapshotMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted(func(string) bool { return true }, limit), nil
}

// Load returns a copy of the snapshot.
func (m *MemoryStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	m.mu.RLock()
	data, ok := m.data[id]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return decodeSnapshot(data)
}

// Latest returns the newest snapshot.
func (m *MemoryStore) Latest(ctx context.Context) (*Snapshot, error) {
	metas, _ := m.List(ctx, 1)
	if len(metas) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return m.Load(ctx, metas[0].ID)
}

// Delete removes a snapshot.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	delete(m.data, id)
	delete(m.metas, id)
	for tok, ids := range m.tokens {
		delete(ids, id)
		if len(ids) == 0 {
			delete(m.tokens, tok)
		}
	}
	return nil
}

// Stats summarises the store.
func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	metas, _ := m.List(ctx, 0)
	return statsOf(metas), nil
}

// Search returns snapshots whose signal titles contain every token of term.
func (m *MemoryStore) Search(ctx context.Context, term string, limit int) ([]SnapshotMeta, error) {
	tokens := tokenize(term)
	if len(tokens) == 0 {
		return []SnapshotMeta{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sorted(func(id string) bool {
		for _, tok := range tokens {
			if !m.tokens[tok][id] {
				return false
			}
		}
		return true
	}, limit), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Len returns the number of stored snapshots.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// sorted returns matching metadata ordered by ID descending. Caller holds mu.
func (m *MemoryStore) sorted(match func(id string) bool, limit int) []SnapshotMeta {
	ids := make([]string, 0, len(m.metas))
	for id := range m.metas {
		if match(id) {
			ids = append(ids, id)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]SnapshotMeta, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.metas[id])
	}
	return out
}
