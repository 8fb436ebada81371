package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/sentinel-go/internal/pipeline"
)

// Key prefixes for different data types
const (
	prefixCycle = "c:" // c:<id> -> snapshot JSON
	prefixMeta  = "m:" // m:<id> -> metadata JSON
	prefixToken = "t:" // t:<token>:<id> -> empty
)

// BadgerStore is a BadgerDB-backed snapshot store.
type BadgerStore struct {
	mu sync.RWMutex
	db *badger.DB
}

// OpenBadgerStore opens or creates a store in dir/snapshots.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Join(dir, "snapshots")).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger DB: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the database.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// Save persists cycle under a timestamp-derived ID.
func (b *BadgerStore) Save(ctx context.Context, cycle *pipeline.CycleResult) (SnapshotMeta, error) {
	if cycle == nil {
		return SnapshotMeta{}, errors.New("nil cycle")
	}
	if err := ctx.Err(); err != nil {
		return SnapshotMeta{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var meta SnapshotMeta
	err := b.db.Update(func(txn *badger.Txn) error {
		id := baseID(cycle.Timestamp)
		if exists(txn, cycleKey(id)) {
			id = suffixedID(id)
		}

		snap, data, err := encodeSnapshot(id, cycle)
		if err != nil {
			return err
		}
		metaData, err := json.Marshal(snap.Meta)
		if err != nil {
			return fmt.Errorf("marshaling meta: %w", err)
		}

		if err := txn.Set(cycleKey(id), data); err != nil {
			return fmt.Errorf("setting snapshot: %w", err)
		}
		if err := txn.Set(metaKey(id), metaData); err != nil {
			return fmt.Errorf("setting meta: %w", err)
		}
		for _, tok := range titleTokens(cycle) {
			if err := txn.Set(tokenKey(tok, id), nil); err != nil {
				return fmt.Errorf("indexing token: %w", err)
			}
		}
		meta = snap.Meta
		return nil
	})
	return meta, err
}

// List returns snapshot metadata newest first.
func (b *BadgerStore) List(ctx context.Context, limit int) ([]SnapshotMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	metas := []SnapshotMeta{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixMeta)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seekLast(prefixMeta)); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var m SnapshotMeta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				continue
			}
			metas = append(metas, m)
			if limit > 0 && len(metas) >= limit {
				break
			}
		}
		return nil
	})
	return metas, err
}

// Load returns a snapshot by ID.
func (b *BadgerStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var snap *Snapshot
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cycleKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			s, err := decodeSnapshot(val)
			snap = s
			return err
		})
	})
	return snap, err
}

// Latest returns the newest snapshot.
func (b *BadgerStore) Latest(ctx context.Context) (*Snapshot, error) {
	metas, err := b.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return b.Load(ctx, metas[0].ID)
}

// Delete removes a snapshot and its index entries.
func (b *BadgerStore) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(cycleKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		if err != nil {
			return err
		}

		var snap *Snapshot
		if err := item.Value(func(val []byte) error {
			s, err := decodeSnapshot(val)
			snap = s
			return err
		}); err != nil {
			return err
		}

		if snap.Cycle != nil {
			for _, tok := range titleTokens(snap.Cycle) {
				if err := txn.Delete(tokenKey(tok, id)); err != nil {
					return err
				}
			}
		}
		if err := txn.Delete(metaKey(id)); err != nil {
			return err
		}
		return txn.Delete(cycleKey(id))
	})
}

// Stats summarises all snapshots.
func (b *BadgerStore) Stats(ctx context.Context) (Stats, error) {
	metas, err := b.List(ctx, 0)
	if err != nil {
		return Stats{}, err
	}
	return statsOf(metas), nil
}

// Search returns snapshots whose signal titles contain every token of term.
func (b *BadgerStore) Search(ctx context.Context, term string, limit int) ([]SnapshotMeta, error) {
	tokens := tokenize(term)
	if len(tokens) == 0 {
		return []SnapshotMeta{}, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var ids map[string]bool
	err := b.db.View(func(txn *badger.Txn) error {
		for _, tok := range tokens {
			found := idsForToken(txn, tok)
			if ids == nil {
				ids = found
				continue
			}
			for id := range ids {
				if !found[id] {
					delete(ids, id)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := []SnapshotMeta{}
	err = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixMeta)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seekLast(prefixMeta)); it.Valid(); it.Next() {
			id := string(bytes.TrimPrefix(it.Item().Key(), []byte(prefixMeta)))
			if !ids[id] {
				continue
			}
			var m SnapshotMeta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				continue
			}
			results = append(results, m)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
		return nil
	})
	return results, err
}

func idsForToken(txn *badger.Txn, tok string) map[string]bool {
	prefix := []byte(prefixToken + tok + ":")
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	ids := make(map[string]bool)
	for it.Rewind(); it.Valid(); it.Next() {
		ids[string(bytes.TrimPrefix(it.Item().Key(), prefix))] = true
	}
	return ids
}

func exists(txn *badger.Txn, key []byte) bool {
	_, err := txn.Get(key)
	return err == nil
}

// seekLast returns a key that sorts after every key with prefix.
func seekLast(prefix string) []byte {
	return append([]byte(prefix), 0xFF)
}

func cycleKey(id string) []byte { return []byte(prefixCycle + id) }

func metaKey(id string) []byte { return []byte(prefixMeta + id) }

func tokenKey(tok, id string) []byte { return []byte(prefixToken + tok + ":" + id) }
