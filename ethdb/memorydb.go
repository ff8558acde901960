package ethdb

import (
	"sort"
	"sync"
)

// MemoryDatabase is an in-memory key-value store for tests and ephemeral
// chains. It is safe for concurrent use.
type MemoryDatabase struct {
	mu sync.RWMutex
	kv map[string][]byte
}

// NewMemoryDatabase creates an empty in-memory database.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{kv: make(map[string][]byte)}
}

func (db *MemoryDatabase) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.kv[string(key)]
	return ok, nil
}

func (db *MemoryDatabase) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if v, ok := db.kv[string(key)]; ok {
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	}
	return nil, ErrNotFound
}

func (db *MemoryDatabase) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	db.kv[string(key)] = v
	return nil
}

func (db *MemoryDatabase) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.kv, string(key))
	return nil
}

func (db *MemoryDatabase) Close() error { return nil }

// Len returns the number of stored entries.
func (db *MemoryDatabase) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.kv)
}

// Keys returns all keys in sorted order.
func (db *MemoryDatabase) Keys() [][]byte {
	db.mu.RLock()
	defer db.mu.RUnlock()
	keys := make([]string, 0, len(db.kv))
	for k := range db.kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out
}

// NewBatch creates a write batch over the database.
func (db *MemoryDatabase) NewBatch() Batch {
	return &memoryBatch{db: db}
}

type memoryOp struct {
	key    []byte
	value  []byte
	delete bool
}

type memoryBatch struct {
	db   *MemoryDatabase
	ops  []memoryOp
	size int
}

func (b *memoryBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, memoryOp{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
	b.size += len(key) + len(value)
	return nil
}

func (b *memoryBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memoryOp{key: append([]byte(nil), key...), delete: true})
	b.size += len(key)
	return nil
}

func (b *memoryBatch) ValueSize() int { return b.size }

func (b *memoryBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, op := range b.ops {
		if op.delete {
			delete(b.db.kv, string(op.key))
			continue
		}
		b.db.kv[string(op.key)] = op.value
	}
	return nil
}

func (b *memoryBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

var _ Database = (*MemoryDatabase)(nil)
