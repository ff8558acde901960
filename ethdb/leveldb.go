package ethdb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDB is a persistent key-value store backed by goleveldb.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB database at the given path.
func NewLevelDB(path string, cacheMiB, handles int) (*LevelDB, error) {
	if cacheMiB < 16 {
		cacheMiB = 16
	}
	if handles < 16 {
		handles = 16
	}
	options := &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cacheMiB / 2 * opt.MiB,
		WriteBuffer:            cacheMiB / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	}
	db, err := leveldb.OpenFile(path, options)
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Has(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return value, err
}

func (l *LevelDB) Put(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

// NewBatch creates a write batch over the database.
func (l *LevelDB) NewBatch() Batch {
	return &levelBatch{db: l.db, batch: new(leveldb.Batch)}
}

type levelBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
	size  int
}

func (b *levelBatch) Put(key, value []byte) error {
	b.batch.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *levelBatch) Delete(key []byte) error {
	b.batch.Delete(key)
	b.size += len(key)
	return nil
}

func (b *levelBatch) ValueSize() int { return b.size }

func (b *levelBatch) Write() error {
	return b.db.Write(b.batch, nil)
}

func (b *levelBatch) Reset() {
	b.batch.Reset()
	b.size = 0
}

var _ Database = (*LevelDB)(nil)
