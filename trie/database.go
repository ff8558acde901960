package trie

import (
	"sync"

	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/ethdb"
)

// NodeReader resolves trie nodes by hash.
type NodeReader interface {
	Node(hash types.Hash) ([]byte, error)
}

// NodeWriter persists hashed trie nodes.
type NodeWriter interface {
	InsertNode(hash types.Hash, enc []byte) error
}

// Database is a node store over a key-value backend with a write-through
// cache. Nodes are keyed by their keccak256 hash.
type Database struct {
	mu    sync.RWMutex
	disk  ethdb.KeyValueStore
	nodes map[types.Hash][]byte
}

// NewDatabase creates a node database over the given backend. A nil backend
// yields a memory-only node store.
func NewDatabase(disk ethdb.KeyValueStore) *Database {
	return &Database{
		disk:  disk,
		nodes: make(map[types.Hash][]byte),
	}
}

// Node retrieves the RLP encoding of the node with the given hash.
func (db *Database) Node(hash types.Hash) ([]byte, error) {
	db.mu.RLock()
	enc, ok := db.nodes[hash]
	db.mu.RUnlock()
	if ok {
		return enc, nil
	}
	if db.disk == nil {
		return nil, ethdb.ErrNotFound
	}
	enc, err := db.disk.Get(nodeKey(hash))
	if err != nil {
		return nil, err
	}
	db.mu.Lock()
	db.nodes[hash] = enc
	db.mu.Unlock()
	return enc, nil
}

// InsertNode stores the RLP encoding of a node under its hash.
func (db *Database) InsertNode(hash types.Hash, enc []byte) error {
	db.mu.Lock()
	db.nodes[hash] = append([]byte(nil), enc...)
	db.mu.Unlock()
	if db.disk == nil {
		return nil
	}
	return db.disk.Put(nodeKey(hash), enc)
}

// nodeKey is the storage key of a trie node: "n" ++ hash.
func nodeKey(hash types.Hash) []byte {
	return append([]byte("n"), hash.Bytes()...)
}

var (
	_ NodeReader = (*Database)(nil)
	_ NodeWriter = (*Database)(nil)
)
