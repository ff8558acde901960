package state

import (
	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/ethdb"
	"github.com/ethforge/ethforge/trie"
)

// codeKeyPrefix namespaces contract code in the backing store, distinct
// from the chain schema prefixes in core/rawdb.
var codeKeyPrefix = []byte("C")

// Database provides access to the two stores behind a world state: the trie
// node database and the contract code store.
type Database struct {
	trieDB *trie.Database
	disk   ethdb.KeyValueStore
}

// NewDatabase creates a state database over a key-value backend. A nil
// backend keeps trie nodes in memory only; contract code is not retained
// then, and ContractCode reports ErrNotFound.
func NewDatabase(disk ethdb.KeyValueStore) *Database {
	return &Database{
		trieDB: trie.NewDatabase(disk),
		disk:   disk,
	}
}

// TrieDB returns the trie node database.
func (db *Database) TrieDB() *trie.Database { return db.trieDB }

// OpenTrie opens the account trie rooted at root.
func (db *Database) OpenTrie(root types.Hash) (*trie.Trie, error) {
	return trie.New(root, db.trieDB)
}

// OpenStorageTrie opens an account's storage trie rooted at root.
func (db *Database) OpenStorageTrie(root types.Hash) (*trie.Trie, error) {
	return trie.New(root, db.trieDB)
}

// ContractCode retrieves the code blob with the given hash.
func (db *Database) ContractCode(codeHash types.Hash) ([]byte, error) {
	if db.disk == nil {
		return nil, ethdb.ErrNotFound
	}
	return db.disk.Get(append(codeKeyPrefix, codeHash.Bytes()...))
}

// WriteCode stores a code blob under its hash.
func (db *Database) WriteCode(codeHash types.Hash, code []byte) error {
	if db.disk == nil {
		return nil
	}
	return db.disk.Put(append(codeKeyPrefix, codeHash.Bytes()...), code)
}
