package state

import (
	"math/big"

	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/crypto"
	"github.com/ethforge/ethforge/rlp"
	"github.com/ethforge/ethforge/trie"
)

// stateObject is the in-memory form of an account under mutation: the
// consensus account fields plus loaded code and the two-level storage view
// (origin = as committed, dirty = pending writes).
type stateObject struct {
	address types.Address
	account types.Account

	code      []byte
	dirtyCode bool

	storageTrie   *trie.Trie                // lazily opened from account.Root
	originStorage map[types.Hash]types.Hash // committed values, read cache
	dirtyStorage  map[types.Hash]types.Hash // pending writes

	selfDestructed bool
	deleted        bool // removed by Finalise, pending trie deletion
}

func newStateObject(addr types.Address, account types.Account) *stateObject {
	if account.Balance == nil {
		account.Balance = new(big.Int)
	}
	if len(account.CodeHash) == 0 {
		account.CodeHash = types.EmptyCodeHash.Bytes()
	}
	if account.Root == (types.Hash{}) {
		account.Root = types.EmptyRootHash
	}
	return &stateObject{
		address:       addr,
		account:       account,
		originStorage: make(map[types.Hash]types.Hash),
		dirtyStorage:  make(map[types.Hash]types.Hash),
	}
}

// empty reports whether the account qualifies for EIP-158 removal.
func (obj *stateObject) empty() bool {
	return obj.account.Nonce == 0 &&
		obj.account.Balance.Sign() == 0 &&
		types.BytesToHash(obj.account.CodeHash) == types.EmptyCodeHash
}

// storageValue returns the live value of a slot, dirty writes first.
func (obj *stateObject) storageValue(key types.Hash) (types.Hash, bool) {
	if val, ok := obj.dirtyStorage[key]; ok {
		return val, true
	}
	if val, ok := obj.originStorage[key]; ok {
		return val, true
	}
	return types.Hash{}, false
}

// openStorageTrie returns the account's storage trie, loading it from the
// committed root on first use.
func (obj *stateObject) openStorageTrie(db *Database) (*trie.Trie, error) {
	if obj.storageTrie != nil {
		return obj.storageTrie, nil
	}
	var err error
	if obj.account.Root == types.EmptyRootHash {
		obj.storageTrie = trie.NewEmpty()
	} else {
		obj.storageTrie, err = db.OpenStorageTrie(obj.account.Root)
	}
	return obj.storageTrie, err
}

// committedStorage reads a slot from the committed storage trie.
func (obj *stateObject) committedStorage(db *Database, key types.Hash) (types.Hash, error) {
	st, err := obj.openStorageTrie(db)
	if err != nil {
		return types.Hash{}, err
	}
	enc, err := st.Get(crypto.Keccak256(key.Bytes()))
	if err != nil || len(enc) == 0 {
		return types.Hash{}, err
	}
	var v big.Int
	if err := rlp.DecodeBytes(enc, &v); err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(v.Bytes()), nil
}

// updateStorageRoot folds the dirty storage into the storage trie and
// refreshes account.Root. With a non-nil writer the trie nodes are
// persisted; otherwise only the root hash is recomputed.
func (obj *stateObject) updateStorageRoot(db *Database, w trie.NodeWriter) error {
	if len(obj.dirtyStorage) == 0 && obj.storageTrie == nil {
		return nil
	}
	st, err := obj.openStorageTrie(db)
	if err != nil {
		return err
	}
	for key, val := range obj.dirtyStorage {
		hashedKey := crypto.Keccak256(key.Bytes())
		if val == (types.Hash{}) {
			if err := st.Delete(hashedKey); err != nil {
				return err
			}
		} else {
			// Storage values are stored with leading zeros trimmed.
			enc, _ := rlp.EncodeToBytes(new(big.Int).SetBytes(val.Bytes()))
			if err := st.TryUpdate(hashedKey, enc); err != nil {
				return err
			}
		}
		obj.originStorage[key] = val
	}
	obj.dirtyStorage = make(map[types.Hash]types.Hash)
	if w != nil {
		obj.account.Root, err = st.Commit(w)
		return err
	}
	obj.account.Root = st.Hash()
	return nil
}
