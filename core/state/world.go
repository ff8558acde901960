package state

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/crypto"
	"github.com/ethforge/ethforge/rlp"
	"github.com/ethforge/ethforge/trie"
)

// WorldState is the trie-backed implementation of StateDB. It owns every
// account it surfaces; the executor borrows it for one transaction at a
// time. It is not safe for concurrent use.
type WorldState struct {
	db          *Database
	accountTrie *trie.Trie

	stateObjects map[types.Address]*stateObject

	journal *journal
	refund  uint64

	thash   types.Hash
	txIndex int
	logs    map[types.Hash][]*types.Log
}

// New opens the world state at the given state root.
func New(root types.Hash, db *Database) (*WorldState, error) {
	accountTrie, err := db.OpenTrie(root)
	if err != nil {
		return nil, err
	}
	return &WorldState{
		db:           db,
		accountTrie:  accountTrie,
		stateObjects: make(map[types.Address]*stateObject),
		journal:      newJournal(),
		logs:         make(map[types.Hash][]*types.Log),
	}, nil
}

// getStateObject loads an account, resolving it from the account trie on
// first access. Deleted objects read as absent.
func (w *WorldState) getStateObject(addr types.Address) *stateObject {
	if obj, ok := w.stateObjects[addr]; ok {
		if obj.deleted {
			return nil
		}
		return obj
	}
	enc, err := w.accountTrie.Get(crypto.Keccak256(addr.Bytes()))
	if err != nil || len(enc) == 0 {
		return nil
	}
	var account types.Account
	if err := rlp.DecodeBytes(enc, &account); err != nil {
		return nil
	}
	obj := newStateObject(addr, account)
	w.stateObjects[addr] = obj
	return obj
}

func (w *WorldState) getOrNewStateObject(addr types.Address) *stateObject {
	if obj := w.getStateObject(addr); obj != nil {
		return obj
	}
	prev := w.stateObjects[addr] // a deleted object, if any
	w.journal.append(createObjectChange{addr: addr, prev: prev})
	obj := newStateObject(addr, types.NewAccount())
	w.stateObjects[addr] = obj
	return obj
}

// --- Account operations ---

// CreateAccount makes addr a fresh account with zero nonce, no code and
// empty storage, discarding those previous contents; the balance of a live
// previous account is kept (the caller checks for collisions).
func (w *WorldState) CreateAccount(addr types.Address) {
	prev := w.stateObjects[addr]
	w.journal.append(createObjectChange{addr: addr, prev: prev})
	obj := newStateObject(addr, types.NewAccount())
	if prev != nil && !prev.deleted {
		// Balance survives account resurrection.
		obj.account.Balance = new(big.Int).Set(prev.account.Balance)
	}
	w.stateObjects[addr] = obj
}

func (w *WorldState) SubBalance(addr types.Address, amount *big.Int) {
	obj := w.getOrNewStateObject(addr)
	w.journal.append(balanceChange{addr: addr, prev: new(big.Int).Set(obj.account.Balance)})
	obj.account.Balance = new(big.Int).Sub(obj.account.Balance, amount)
}

func (w *WorldState) AddBalance(addr types.Address, amount *big.Int) {
	obj := w.getOrNewStateObject(addr)
	w.journal.append(balanceChange{addr: addr, prev: new(big.Int).Set(obj.account.Balance)})
	obj.account.Balance = new(big.Int).Add(obj.account.Balance, amount)
}

func (w *WorldState) GetBalance(addr types.Address) *big.Int {
	if obj := w.getStateObject(addr); obj != nil {
		return new(big.Int).Set(obj.account.Balance)
	}
	return new(big.Int)
}

func (w *WorldState) GetNonce(addr types.Address) uint64 {
	if obj := w.getStateObject(addr); obj != nil {
		return obj.account.Nonce
	}
	return 0
}

func (w *WorldState) SetNonce(addr types.Address, nonce uint64) {
	obj := w.getOrNewStateObject(addr)
	w.journal.append(nonceChange{addr: addr, prev: obj.account.Nonce})
	obj.account.Nonce = nonce
}

func (w *WorldState) GetCode(addr types.Address) []byte {
	obj := w.getStateObject(addr)
	if obj == nil {
		return nil
	}
	if obj.code != nil {
		return obj.code
	}
	hash := types.BytesToHash(obj.account.CodeHash)
	if hash == types.EmptyCodeHash {
		return nil
	}
	code, err := w.db.ContractCode(hash)
	if err != nil {
		return nil
	}
	obj.code = code
	return code
}

func (w *WorldState) SetCode(addr types.Address, code []byte) {
	obj := w.getOrNewStateObject(addr)
	w.journal.append(codeChange{
		addr:     addr,
		prevCode: obj.code,
		prevHash: obj.account.CodeHash,
	})
	obj.code = code
	obj.account.CodeHash = crypto.Keccak256(code)
	obj.dirtyCode = true
}

func (w *WorldState) GetCodeHash(addr types.Address) types.Hash {
	if obj := w.getStateObject(addr); obj != nil {
		return types.BytesToHash(obj.account.CodeHash)
	}
	return types.Hash{}
}

func (w *WorldState) GetCodeSize(addr types.Address) int {
	return len(w.GetCode(addr))
}

// --- Self-destruct ---

func (w *WorldState) SelfDestruct(addr types.Address) {
	obj := w.getStateObject(addr)
	if obj == nil {
		return
	}
	w.journal.append(selfDestructChange{
		addr:           addr,
		prevDestructed: obj.selfDestructed,
		prevBalance:    new(big.Int).Set(obj.account.Balance),
	})
	obj.selfDestructed = true
	obj.account.Balance = new(big.Int)
}

func (w *WorldState) HasSelfDestructed(addr types.Address) bool {
	if obj := w.getStateObject(addr); obj != nil {
		return obj.selfDestructed
	}
	return false
}

// --- Storage ---

func (w *WorldState) GetState(addr types.Address, key types.Hash) types.Hash {
	obj := w.getStateObject(addr)
	if obj == nil {
		return types.Hash{}
	}
	if val, ok := obj.storageValue(key); ok {
		return val
	}
	val, _ := obj.committedStorage(w.db, key)
	obj.originStorage[key] = val
	return val
}

func (w *WorldState) SetState(addr types.Address, key, value types.Hash) {
	obj := w.getOrNewStateObject(addr)
	prev, prevExists := obj.dirtyStorage[key]
	w.journal.append(storageChange{addr: addr, key: key, prev: prev, prevExists: prevExists})
	obj.dirtyStorage[key] = value
}

func (w *WorldState) GetCommittedState(addr types.Address, key types.Hash) types.Hash {
	obj := w.getStateObject(addr)
	if obj == nil {
		return types.Hash{}
	}
	if val, ok := obj.originStorage[key]; ok {
		return val
	}
	val, _ := obj.committedStorage(w.db, key)
	obj.originStorage[key] = val
	return val
}

// --- Existence ---

func (w *WorldState) Exist(addr types.Address) bool {
	return w.getStateObject(addr) != nil
}

func (w *WorldState) Empty(addr types.Address) bool {
	obj := w.getStateObject(addr)
	return obj == nil || obj.empty()
}

// --- Snapshot / revert ---

func (w *WorldState) Snapshot() int {
	return w.journal.snapshot()
}

func (w *WorldState) RevertToSnapshot(id int) {
	w.journal.revertToSnapshot(id, w)
}

// --- Logs ---

// SetTxContext sets the transaction hash and index used to attribute logs
// emitted during the next execution.
func (w *WorldState) SetTxContext(txHash types.Hash, txIndex int) {
	w.thash = txHash
	w.txIndex = txIndex
}

func (w *WorldState) AddLog(log *types.Log) {
	w.journal.append(logChange{txHash: w.thash, prevLen: len(w.logs[w.thash])})
	log.TxHash = w.thash
	log.TxIndex = uint(w.txIndex)
	w.logs[w.thash] = append(w.logs[w.thash], log)
}

func (w *WorldState) GetLogs(txHash types.Hash) []*types.Log {
	return w.logs[txHash]
}

// --- Refund counter ---

func (w *WorldState) AddRefund(gas uint64) {
	w.journal.append(refundChange{prev: w.refund})
	w.refund += gas
}

func (w *WorldState) SubRefund(gas uint64) {
	w.journal.append(refundChange{prev: w.refund})
	if gas > w.refund {
		panic(fmt.Sprintf("state: refund counter below zero (%d > %d)", gas, w.refund))
	}
	w.refund -= gas
}

func (w *WorldState) GetRefund() uint64 {
	return w.refund
}

// ResetRefund clears the refund counter between transactions.
func (w *WorldState) ResetRefund() {
	w.refund = 0
}

// --- Finalise / roots / commit ---

// Finalise applies deferred self-destructions and, when deleteEmpty is set
// (EIP-158), sweeps empty accounts. The journal is cleared: changes up to
// this point can no longer be reverted.
func (w *WorldState) Finalise(deleteEmpty bool) {
	for _, obj := range w.stateObjects {
		if obj.deleted {
			continue
		}
		if obj.selfDestructed || (deleteEmpty && obj.empty()) {
			obj.deleted = true
		}
	}
	w.journal.reset()
	w.refund = 0
}

// sortedAddresses returns the loaded account addresses in a fixed order so
// trie mutation order is deterministic.
func (w *WorldState) sortedAddresses() []types.Address {
	addrs := make([]types.Address, 0, len(w.stateObjects))
	for addr := range w.stateObjects {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		for k := 0; k < types.AddressLength; k++ {
			if addrs[i][k] != addrs[j][k] {
				return addrs[i][k] < addrs[j][k]
			}
		}
		return false
	})
	return addrs
}

// updateTrie folds every loaded account into the account trie. Storage trie
// nodes are persisted when commit is set.
func (w *WorldState) updateTrie(commit bool) error {
	var writer trie.NodeWriter
	if commit {
		writer = w.db.TrieDB()
	}
	for _, addr := range w.sortedAddresses() {
		obj := w.stateObjects[addr]
		hashedAddr := crypto.Keccak256(addr.Bytes())
		if obj.deleted {
			if err := w.accountTrie.Delete(hashedAddr); err != nil {
				return err
			}
			continue
		}
		if err := obj.updateStorageRoot(w.db, writer); err != nil {
			return err
		}
		if commit && obj.dirtyCode {
			if err := w.db.WriteCode(types.BytesToHash(obj.account.CodeHash), obj.code); err != nil {
				return err
			}
			obj.dirtyCode = false
		}
		enc, err := rlp.EncodeToBytes(obj.account)
		if err != nil {
			return err
		}
		if err := w.accountTrie.TryUpdate(hashedAddr, enc); err != nil {
			return err
		}
	}
	return nil
}

// IntermediateRoot computes the state root of the current state without
// persisting trie nodes. Used for pre-Byzantium per-transaction receipts.
func (w *WorldState) IntermediateRoot(deleteEmpty bool) types.Hash {
	w.Finalise(deleteEmpty)
	if err := w.updateTrie(false); err != nil {
		return types.Hash{}
	}
	return w.accountTrie.Hash()
}

// Commit persists all pending state into the trie database and returns the
// new state root. It is idempotent.
func (w *WorldState) Commit() (types.Hash, error) {
	if err := w.updateTrie(true); err != nil {
		return types.Hash{}, err
	}
	return w.accountTrie.Commit(w.db.TrieDB())
}

var _ StateDB = (*WorldState)(nil)
