package state

import (
	"math/big"

	"github.com/ethforge/ethforge/core/types"
)

// journalEntry is a single revertible state change.
type journalEntry interface {
	revert(w *WorldState)
}

// journal tracks state modifications so call frames and transactions can be
// rolled back to a checkpoint.
type journal struct {
	entries   []journalEntry
	snapshots map[int]int // snapshot id -> entry index
	nextID    int
}

func newJournal() *journal {
	return &journal{snapshots: make(map[int]int)}
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

func (j *journal) snapshot() int {
	id := j.nextID
	j.nextID++
	j.snapshots[id] = len(j.entries)
	return id
}

func (j *journal) revertToSnapshot(id int, w *WorldState) {
	idx, ok := j.snapshots[id]
	if !ok {
		return
	}
	for i := len(j.entries) - 1; i >= idx; i-- {
		j.entries[i].revert(w)
	}
	j.entries = j.entries[:idx]

	// Snapshots taken after this one are invalidated.
	for sid := range j.snapshots {
		if sid >= id {
			delete(j.snapshots, sid)
		}
	}
}

// reset discards all journal history between transactions.
func (j *journal) reset() {
	j.entries = j.entries[:0]
	j.snapshots = make(map[int]int)
}

// --- Concrete journal entries ---

type createObjectChange struct {
	addr types.Address
	prev *stateObject // nil if the account did not exist before
}

func (ch createObjectChange) revert(w *WorldState) {
	if ch.prev == nil {
		delete(w.stateObjects, ch.addr)
	} else {
		w.stateObjects[ch.addr] = ch.prev
	}
}

type balanceChange struct {
	addr types.Address
	prev *big.Int
}

func (ch balanceChange) revert(w *WorldState) {
	if obj := w.stateObjects[ch.addr]; obj != nil {
		obj.account.Balance = ch.prev
	}
}

type nonceChange struct {
	addr types.Address
	prev uint64
}

func (ch nonceChange) revert(w *WorldState) {
	if obj := w.stateObjects[ch.addr]; obj != nil {
		obj.account.Nonce = ch.prev
	}
}

type codeChange struct {
	addr     types.Address
	prevCode []byte
	prevHash []byte
}

func (ch codeChange) revert(w *WorldState) {
	if obj := w.stateObjects[ch.addr]; obj != nil {
		obj.code = ch.prevCode
		obj.account.CodeHash = ch.prevHash
		obj.dirtyCode = false
	}
}

type storageChange struct {
	addr       types.Address
	key        types.Hash
	prev       types.Hash
	prevExists bool // key was present in dirtyStorage before this write
}

func (ch storageChange) revert(w *WorldState) {
	if obj := w.stateObjects[ch.addr]; obj != nil {
		if ch.prevExists {
			obj.dirtyStorage[ch.key] = ch.prev
		} else {
			delete(obj.dirtyStorage, ch.key)
		}
	}
}

type selfDestructChange struct {
	addr           types.Address
	prevDestructed bool
	prevBalance    *big.Int
}

func (ch selfDestructChange) revert(w *WorldState) {
	if obj := w.stateObjects[ch.addr]; obj != nil {
		obj.selfDestructed = ch.prevDestructed
		obj.account.Balance = ch.prevBalance
	}
}

type logChange struct {
	txHash  types.Hash
	prevLen int
}

func (ch logChange) revert(w *WorldState) {
	logs := w.logs[ch.txHash]
	if ch.prevLen == 0 {
		delete(w.logs, ch.txHash)
	} else {
		w.logs[ch.txHash] = logs[:ch.prevLen]
	}
}

type refundChange struct {
	prev uint64
}

func (ch refundChange) revert(w *WorldState) {
	w.refund = ch.prev
}
