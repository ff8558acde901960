// Package state provides the journaled world-state proxy the execution
// engine mutates: accounts, storage, code, refunds and logs, with
// snapshot/revert checkpointing and trie-backed persistence.
package state

import (
	"math/big"

	"github.com/ethforge/ethforge/core/types"
)

// StateDB is the world-state interface consumed by the VM and the block
// executor.
type StateDB interface {
	// Account operations
	CreateAccount(addr types.Address)
	SubBalance(addr types.Address, amount *big.Int)
	AddBalance(addr types.Address, amount *big.Int)
	GetBalance(addr types.Address) *big.Int
	GetNonce(addr types.Address) uint64
	SetNonce(addr types.Address, nonce uint64)
	GetCode(addr types.Address) []byte
	SetCode(addr types.Address, code []byte)
	GetCodeHash(addr types.Address) types.Hash
	GetCodeSize(addr types.Address) int

	// Self-destruct bookkeeping; destruction is applied by Finalise.
	SelfDestruct(addr types.Address)
	HasSelfDestructed(addr types.Address) bool

	// Storage operations
	GetState(addr types.Address, key types.Hash) types.Hash
	SetState(addr types.Address, key types.Hash, value types.Hash)
	GetCommittedState(addr types.Address, key types.Hash) types.Hash

	// Account existence
	Exist(addr types.Address) bool
	Empty(addr types.Address) bool

	// Snapshot and revert for call-frame and transaction atomicity
	Snapshot() int
	RevertToSnapshot(id int)

	// Logs
	SetTxContext(txHash types.Hash, txIndex int)
	AddLog(log *types.Log)
	GetLogs(txHash types.Hash) []*types.Log

	// Refund counter
	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64

	// Finalise applies deferred destruction (and, with deleteEmpty, the
	// EIP-158 empty-account sweep) at the end of a transaction.
	Finalise(deleteEmpty bool)

	// IntermediateRoot computes the current state root without persisting.
	IntermediateRoot(deleteEmpty bool) types.Hash

	// Commit persists the state into the backing tries and returns the
	// state root. Committing twice without mutation yields the same root.
	Commit() (types.Hash, error)
}
