package core

import (
	"fmt"
	"math/big"

	"github.com/ethforge/ethforge/core/rawdb"
	"github.com/ethforge/ethforge/core/state"
	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/core/vm"
	"github.com/ethforge/ethforge/ethdb"
	"github.com/ethforge/ethforge/log"
	"github.com/ethforge/ethforge/trie"
)

// Block-level errors. A malformed block is rejected with one of these; a
// failing transaction is recorded in its receipt and is never block-fatal.

// ValidationBeforeExecError reports a header, body or ommer inconsistency
// detected before any transaction ran.
type ValidationBeforeExecError struct{ Reason error }

func (e *ValidationBeforeExecError) Error() string {
	return fmt.Sprintf("block validation before execution failed: %v", e.Reason)
}

func (e *ValidationBeforeExecError) Unwrap() error { return e.Reason }

// TxsExecutionError reports a transaction that could not even be attempted
// (bad signature, wrong nonce, insufficient balance for the upfront cost,
// block gas overflow).
type TxsExecutionError struct {
	Index  int
	Reason error
}

func (e *TxsExecutionError) Error() string {
	return fmt.Sprintf("transaction %d cannot be executed: %v", e.Index, e.Reason)
}

func (e *TxsExecutionError) Unwrap() error { return e.Reason }

// ValidationAfterExecError reports a mismatch between the execution outcome
// and the claimed header fields.
type ValidationAfterExecError struct{ Reason error }

func (e *ValidationAfterExecError) Error() string {
	return fmt.Sprintf("block validation after execution failed: %v", e.Reason)
}

func (e *ValidationAfterExecError) Unwrap() error { return e.Reason }

// Storages bundles the persistent stores the executor reads and, on
// success, writes: chain data (headers, receipts, canonical index) and the
// state database (trie nodes, code).
type Storages struct {
	ChainDB ethdb.Database
	State   *state.Database
}

// NewStorages builds a storage bundle over a single key-value backend.
func NewStorages(db ethdb.Database) *Storages {
	return &Storages{
		ChainDB: db,
		State:   state.NewDatabase(db),
	}
}

// GetHeader implements HeaderReader over the chain database.
func (s *Storages) GetHeader(hash types.Hash, number uint64) *types.Header {
	header, err := rawdb.ReadHeader(s.ChainDB, number, hash)
	if err != nil {
		return nil
	}
	return header
}

// BlockExecutor applies blocks to the world state: pre-validation, ordered
// transaction execution, reward payment, post-validation, and persistence.
// It is single-threaded per block; concurrent executions need disjoint
// storages.
type BlockExecutor struct {
	config     *ChainConfig
	storages   *Storages
	validators Validators
	logger     *log.Logger
}

// NewBlockExecutor creates a block executor over the given collaborators.
func NewBlockExecutor(config *ChainConfig, storages *Storages, validators Validators) *BlockExecutor {
	return &BlockExecutor{
		config:     config,
		storages:   storages,
		validators: validators,
		logger:     log.Root().New("module", "executor"),
	}
}

// ExecuteBlock validates and executes a block. On success the post-state,
// the header and the receipts are persisted and reachable through the
// block's state root; on any error nothing is written.
func (be *BlockExecutor) ExecuteBlock(block *types.Block) error {
	header := block.Header()

	parent := be.storages.GetHeader(header.ParentHash, block.NumberU64()-1)
	if parent == nil {
		return &ValidationBeforeExecError{Reason: fmt.Errorf("%w: %v", ErrUnknownParent, header.ParentHash)}
	}

	// Phase 1: structural validation against the parent and the chain.
	if err := be.validators.Header.ValidateHeader(header, parent); err != nil {
		return &ValidationBeforeExecError{Reason: err}
	}
	if err := be.validators.Body.ValidateBody(block); err != nil {
		return &ValidationBeforeExecError{Reason: err}
	}
	if err := be.validators.Ommers.ValidateOmmers(block, be.storages); err != nil {
		return &ValidationBeforeExecError{Reason: err}
	}

	// Phase 2: open the world at the parent state root.
	world, err := state.New(parent.Root, be.storages.State)
	if err != nil {
		return &ValidationBeforeExecError{Reason: err}
	}

	// Phase 3: ordered transaction execution.
	receipts, gasUsed, err := be.applyTransactions(block, world)
	if err != nil {
		return err
	}

	// Phase 4: block and ommer rewards.
	AccumulateRewards(be.config, world, header, block.Uncles())

	// Phase 5: outcome must match the claimed header.
	if header.GasUsed != gasUsed {
		return &ValidationAfterExecError{
			Reason: fmt.Errorf("gas used mismatch: header %d, computed %d", header.GasUsed, gasUsed),
		}
	}
	// The root is computed without persisting; nothing reaches storage
	// until every check below has passed.
	stateRoot := world.IntermediateRoot(be.config.IsEIP158(header.Number))
	if header.Root != stateRoot {
		return &ValidationAfterExecError{
			Reason: fmt.Errorf("state root mismatch: header %v, computed %v", header.Root, stateRoot),
		}
	}
	if receiptsRoot := DeriveReceiptsRoot(receipts); header.ReceiptHash != receiptsRoot {
		return &ValidationAfterExecError{
			Reason: fmt.Errorf("receipts root mismatch: header %v, computed %v", header.ReceiptHash, receiptsRoot),
		}
	}
	if bloom := types.CreateBloom(receipts); header.Bloom != bloom {
		return &ValidationAfterExecError{Reason: fmt.Errorf("logs bloom mismatch")}
	}

	// Persist the state, then the chain data.
	if _, err := world.Commit(); err != nil {
		return &ValidationAfterExecError{Reason: err}
	}
	types.DeriveReceiptFields(receipts, block.Hash(), block.NumberU64(), block.Transactions())
	if err := rawdb.WriteHeader(be.storages.ChainDB, header); err != nil {
		return err
	}
	if err := rawdb.WriteBody(be.storages.ChainDB, block.NumberU64(), block.Hash(), block.Body()); err != nil {
		return err
	}
	if err := rawdb.WriteReceipts(be.storages.ChainDB, block.NumberU64(), block.Hash(), receipts); err != nil {
		return err
	}
	if err := rawdb.WriteCanonicalHash(be.storages.ChainDB, block.NumberU64(), block.Hash()); err != nil {
		return err
	}
	if err := rawdb.WriteHeadBlockHash(be.storages.ChainDB, block.Hash()); err != nil {
		return err
	}

	be.logger.Info("Executed block",
		"number", block.NumberU64(),
		"hash", block.Hash(),
		"txs", len(block.Transactions()),
		"gas", gasUsed,
		"root", stateRoot,
	)
	return nil
}

// applyTransactions folds the block's transactions over the world state,
// accumulating receipts and cumulative gas.
func (be *BlockExecutor) applyTransactions(block *types.Block, world *state.WorldState) (types.Receipts, uint64, error) {
	var (
		header   = block.Header()
		gasPool  = new(GasPool).AddGas(header.GasLimit)
		receipts types.Receipts
		gasUsed  uint64
	)
	getHash := be.ancestorHashFunc(header)

	for i, tx := range block.Transactions() {
		world.SetTxContext(tx.Hash(), i)
		receipt, used, err := ApplyTransaction(be.config, world, header, tx, gasPool, gasUsed, getHash)
		if err != nil {
			return nil, 0, &TxsExecutionError{Index: i, Reason: err}
		}
		gasUsed += used
		receipts = append(receipts, receipt)
	}
	return receipts, gasUsed, nil
}

// ancestorHashFunc serves BLOCKHASH by walking the stored parent chain.
func (be *BlockExecutor) ancestorHashFunc(header *types.Header) vm.GetHashFunc {
	cache := map[uint64]types.Hash{header.Number.Uint64() - 1: header.ParentHash}
	return func(number uint64) types.Hash {
		if hash, ok := cache[number]; ok {
			return hash
		}
		// Walk back from the parent, caching every hash passed.
		current := header.Number.Uint64() - 1
		hash := header.ParentHash
		for current > number {
			ancestor := be.storages.GetHeader(hash, current)
			if ancestor == nil {
				return types.Hash{}
			}
			hash = ancestor.ParentHash
			current--
			cache[current] = hash
		}
		return hash
	}
}

// AccumulateRewards credits the beneficiary with the static block reward
// plus 1/32 per included ommer, and each ommer's beneficiary with the
// depth-scaled partial reward (Yellow Paper §11.3). Credits create absent
// accounts.
func AccumulateRewards(config *ChainConfig, world *state.WorldState, header *types.Header, uncles []*types.Header) {
	reward := config.BlockReward(header.Number)

	minerReward := new(big.Int).Set(reward)
	perUncle := new(big.Int).Div(reward, big.NewInt(32))

	for _, uncle := range uncles {
		// (uncleNumber + 8 - blockNumber) * R / 8
		r := new(big.Int).Add(uncle.Number, big.NewInt(8))
		r.Sub(r, header.Number)
		r.Mul(r, reward)
		r.Div(r, big.NewInt(8))
		world.AddBalance(uncle.Coinbase, r)

		minerReward.Add(minerReward, perUncle)
	}
	world.AddBalance(header.Coinbase, minerReward)
}

// DeriveTxsRoot computes the transactions root of a block body.
func DeriveTxsRoot(txs []*types.Transaction) types.Hash {
	return types.DeriveSha(types.Transactions(txs), trie.NewEmpty())
}

// DeriveReceiptsRoot computes the receipts root of an executed block.
func DeriveReceiptsRoot(receipts types.Receipts) types.Hash {
	return types.DeriveSha(receipts, trie.NewEmpty())
}
