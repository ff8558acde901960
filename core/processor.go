package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethforge/ethforge/core/state"
	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/core/vm"
)

// Intrinsic gas parameters (Yellow Paper, Appendix G).
const (
	// TxGas is the base cost of any transaction.
	TxGas uint64 = 21000
	// TxCreateGas is the extra cost of contract creation (Homestead on).
	TxCreateGas uint64 = 32000
	// TxDataZeroGas is the cost per zero byte of payload.
	TxDataZeroGas uint64 = 4
	// TxDataNonZeroGas is the cost per non-zero byte of payload.
	TxDataNonZeroGas uint64 = 68
)

var (
	ErrNonceTooLow         = errors.New("nonce too low")
	ErrNonceTooHigh        = errors.New("nonce too high")
	ErrInsufficientBalance = errors.New("insufficient balance for upfront cost")
	ErrIntrinsicGas        = errors.New("intrinsic gas too low")
)

// IntrinsicGas computes the gas a transaction consumes before any VM
// execution.
func IntrinsicGas(data []byte, isCreate, isHomestead bool) uint64 {
	gas := TxGas
	if isCreate && isHomestead {
		gas += TxCreateGas
	}
	for _, b := range data {
		if b == 0 {
			gas += TxDataZeroGas
		} else {
			gas += TxDataNonZeroGas
		}
	}
	return gas
}

// ApplyTransaction executes one transaction against the state and produces
// its receipt. cumulativeGas is the gas used by preceding transactions in
// the block. A returned error is block-fatal; a failed transaction is
// reported through the receipt instead.
func ApplyTransaction(config *ChainConfig, statedb state.StateDB, header *types.Header, tx *types.Transaction, gp *GasPool, cumulativeGas uint64, getHash vm.GetHashFunc) (*types.Receipt, uint64, error) {
	signer := config.MakeSigner(header.Number)
	msg, err := TransactionToMessage(tx, signer)
	if err != nil {
		return nil, 0, err
	}

	result, err := ApplyMessage(config, statedb, header, msg, gp, getHash)
	if err != nil {
		return nil, 0, err
	}

	// Pre-Byzantium receipts commit to the intermediate state root; from
	// Byzantium on only the status code is recorded.
	deleteEmpty := config.IsEIP158(header.Number)
	var root []byte
	if config.IsByzantium(header.Number) {
		statedb.Finalise(deleteEmpty)
	} else {
		root = statedb.IntermediateRoot(deleteEmpty).Bytes()
	}

	receipt := types.NewReceipt(root, result.Failed(), cumulativeGas+result.UsedGas)
	receipt.TxHash = tx.Hash()
	receipt.GasUsed = result.UsedGas
	if msg.To == nil {
		receipt.ContractAddress = result.ContractAddress
	}
	receipt.Logs = statedb.GetLogs(tx.Hash())
	receipt.Bloom = types.LogsBloom(receipt.Logs)
	return receipt, result.UsedGas, nil
}

// ApplyMessage runs the upfront accounting, the VM, and the refund and fee
// settlement for one message.
func ApplyMessage(config *ChainConfig, statedb state.StateDB, header *types.Header, msg *Message, gp *GasPool, getHash vm.GetHashFunc) (*ExecutionResult, error) {
	if err := gp.SubGas(msg.GasLimit); err != nil {
		return nil, err
	}

	// Nonce and balance preconditions.
	stateNonce := statedb.GetNonce(msg.From)
	if msg.Nonce < stateNonce {
		gp.AddGas(msg.GasLimit)
		return nil, fmt.Errorf("%w: address %v, tx nonce %d, state nonce %d", ErrNonceTooLow, msg.From, msg.Nonce, stateNonce)
	}
	if msg.Nonce > stateNonce {
		gp.AddGas(msg.GasLimit)
		return nil, fmt.Errorf("%w: address %v, tx nonce %d, state nonce %d", ErrNonceTooHigh, msg.From, msg.Nonce, stateNonce)
	}

	gasPrice := msg.GasPrice
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}
	upfront := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(msg.GasLimit))
	total := new(big.Int).Add(upfront, msg.Value)
	if statedb.GetBalance(msg.From).Cmp(total) < 0 {
		gp.AddGas(msg.GasLimit)
		return nil, fmt.Errorf("%w: address %v have %v want %v", ErrInsufficientBalance, msg.From, statedb.GetBalance(msg.From), total)
	}

	isCreate := msg.To == nil
	igas := IntrinsicGas(msg.Data, isCreate, config.IsHomestead(header.Number))
	if msg.GasLimit < igas {
		gp.AddGas(msg.GasLimit)
		return nil, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, msg.GasLimit, igas)
	}

	// Upfront debit. From here on the transaction is included no matter
	// how execution goes.
	statedb.SubBalance(msg.From, upfront)
	gasLeft := msg.GasLimit - igas

	blockCtx := vm.BlockContext{
		GetHash:     getHash,
		BlockNumber: header.Number,
		Time:        header.Time,
		Coinbase:    header.Coinbase,
		GasLimit:    header.GasLimit,
		Difficulty:  header.Difficulty,
	}
	txCtx := vm.TxContext{Origin: msg.From, GasPrice: gasPrice}
	evm := vm.NewEVM(blockCtx, txCtx, statedb, config.Rules(header.Number))

	var (
		ret          []byte
		contractAddr types.Address
		gasRemaining uint64
		vmErr        error
	)
	if isCreate {
		ret, contractAddr, gasRemaining, vmErr = evm.Create(msg.From, msg.Data, gasLeft, msg.Value)
	} else {
		statedb.SetNonce(msg.From, msg.Nonce+1)
		ret, gasRemaining, vmErr = evm.Call(msg.From, *msg.To, msg.Data, gasLeft, msg.Value)
	}

	gasUsed := msg.GasLimit - gasRemaining

	// Gas refund, bounded by half the gas used.
	refund := statedb.GetRefund()
	if maxRefund := gasUsed / 2; refund > maxRefund {
		refund = maxRefund
	}
	gasUsed -= refund

	// Settle: unused gas back to the sender, fee to the beneficiary.
	remaining := msg.GasLimit - gasUsed
	if remaining > 0 {
		statedb.AddBalance(msg.From, new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(remaining)))
	}
	statedb.AddBalance(header.Coinbase, new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasUsed)))
	gp.AddGas(remaining)

	return &ExecutionResult{
		UsedGas:         gasUsed,
		Err:             vmErr,
		ReturnData:      ret,
		ContractAddress: contractAddr,
	}, nil
}
