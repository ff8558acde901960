package core

import "github.com/ethforge/ethforge/core/types"

// ExecutionResult holds the outcome of one transaction execution.
type ExecutionResult struct {
	UsedGas         uint64
	Err             error // VM-level error; the transaction is still included
	ReturnData      []byte
	ContractAddress types.Address // set for contract creation
}

// Failed reports whether the execution hit a VM-level error.
func (r *ExecutionResult) Failed() bool { return r.Err != nil }

// Return returns the output of a successful execution.
func (r *ExecutionResult) Return() []byte {
	if r.Failed() {
		return nil
	}
	return r.ReturnData
}

// Revert returns the revert reason of a reverted execution.
func (r *ExecutionResult) Revert() []byte {
	if r.Failed() {
		return r.ReturnData
	}
	return nil
}
