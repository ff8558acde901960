package vm

import "errors"

// VM execution errors. Any of these (except ErrExecutionReverted) consumes
// all gas remaining in the failing frame.
var (
	ErrOutOfGas              = errors.New("out of gas")
	ErrStackOverflow         = errors.New("stack overflow")
	ErrStackUnderflow        = errors.New("stack underflow")
	ErrInvalidJump           = errors.New("invalid jump destination")
	ErrInvalidOpCode         = errors.New("invalid opcode")
	ErrWriteProtection       = errors.New("write protection")
	ErrExecutionReverted     = errors.New("execution reverted")
	ErrMaxCallDepthExceeded  = errors.New("max call depth exceeded")
	ErrInsufficientBalance   = errors.New("insufficient balance for transfer")
	ErrContractAddrCollision = errors.New("contract address collision")
	ErrMaxCodeSizeExceeded   = errors.New("max code size exceeded")
	ErrCodeStoreOutOfGas     = errors.New("contract creation code storage out of gas")
	ErrReturnDataOutOfBounds = errors.New("return data out of bounds")
	ErrGasUintOverflow       = errors.New("gas uint64 overflow")
)
