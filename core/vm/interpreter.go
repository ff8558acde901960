package vm

import (
	"errors"
	"math/big"

	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/crypto"
	"github.com/ethforge/ethforge/rlp"
	"github.com/holiman/uint256"
)

// GetHashFunc returns the hash of the n'th ancestor block.
type GetHashFunc func(uint64) types.Hash

// BlockContext provides the EVM with block-level information.
type BlockContext struct {
	GetHash     GetHashFunc
	BlockNumber *big.Int
	Time        uint64
	Coinbase    types.Address
	GasLimit    uint64
	Difficulty  *big.Int
}

// TxContext provides the EVM with transaction-level information.
type TxContext struct {
	Origin   types.Address
	GasPrice *big.Int
}

// StateDB is the world-state access the EVM needs. It is declared here so
// the vm package does not depend on core/state; core/state.StateDB
// satisfies it.
type StateDB interface {
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

	GetState(addr types.Address, key types.Hash) types.Hash
	SetState(addr types.Address, key, value types.Hash)

	SelfDestruct(addr types.Address)
	HasSelfDestructed(addr types.Address) bool

	Exist(addr types.Address) bool
	Empty(addr types.Address) bool

	Snapshot() int
	RevertToSnapshot(id int)

	AddLog(log *types.Log)

	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64
}

// ForkRules carries the fork activation flags the VM needs. The caller
// derives them from the chain configuration at the executing block number.
type ForkRules struct {
	IsHomestead      bool
	IsEIP150         bool
	IsEIP155         bool
	IsEIP158         bool
	IsByzantium      bool
	IsConstantinople bool
}

// EVM executes bytecode against a world state within one transaction. It
// must not be shared across transactions.
type EVM struct {
	Context   BlockContext
	TxContext TxContext
	StateDB   StateDB

	chainRules  ForkRules
	jumpTable   JumpTable
	precompiles map[types.Address]PrecompiledContract

	depth       int
	readOnly    bool
	returnData  []byte
	callGasTemp uint64 // forwarded gas resolved by the CALL-family gas funcs
}

// NewEVM creates an EVM for one transaction.
func NewEVM(blockCtx BlockContext, txCtx TxContext, statedb StateDB, rules ForkRules) *EVM {
	return &EVM{
		Context:     blockCtx,
		TxContext:   txCtx,
		StateDB:     statedb,
		chainRules:  rules,
		jumpTable:   NewJumpTable(rules),
		precompiles: ActivePrecompiles(rules),
	}
}

// ChainRules returns the fork rules the EVM runs under.
func (evm *EVM) ChainRules() ForkRules { return evm.chainRules }

// precompile looks up a precompiled contract at addr.
func (evm *EVM) precompile(addr types.Address) (PrecompiledContract, bool) {
	p, ok := evm.precompiles[addr]
	return p, ok
}

// Run executes the frame's bytecode until STOP, RETURN, REVERT, an error,
// or gas exhaustion.
func (evm *EVM) Run(contract *Contract, input []byte, readOnly bool) ([]byte, error) {
	evm.depth++
	defer func() { evm.depth-- }()

	if readOnly && !evm.readOnly {
		evm.readOnly = true
		defer func() { evm.readOnly = false }()
	}

	// Reset the return data: a new frame starts with empty return data.
	evm.returnData = nil

	if len(contract.Code) == 0 {
		return nil, nil
	}
	contract.Input = input

	var (
		pc    uint64
		stack = NewStack()
		mem   = NewMemory()
	)

	for {
		op := contract.GetOp(pc)
		operation := evm.jumpTable[op]
		if operation == nil {
			return nil, ErrInvalidOpCode
		}

		if sLen := stack.Len(); sLen < operation.minStack {
			return nil, ErrStackUnderflow
		} else if sLen > operation.maxStack {
			return nil, ErrStackOverflow
		}

		if operation.constantGas > 0 {
			if !contract.UseGas(operation.constantGas) {
				return nil, ErrOutOfGas
			}
		}

		var memorySize uint64
		if operation.memorySize != nil {
			size, overflow := operation.memorySize(stack)
			if overflow {
				return nil, ErrOutOfGas
			}
			memorySize = size
		}

		if operation.dynamicGas != nil {
			cost, err := operation.dynamicGas(evm, contract, stack, mem, memorySize)
			if err != nil {
				return nil, err
			}
			if !contract.UseGas(cost) {
				return nil, ErrOutOfGas
			}
		}

		if memorySize > 0 {
			mem.Resize(toWordSize(memorySize) * 32)
		}

		ret, err := operation.execute(&pc, evm, contract, mem, stack)
		if err != nil {
			return ret, err
		}
		if operation.halts {
			return ret, nil
		}
		if !operation.jumps {
			pc++
		}
	}
}

// Call executes the code at addr with the given input as a new frame,
// transferring value from caller to addr.
//
// Failure conditions that cost the caller nothing beyond the base charge:
// call depth above the limit and insufficient balance. Both return the
// forwarded gas untouched.
func (evm *EVM) Call(caller, addr types.Address, input []byte, gas uint64, value *big.Int) ([]byte, uint64, error) {
	if evm.depth >= MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}
	hasValue := value != nil && value.Sign() > 0
	if hasValue {
		if evm.readOnly {
			return nil, gas, ErrWriteProtection
		}
		if evm.StateDB.GetBalance(caller).Cmp(value) < 0 {
			return nil, gas, ErrInsufficientBalance
		}
	}

	snapshot := evm.StateDB.Snapshot()

	if p, ok := evm.precompile(addr); ok {
		if hasValue {
			evm.transfer(caller, addr, value)
		}
		ret, gasLeft, err := RunPrecompiledContract(p, input, gas)
		if err != nil {
			evm.StateDB.RevertToSnapshot(snapshot)
		}
		return ret, gasLeft, err
	}

	if !evm.StateDB.Exist(addr) {
		if evm.chainRules.IsEIP158 && !hasValue {
			// Calling a non-existent account with no value does not
			// create it (EIP-161).
			return nil, gas, nil
		}
		evm.StateDB.CreateAccount(addr)
	}
	if hasValue {
		evm.transfer(caller, addr, value)
	}

	code := evm.StateDB.GetCode(addr)
	if len(code) == 0 {
		return nil, gas, nil
	}

	contract := NewContract(caller, addr, value, gas)
	contract.SetCallCode(evm.StateDB.GetCodeHash(addr), code)

	ret, err := evm.Run(contract, input, false)
	gasLeft := contract.Gas
	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !errors.Is(err, ErrExecutionReverted) {
			gasLeft = 0
		}
	}
	return ret, gasLeft, err
}

// CallCode executes addr's code against the caller's own state. Value is
// charged but stays with the caller.
func (evm *EVM) CallCode(caller, addr types.Address, input []byte, gas uint64, value *big.Int) ([]byte, uint64, error) {
	if evm.depth >= MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}
	if value != nil && value.Sign() > 0 && evm.StateDB.GetBalance(caller).Cmp(value) < 0 {
		return nil, gas, ErrInsufficientBalance
	}

	snapshot := evm.StateDB.Snapshot()

	if p, ok := evm.precompile(addr); ok {
		ret, gasLeft, err := RunPrecompiledContract(p, input, gas)
		if err != nil {
			evm.StateDB.RevertToSnapshot(snapshot)
		}
		return ret, gasLeft, err
	}

	code := evm.StateDB.GetCode(addr)
	if len(code) == 0 {
		return nil, gas, nil
	}

	contract := NewContract(caller, caller, value, gas)
	contract.SetCallCode(evm.StateDB.GetCodeHash(addr), code)

	ret, err := evm.Run(contract, input, false)
	gasLeft := contract.Gas
	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !errors.Is(err, ErrExecutionReverted) {
			gasLeft = 0
		}
	}
	return ret, gasLeft, err
}

// DelegateCall executes addr's code in the parent frame's context: same
// owner address, same caller, same value.
func (evm *EVM) DelegateCall(parent *Contract, addr types.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	if evm.depth >= MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}

	snapshot := evm.StateDB.Snapshot()

	if p, ok := evm.precompile(addr); ok {
		ret, gasLeft, err := RunPrecompiledContract(p, input, gas)
		if err != nil {
			evm.StateDB.RevertToSnapshot(snapshot)
		}
		return ret, gasLeft, err
	}

	code := evm.StateDB.GetCode(addr)
	if len(code) == 0 {
		return nil, gas, nil
	}

	contract := NewContract(parent.CallerAddress, parent.Address, parent.Value, gas)
	contract.SetCallCode(evm.StateDB.GetCodeHash(addr), code)

	ret, err := evm.Run(contract, input, false)
	gasLeft := contract.Gas
	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !errors.Is(err, ErrExecutionReverted) {
			gasLeft = 0
		}
	}
	return ret, gasLeft, err
}

// StaticCall executes addr's code forbidding any state modification.
func (evm *EVM) StaticCall(caller, addr types.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	if evm.depth >= MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}

	snapshot := evm.StateDB.Snapshot()

	if p, ok := evm.precompile(addr); ok {
		ret, gasLeft, err := RunPrecompiledContract(p, input, gas)
		if err != nil {
			evm.StateDB.RevertToSnapshot(snapshot)
		}
		return ret, gasLeft, err
	}

	code := evm.StateDB.GetCode(addr)
	if len(code) == 0 {
		return nil, gas, nil
	}

	contract := NewContract(caller, addr, new(big.Int), gas)
	contract.SetCallCode(evm.StateDB.GetCodeHash(addr), code)

	ret, err := evm.Run(contract, input, true)
	gasLeft := contract.Gas
	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !errors.Is(err, ErrExecutionReverted) {
			gasLeft = 0
		}
	}
	return ret, gasLeft, err
}

// Create deploys a contract at keccak256(rlp([caller, nonce]))[12:].
func (evm *EVM) Create(caller types.Address, code []byte, gas uint64, value *big.Int) ([]byte, types.Address, uint64, error) {
	contractAddr := CreateAddress(caller, evm.StateDB.GetNonce(caller))
	return evm.create(caller, code, gas, value, contractAddr)
}

// Create2 deploys a contract at
// keccak256(0xff ++ caller ++ salt ++ keccak256(init))[12:].
func (evm *EVM) Create2(caller types.Address, code []byte, gas uint64, value *big.Int, salt *uint256.Int) ([]byte, types.Address, uint64, error) {
	contractAddr := Create2Address(caller, salt.Bytes32(), crypto.Keccak256(code))
	return evm.create(caller, code, gas, value, contractAddr)
}

func (evm *EVM) create(caller types.Address, code []byte, gas uint64, value *big.Int, contractAddr types.Address) ([]byte, types.Address, uint64, error) {
	if evm.depth >= MaxCallDepth {
		return nil, types.Address{}, gas, ErrMaxCallDepthExceeded
	}
	if evm.readOnly {
		return nil, types.Address{}, gas, ErrWriteProtection
	}
	if value != nil && value.Sign() > 0 && evm.StateDB.GetBalance(caller).Cmp(value) < 0 {
		return nil, types.Address{}, gas, ErrInsufficientBalance
	}
	evm.StateDB.SetNonce(caller, evm.StateDB.GetNonce(caller)+1)

	// An account with a nonce or code at the target address is a collision.
	if evm.StateDB.GetNonce(contractAddr) != 0 ||
		evm.StateDB.GetCodeHash(contractAddr) != (types.Hash{}) && evm.StateDB.GetCodeHash(contractAddr) != types.EmptyCodeHash {
		return nil, types.Address{}, 0, ErrContractAddrCollision
	}

	snapshot := evm.StateDB.Snapshot()

	evm.StateDB.CreateAccount(contractAddr)
	if evm.chainRules.IsEIP158 {
		// EIP-161: contract accounts start at nonce 1.
		evm.StateDB.SetNonce(contractAddr, 1)
	}
	if value != nil && value.Sign() > 0 {
		evm.transfer(caller, contractAddr, value)
	}

	contract := NewContract(caller, contractAddr, value, gas)
	contract.SetCallCode(types.Hash{}, code)

	ret, err := evm.Run(contract, nil, false)

	if err == nil && evm.chainRules.IsEIP158 && len(ret) > MaxCodeSize {
		err = ErrMaxCodeSizeExceeded
	}

	// Charge the code deposit. A shortfall is an exceptional failure from
	// Homestead on; Frontier keeps the account and installs no code.
	if err == nil {
		depositGas := uint64(len(ret)) * GasCodeDeposit
		if contract.UseGas(depositGas) {
			evm.StateDB.SetCode(contractAddr, ret)
		} else if evm.chainRules.IsHomestead {
			err = ErrCodeStoreOutOfGas
		}
	}

	if err != nil && (evm.chainRules.IsHomestead || !errors.Is(err, ErrCodeStoreOutOfGas)) {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !errors.Is(err, ErrExecutionReverted) {
			contract.Gas = 0
		}
	}
	return ret, contractAddr, contract.Gas, err
}

// transfer moves value between accounts; the caller has verified balance.
func (evm *EVM) transfer(from, to types.Address, value *big.Int) {
	evm.StateDB.SubBalance(from, value)
	evm.StateDB.AddBalance(to, value)
}

// CreateAddress computes the contract address spawned by sender with the
// given nonce: keccak256(rlp([sender, nonce]))[12:].
func CreateAddress(sender types.Address, nonce uint64) types.Address {
	enc, _ := rlp.EncodeToBytes(struct {
		Sender types.Address
		Nonce  uint64
	}{sender, nonce})
	return types.BytesToAddress(crypto.Keccak256(enc)[12:])
}

// Create2Address computes the CREATE2 contract address:
// keccak256(0xff ++ sender ++ salt ++ keccak256(initCode))[12:].
func Create2Address(sender types.Address, salt [32]byte, initCodeHash []byte) types.Address {
	data := make([]byte, 0, 85)
	data = append(data, 0xff)
	data = append(data, sender.Bytes()...)
	data = append(data, salt[:]...)
	data = append(data, initCodeHash...)
	return types.BytesToAddress(crypto.Keccak256(data)[12:])
}
