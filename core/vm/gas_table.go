package vm

import "github.com/holiman/uint256"

// calcMemSize returns offset+size, reporting overflow.
func calcMemSize(offset *uint256.Int, size uint64) (uint64, bool) {
	if !offset.IsUint64() {
		return 0, true
	}
	return safeAddOverflow(offset.Uint64(), size)
}

// calcMemSizeFromStack returns offset+size for stack operands. A zero size
// never touches memory regardless of offset.
func calcMemSizeFromStack(offset, size *uint256.Int) (uint64, bool) {
	if size.IsZero() {
		return 0, false
	}
	if !size.IsUint64() || !offset.IsUint64() {
		return 0, true
	}
	return safeAddOverflow(offset.Uint64(), size.Uint64())
}

func safeAddOverflow(a, b uint64) (uint64, bool) {
	sum, overflow := safeAdd(a, b)
	return sum, overflow
}

// memoryGasCost computes the cost of growing memory to memorySize bytes:
// C_mem(w) = 3*w + w*w/512 over 32-byte words, charged on the delta.
func memoryGasCost(mem *Memory, memorySize uint64) (uint64, error) {
	if memorySize == 0 {
		return 0, nil
	}
	words := toWordSize(memorySize)
	// Past this point the quadratic term overflows uint64.
	if words > 0xFFFFFFFF {
		return 0, ErrGasUintOverflow
	}
	newCost := words*GasMemory + words*words/GasQuadCoeffDiv
	oldWords := toWordSize(uint64(mem.Len()))
	oldCost := oldWords*GasMemory + oldWords*oldWords/GasQuadCoeffDiv
	if newCost > oldCost {
		return newCost - oldCost, nil
	}
	return 0, nil
}

// gasMemExpansion charges only for memory growth.
func gasMemExpansion(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return memoryGasCost(mem, memorySize)
}

// makeGasExp builds the EXP dynamic cost: perByte per byte of exponent.
func makeGasExp(perByte uint64) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		expBytes := uint64((stack.Back(1).BitLen() + 7) / 8)
		gas, overflow := safeMul(perByte, expBytes)
		if overflow {
			return 0, ErrGasUintOverflow
		}
		return gas, nil
	}
}

var (
	gasExpFrontier = makeGasExp(GasExpByteFrontier)
	gasExpEIP160   = makeGasExp(GasExpByteEIP160)
)

// gasSha3 charges 6 per hashed word plus memory expansion.
func gasSha3(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	wordGas, overflow := safeMul(GasSha3Word, toWordSize(stack.Back(1).Uint64()))
	if overflow {
		return 0, ErrGasUintOverflow
	}
	gas, overflow = safeAdd(gas, wordGas)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

// gasCopy charges 3 per copied word plus memory expansion, for the copy
// operations with the length as the third stack operand.
func gasCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	wordGas, overflow := safeMul(GasCopy, toWordSize(stack.Back(2).Uint64()))
	if overflow {
		return 0, ErrGasUintOverflow
	}
	gas, overflow = safeAdd(gas, wordGas)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

// gasExtCodeCopy is gasCopy with the length as the fourth stack operand.
func gasExtCodeCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	wordGas, overflow := safeMul(GasCopy, toWordSize(stack.Back(3).Uint64()))
	if overflow {
		return 0, ErrGasUintOverflow
	}
	gas, overflow = safeAdd(gas, wordGas)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

// makeGasLog builds the LOGn dynamic cost:
// 375 + 375*n + 8*len(data) + memory expansion.
func makeGasLog(topics uint64) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		size, overflow := stack.Back(1).Uint64WithOverflow()
		if overflow {
			return 0, ErrGasUintOverflow
		}
		gas, err := memoryGasCost(mem, memorySize)
		if err != nil {
			return 0, err
		}
		gas += GasLog + GasLogTopic*topics
		dataGas, overflow := safeMul(GasLogData, size)
		if overflow {
			return 0, ErrGasUintOverflow
		}
		gas, overflow = safeAdd(gas, dataGas)
		if overflow {
			return 0, ErrGasUintOverflow
		}
		return gas, nil
	}
}

// gasSstore implements the pre-Constantinople SSTORE policy: G_sset when a
// zero slot is written non-zero, else G_sreset; clearing a non-zero slot
// accrues the R_sclear refund.
func gasSstore(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var (
		key     = hashFromWord(stack.Back(0))
		value   = stack.Back(1)
		current = evm.StateDB.GetState(contract.Address, key)
	)
	currentZero := current.IsZero()
	switch {
	case currentZero && !value.IsZero():
		return GasSstoreSet, nil
	case !currentZero && value.IsZero():
		evm.StateDB.AddRefund(RefundSclear)
		return GasSstoreReset, nil
	default:
		return GasSstoreReset, nil
	}
}

// callGas computes the gas forwarded to a child call. With EIP-150 the
// forwarded amount is capped at 63/64 of the remaining gas.
func callGas(isEip150 bool, availableGas, base uint64, requested *uint256.Int) (uint64, error) {
	if isEip150 {
		availableGas -= base
		gas := availableGas - availableGas/64
		if !requested.IsUint64() || gas < requested.Uint64() {
			return gas, nil
		}
	}
	if !requested.IsUint64() {
		return 0, ErrGasUintOverflow
	}
	return requested.Uint64(), nil
}

// gasCall computes the caller-side charge of CALL: memory expansion,
// G_callvalue when value is transferred, G_newaccount when the call would
// bring a new account into existence, plus the forwarded gas.
func gasCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var (
		gas      uint64
		to       = addressFromWord(stack.Back(1))
		hasValue = !stack.Back(2).IsZero()
	)
	if evm.chainRules.IsEIP158 {
		if hasValue && evm.StateDB.Empty(to) {
			gas += GasNewAccount
		}
	} else if !evm.StateDB.Exist(to) {
		gas += GasNewAccount
	}
	if hasValue {
		gas += GasCallValue
	}
	memGas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	var overflow bool
	if gas, overflow = safeAdd(gas, memGas); overflow {
		return 0, ErrGasUintOverflow
	}

	evm.callGasTemp, err = callGas(evm.chainRules.IsEIP150, contract.Gas, gas, stack.Back(0))
	if err != nil {
		return 0, err
	}
	if gas, overflow = safeAdd(gas, evm.callGasTemp); overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

// gasCallCode is gasCall without the new-account charge (CALLCODE never
// creates the target).
func gasCallCode(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	if !stack.Back(2).IsZero() {
		gas += GasCallValue
	}
	var overflow bool
	evm.callGasTemp, err = callGas(evm.chainRules.IsEIP150, contract.Gas, gas, stack.Back(0))
	if err != nil {
		return 0, err
	}
	if gas, overflow = safeAdd(gas, evm.callGasTemp); overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

// gasDelegateCall forwards gas with no value semantics.
func gasDelegateCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	var overflow bool
	evm.callGasTemp, err = callGas(evm.chainRules.IsEIP150, contract.Gas, gas, stack.Back(0))
	if err != nil {
		return 0, err
	}
	if gas, overflow = safeAdd(gas, evm.callGasTemp); overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

// gasStaticCall matches gasDelegateCall.
func gasStaticCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return gasDelegateCall(evm, contract, stack, mem, memorySize)
}

// gasSelfdestruct adds the new-account charge when the beneficiary does not
// exist, and accrues the selfdestruct refund once per account.
func gasSelfdestruct(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var gas uint64
	if evm.chainRules.IsEIP150 {
		beneficiary := addressFromWord(stack.Back(0))
		if evm.chainRules.IsEIP158 {
			if evm.StateDB.Empty(beneficiary) && evm.StateDB.GetBalance(contract.Address).Sign() > 0 {
				gas += GasNewAccount
			}
		} else if !evm.StateDB.Exist(beneficiary) {
			gas += GasNewAccount
		}
	}
	if !evm.StateDB.HasSelfDestructed(contract.Address) {
		evm.StateDB.AddRefund(RefundSelfdestruct)
	}
	return gas, nil
}

// gasCreate2 charges the init-code hashing cost on top of memory expansion.
func gasCreate2(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	wordGas, overflow := safeMul(GasSha3Word, toWordSize(stack.Back(2).Uint64()))
	if overflow {
		return 0, ErrGasUintOverflow
	}
	gas, overflow = safeAdd(gas, wordGas)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}
