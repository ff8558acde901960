package vm

import (
	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/crypto"
	"github.com/holiman/uint256"
)

// addressFromWord truncates a 256-bit word to a 20-byte address.
func addressFromWord(w *uint256.Int) types.Address {
	return types.Address(w.Bytes20())
}

// hashFromWord converts a 256-bit word to a 32-byte hash.
func hashFromWord(w *uint256.Int) types.Hash {
	return types.Hash(w.Bytes32())
}

func opAdd(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Add(&x, y)
	return nil, nil
}

func opSub(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Sub(&x, y)
	return nil, nil
}

func opMul(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Mul(&x, y)
	return nil, nil
}

func opDiv(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Div(&x, y)
	return nil, nil
}

func opSdiv(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.SDiv(&x, y)
	return nil, nil
}

func opMod(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Mod(&x, y)
	return nil, nil
}

func opSmod(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.SMod(&x, y)
	return nil, nil
}

func opAddmod(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y, z := stack.Pop(), stack.Pop(), stack.Peek()
	z.AddMod(&x, &y, z)
	return nil, nil
}

func opMulmod(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y, z := stack.Pop(), stack.Pop(), stack.Peek()
	z.MulMod(&x, &y, z)
	return nil, nil
}

func opExp(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	base, exponent := stack.Pop(), stack.Peek()
	exponent.Exp(&base, exponent)
	return nil, nil
}

func opSignExtend(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	back, num := stack.Pop(), stack.Peek()
	num.ExtendSign(num, &back)
	return nil, nil
}

func opLt(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Lt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opGt(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Gt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSlt(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Slt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSgt(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Sgt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opEq(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Eq(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opIsZero(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	if x.IsZero() {
		x.SetOne()
	} else {
		x.Clear()
	}
	return nil, nil
}

func opAnd(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.And(&x, y)
	return nil, nil
}

func opOr(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Or(&x, y)
	return nil, nil
}

func opXor(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Xor(&x, y)
	return nil, nil
}

func opNot(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	x.Not(x)
	return nil, nil
}

func opByte(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	th, val := stack.Pop(), stack.Peek()
	val.Byte(&th)
	return nil, nil
}

func opSHL(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	shift, value := stack.Pop(), stack.Peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil, nil
}

func opSHR(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	shift, value := stack.Pop(), stack.Peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil, nil
}

func opSAR(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	shift, value := stack.Pop(), stack.Peek()
	if shift.GtUint64(255) {
		if value.Sign() >= 0 {
			value.Clear()
		} else {
			value.SetAllOne()
		}
		return nil, nil
	}
	value.SRsh(value, uint(shift.Uint64()))
	return nil, nil
}

func opSha3(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset, size := stack.Pop(), stack.Peek()
	data := memory.GetPtr(offset.Uint64(), size.Uint64())
	size.SetBytes(crypto.Keccak256(data))
	return nil, nil
}

func opAddress(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int).SetBytes(contract.Address.Bytes()))
	return nil, nil
}

func opBalance(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	slot := stack.Peek()
	balance := evm.StateDB.GetBalance(addressFromWord(slot))
	slot.SetFromBig(balance)
	return nil, nil
}

func opOrigin(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int).SetBytes(evm.TxContext.Origin.Bytes()))
	return nil, nil
}

func opCaller(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int).SetBytes(contract.CallerAddress.Bytes()))
	return nil, nil
}

func opCallValue(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := new(uint256.Int)
	if contract.Value != nil {
		v.SetFromBig(contract.Value)
	}
	stack.Push(v)
	return nil, nil
}

func opCalldataLoad(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	if !x.IsUint64() {
		x.Clear()
		return nil, nil
	}
	offset := x.Uint64()
	var word [32]byte
	if offset < uint64(len(contract.Input)) {
		copy(word[:], contract.Input[offset:])
	}
	x.SetBytes(word[:])
	return nil, nil
}

func opCalldataSize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int).SetUint64(uint64(len(contract.Input))))
	return nil, nil
}

func opCalldataCopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	memOffset, dataOffset, length := stack.Pop(), stack.Pop(), stack.Pop()
	copyToMemory(memory, memOffset.Uint64(), contract.Input, &dataOffset, length.Uint64())
	return nil, nil
}

func opCodeSize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int).SetUint64(uint64(len(contract.Code))))
	return nil, nil
}

func opCodeCopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	memOffset, codeOffset, length := stack.Pop(), stack.Pop(), stack.Pop()
	copyToMemory(memory, memOffset.Uint64(), contract.Code, &codeOffset, length.Uint64())
	return nil, nil
}

func opGasPrice(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := new(uint256.Int)
	if evm.TxContext.GasPrice != nil {
		v.SetFromBig(evm.TxContext.GasPrice)
	}
	stack.Push(v)
	return nil, nil
}

func opExtcodeSize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	slot := stack.Peek()
	slot.SetUint64(uint64(evm.StateDB.GetCodeSize(addressFromWord(slot))))
	return nil, nil
}

func opExtcodeCopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	addrWord := stack.Pop()
	memOffset, codeOffset, length := stack.Pop(), stack.Pop(), stack.Pop()
	code := evm.StateDB.GetCode(addressFromWord(&addrWord))
	copyToMemory(memory, memOffset.Uint64(), code, &codeOffset, length.Uint64())
	return nil, nil
}

// opExtcodeHash pushes the code hash of the given account, or zero for
// non-existent (and post-EIP-158 empty) accounts.
func opExtcodeHash(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	slot := stack.Peek()
	addr := addressFromWord(slot)
	if evm.StateDB.Empty(addr) {
		slot.Clear()
	} else {
		slot.SetBytes(evm.StateDB.GetCodeHash(addr).Bytes())
	}
	return nil, nil
}

// copyToMemory writes length bytes of src starting at srcOffset into memory,
// zero-padding reads past the end of src.
func copyToMemory(memory *Memory, memOffset uint64, src []byte, srcOffset *uint256.Int, length uint64) {
	if length == 0 {
		return
	}
	data := make([]byte, length)
	if srcOffset.IsUint64() {
		if off := srcOffset.Uint64(); off < uint64(len(src)) {
			copy(data, src[off:])
		}
	}
	memory.Set(memOffset, length, data)
}

func opReturndataSize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int).SetUint64(uint64(len(evm.returnData))))
	return nil, nil
}

func opReturndataCopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	memOffset, dataOffset, length := stack.Pop(), stack.Pop(), stack.Pop()
	l := length.Uint64()
	if l == 0 {
		return nil, nil
	}
	if !dataOffset.IsUint64() {
		return nil, ErrReturnDataOutOfBounds
	}
	offset := dataOffset.Uint64()
	end, overflow := safeAdd(offset, l)
	if overflow || end > uint64(len(evm.returnData)) {
		return nil, ErrReturnDataOutOfBounds
	}
	memory.Set(memOffset.Uint64(), l, evm.returnData[offset:end])
	return nil, nil
}

func opBlockhash(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	num := stack.Peek()
	if !num.IsUint64() {
		num.Clear()
		return nil, nil
	}
	num64 := num.Uint64()
	var upper uint64
	if evm.Context.BlockNumber != nil {
		upper = evm.Context.BlockNumber.Uint64()
	}
	var lower uint64
	if upper > 256 {
		lower = upper - 256
	}
	if num64 >= lower && num64 < upper && evm.Context.GetHash != nil {
		hash := evm.Context.GetHash(num64)
		num.SetBytes(hash.Bytes())
	} else {
		num.Clear()
	}
	return nil, nil
}

func opCoinbase(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int).SetBytes(evm.Context.Coinbase.Bytes()))
	return nil, nil
}

func opTimestamp(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int).SetUint64(evm.Context.Time))
	return nil, nil
}

func opNumber(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := new(uint256.Int)
	if evm.Context.BlockNumber != nil {
		v.SetFromBig(evm.Context.BlockNumber)
	}
	stack.Push(v)
	return nil, nil
}

func opDifficulty(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := new(uint256.Int)
	if evm.Context.Difficulty != nil {
		v.SetFromBig(evm.Context.Difficulty)
	}
	stack.Push(v)
	return nil, nil
}

func opGasLimit(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int).SetUint64(evm.Context.GasLimit))
	return nil, nil
}

func opPop(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Pop()
	return nil, nil
}

func opMload(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset := stack.Peek()
	data := memory.GetPtr(offset.Uint64(), 32)
	offset.SetBytes(data)
	return nil, nil
}

func opMstore(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset, val := stack.Pop(), stack.Pop()
	memory.Set32(offset.Uint64(), &val)
	return nil, nil
}

func opMstore8(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset, val := stack.Pop(), stack.Pop()
	memory.Set(offset.Uint64(), 1, []byte{byte(val.Uint64())})
	return nil, nil
}

func opSload(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	loc := stack.Peek()
	val := evm.StateDB.GetState(contract.Address, hashFromWord(loc))
	loc.SetBytes(val.Bytes())
	return nil, nil
}

func opSstore(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	if evm.readOnly {
		return nil, ErrWriteProtection
	}
	loc, val := stack.Pop(), stack.Pop()
	evm.StateDB.SetState(contract.Address, hashFromWord(&loc), hashFromWord(&val))
	return nil, nil
}

func opJump(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	pos := stack.Pop()
	if !contract.validJumpdest(&pos) {
		return nil, ErrInvalidJump
	}
	*pc = pos.Uint64()
	return nil, nil
}

func opJumpi(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	pos, cond := stack.Pop(), stack.Pop()
	if !cond.IsZero() {
		if !contract.validJumpdest(&pos) {
			return nil, ErrInvalidJump
		}
		*pc = pos.Uint64()
	} else {
		*pc++
	}
	return nil, nil
}

func opJumpdest(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, nil
}

func opPc(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int).SetUint64(*pc))
	return nil, nil
}

func opMsize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int).SetUint64(uint64(memory.Len())))
	return nil, nil
}

func opGas(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int).SetUint64(contract.Gas))
	return nil, nil
}

// makePush builds the PUSHn handler, reading n immediate bytes from code.
func makePush(size uint64) executionFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
		start := *pc + 1
		end := start + size
		codeLen := uint64(len(contract.Code))

		var data []byte
		switch {
		case start >= codeLen:
			data = make([]byte, size)
		case end > codeLen:
			data = make([]byte, size)
			copy(data, contract.Code[start:codeLen])
		default:
			data = contract.Code[start:end]
		}
		stack.Push(new(uint256.Int).SetBytes(data))
		*pc += size
		return nil, nil
	}
}

// makeDup builds the DUPn handler.
func makeDup(n int) executionFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
		stack.Dup(n)
		return nil, nil
	}
}

// makeSwap builds the SWAPn handler.
func makeSwap(n int) executionFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
		stack.Swap(n)
		return nil, nil
	}
}

// makeLog builds the LOGn handler, capturing n topics and the data window.
func makeLog(topics int) executionFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
		if evm.readOnly {
			return nil, ErrWriteProtection
		}
		offset, size := stack.Pop(), stack.Pop()
		topicList := make([]types.Hash, topics)
		for i := 0; i < topics; i++ {
			t := stack.Pop()
			topicList[i] = hashFromWord(&t)
		}
		data := memory.Get(offset.Uint64(), size.Uint64())
		evm.StateDB.AddLog(&types.Log{
			Address: contract.Address,
			Topics:  topicList,
			Data:    data,
		})
		return nil, nil
	}
}

func opStop(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, nil
}

func opReturn(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset, size := stack.Pop(), stack.Pop()
	return memory.Get(offset.Uint64(), size.Uint64()), nil
}

func opRevert(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset, size := stack.Pop(), stack.Pop()
	return memory.Get(offset.Uint64(), size.Uint64()), ErrExecutionReverted
}

func opInvalid(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, ErrInvalidOpCode
}

// opCall implements CALL.
// Stack: gas, to, value, inOffset, inSize, outOffset, outSize.
func opCall(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Pop() // forwarded gas was resolved into evm.callGasTemp
	toWord := stack.Pop()
	value := stack.Pop()
	inOffset, inSize := stack.Pop(), stack.Pop()
	outOffset, outSize := stack.Pop(), stack.Pop()

	to := addressFromWord(&toWord)
	args := memory.GetPtr(inOffset.Uint64(), inSize.Uint64())

	gas := evm.callGasTemp
	if !value.IsZero() {
		gas += GasCallStipend
	}
	ret, returnGas, err := evm.Call(contract.Address, to, args, gas, value.ToBig())

	if err != nil {
		stack.Push(new(uint256.Int))
	} else {
		stack.Push(new(uint256.Int).SetOne())
	}
	if err == nil || err == ErrExecutionReverted {
		n := min(uint64(len(ret)), outSize.Uint64())
		memory.Set(outOffset.Uint64(), n, ret)
	}
	contract.Gas += returnGas
	evm.returnData = ret
	return nil, nil
}

// opCallCode implements CALLCODE: foreign code against the caller's state.
func opCallCode(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Pop()
	toWord := stack.Pop()
	value := stack.Pop()
	inOffset, inSize := stack.Pop(), stack.Pop()
	outOffset, outSize := stack.Pop(), stack.Pop()

	to := addressFromWord(&toWord)
	args := memory.GetPtr(inOffset.Uint64(), inSize.Uint64())

	gas := evm.callGasTemp
	if !value.IsZero() {
		gas += GasCallStipend
	}
	ret, returnGas, err := evm.CallCode(contract.Address, to, args, gas, value.ToBig())

	if err != nil {
		stack.Push(new(uint256.Int))
	} else {
		stack.Push(new(uint256.Int).SetOne())
	}
	if err == nil || err == ErrExecutionReverted {
		n := min(uint64(len(ret)), outSize.Uint64())
		memory.Set(outOffset.Uint64(), n, ret)
	}
	contract.Gas += returnGas
	evm.returnData = ret
	return nil, nil
}

// opDelegateCall implements DELEGATECALL: foreign code with the parent's
// caller and value.
func opDelegateCall(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Pop()
	toWord := stack.Pop()
	inOffset, inSize := stack.Pop(), stack.Pop()
	outOffset, outSize := stack.Pop(), stack.Pop()

	to := addressFromWord(&toWord)
	args := memory.GetPtr(inOffset.Uint64(), inSize.Uint64())

	ret, returnGas, err := evm.DelegateCall(contract, to, args, evm.callGasTemp)

	if err != nil {
		stack.Push(new(uint256.Int))
	} else {
		stack.Push(new(uint256.Int).SetOne())
	}
	if err == nil || err == ErrExecutionReverted {
		n := min(uint64(len(ret)), outSize.Uint64())
		memory.Set(outOffset.Uint64(), n, ret)
	}
	contract.Gas += returnGas
	evm.returnData = ret
	return nil, nil
}

// opStaticCall implements STATICCALL: a read-only call frame.
func opStaticCall(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Pop()
	toWord := stack.Pop()
	inOffset, inSize := stack.Pop(), stack.Pop()
	outOffset, outSize := stack.Pop(), stack.Pop()

	to := addressFromWord(&toWord)
	args := memory.GetPtr(inOffset.Uint64(), inSize.Uint64())

	ret, returnGas, err := evm.StaticCall(contract.Address, to, args, evm.callGasTemp)

	if err != nil {
		stack.Push(new(uint256.Int))
	} else {
		stack.Push(new(uint256.Int).SetOne())
	}
	if err == nil || err == ErrExecutionReverted {
		n := min(uint64(len(ret)), outSize.Uint64())
		memory.Set(outOffset.Uint64(), n, ret)
	}
	contract.Gas += returnGas
	evm.returnData = ret
	return nil, nil
}

// opCreate implements CREATE. Stack: value, offset, length.
func opCreate(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	if evm.readOnly {
		return nil, ErrWriteProtection
	}
	value := stack.Pop()
	offset, size := stack.Pop(), stack.Pop()

	initCode := memory.Get(offset.Uint64(), size.Uint64())

	gas := contract.Gas
	if evm.chainRules.IsEIP150 {
		gas -= gas / 64
	}
	contract.Gas -= gas

	ret, addr, returnGas, err := evm.Create(contract.Address, initCode, gas, value.ToBig())

	if err != nil {
		stack.Push(new(uint256.Int))
	} else {
		stack.Push(new(uint256.Int).SetBytes(addr.Bytes()))
	}
	contract.Gas += returnGas
	if err == ErrExecutionReverted {
		evm.returnData = ret
	} else {
		evm.returnData = nil
	}
	return nil, nil
}

// opCreate2 implements CREATE2. Stack: value, offset, length, salt.
func opCreate2(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	if evm.readOnly {
		return nil, ErrWriteProtection
	}
	value := stack.Pop()
	offset, size := stack.Pop(), stack.Pop()
	salt := stack.Pop()

	initCode := memory.Get(offset.Uint64(), size.Uint64())

	// CREATE2 always applies the 63/64 rule (it postdates EIP-150).
	gas := contract.Gas
	gas -= gas / 64
	contract.Gas -= gas

	ret, addr, returnGas, err := evm.Create2(contract.Address, initCode, gas, value.ToBig(), &salt)

	if err != nil {
		stack.Push(new(uint256.Int))
	} else {
		stack.Push(new(uint256.Int).SetBytes(addr.Bytes()))
	}
	contract.Gas += returnGas
	if err == ErrExecutionReverted {
		evm.returnData = ret
	} else {
		evm.returnData = nil
	}
	return nil, nil
}

// opSelfdestruct transfers the whole balance to the beneficiary and marks
// the account for end-of-transaction deletion.
func opSelfdestruct(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	if evm.readOnly {
		return nil, ErrWriteProtection
	}
	beneficiaryWord := stack.Pop()
	beneficiary := addressFromWord(&beneficiaryWord)
	balance := evm.StateDB.GetBalance(contract.Address)
	evm.StateDB.AddBalance(beneficiary, balance)
	evm.StateDB.SelfDestruct(contract.Address)
	return nil, nil
}
