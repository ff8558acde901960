package vm

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethforge/ethforge/core/state"
	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/ethdb"
	"github.com/holiman/uint256"
)

var (
	addrOwner = types.HexToAddress("cafebabe")
	addrExt   = types.HexToAddress("facefeed")
)

// storeContextCode stores ADDRESS, CALLER and CALLVALUE into slots 0, 1, 2
// and returns the first half of its calldata.
var storeContextCode = []byte{
	byte(ADDRESS), byte(PUSH1), 0x00, byte(SSTORE),
	byte(CALLER), byte(PUSH1), 0x01, byte(SSTORE),
	byte(CALLVALUE), byte(PUSH1), 0x02, byte(SSTORE),
	// CALLDATACOPY(0, 0, CALLDATASIZE)
	byte(CALLDATASIZE), byte(PUSH1), 0x00, byte(PUSH1), 0x00, byte(CALLDATACOPY),
	// RETURN(0, CALLDATASIZE / 2)
	byte(PUSH1), 0x02, byte(CALLDATASIZE), byte(DIV), byte(PUSH1), 0x00, byte(RETURN),
}

func newTestEVM(t *testing.T, rules ForkRules) (*EVM, *state.WorldState) {
	t.Helper()
	world, err := state.New(types.EmptyRootHash, state.NewDatabase(ethdb.NewMemoryDatabase()))
	if err != nil {
		t.Fatal(err)
	}
	blockCtx := BlockContext{
		BlockNumber: big.NewInt(100),
		Time:        1_500_000_000,
		Coinbase:    types.HexToAddress("c0"),
		GasLimit:    10_000_000,
		Difficulty:  big.NewInt(131072),
	}
	evm := NewEVM(blockCtx, TxContext{Origin: addrOwner, GasPrice: big.NewInt(1)}, world, rules)
	return evm, world
}

func allForks() ForkRules {
	return ForkRules{
		IsHomestead:      true,
		IsEIP150:         true,
		IsEIP155:         true,
		IsEIP158:         true,
		IsByzantium:      true,
		IsConstantinople: true,
	}
}

// Scenario: CALL with value transfer and a returning callee. The callee's
// storage must record the callee address, the caller, and the value; the
// caller receives the first half of the calldata back.
func TestCallValueTransfer(t *testing.T) {
	evm, world := newTestEVM(t, allForks())

	world.AddBalance(addrOwner, big.NewInt(1000))
	world.CreateAccount(addrExt)
	world.SetCode(addrExt, storeContextCode)

	calldata := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	ret, gasLeft, err := evm.Call(addrOwner, addrExt, calldata, 100_000, big.NewInt(500))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if gasLeft == 0 {
		t.Error("call consumed all gas")
	}
	if !bytes.Equal(ret, calldata[:4]) {
		t.Errorf("return data = %x, want %x", ret, calldata[:4])
	}

	if got := world.GetBalance(addrOwner); got.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("owner balance = %v, want 500", got)
	}
	if got := world.GetBalance(addrExt); got.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("callee balance = %v, want 500", got)
	}

	wantAddr := types.BytesToHash(addrExt.Bytes())
	wantCaller := types.BytesToHash(addrOwner.Bytes())
	wantValue := types.BytesToHash(big.NewInt(500).Bytes())
	if got := world.GetState(addrExt, types.HexToHash("00")); got != wantAddr {
		t.Errorf("slot 0 = %v, want %v", got, wantAddr)
	}
	if got := world.GetState(addrExt, types.HexToHash("01")); got != wantCaller {
		t.Errorf("slot 1 = %v, want %v", got, wantCaller)
	}
	if got := world.GetState(addrExt, types.HexToHash("02")); got != wantValue {
		t.Errorf("slot 2 = %v, want %v", got, wantValue)
	}
}

// Scenario: a CALL at the depth limit fails without touching the world and
// refunds the forwarded gas.
func TestCallDepthLimit(t *testing.T) {
	evm, world := newTestEVM(t, allForks())
	world.AddBalance(addrOwner, big.NewInt(1000))
	world.CreateAccount(addrExt)
	world.SetCode(addrExt, storeContextCode)

	evm.depth = MaxCallDepth
	_, gasLeft, err := evm.Call(addrOwner, addrExt, nil, 50_000, big.NewInt(500))
	if !errors.Is(err, ErrMaxCallDepthExceeded) {
		t.Fatalf("err = %v, want depth limit", err)
	}
	if gasLeft != 50_000 {
		t.Errorf("gas left = %d, want the full forwarded 50000", gasLeft)
	}
	if world.GetBalance(addrExt).Sign() != 0 {
		t.Error("depth-limited call moved value")
	}
	if got := world.GetState(addrExt, types.HexToHash("00")); !got.IsZero() {
		t.Error("depth-limited call mutated storage")
	}
}

// Scenario: CALL with value above the caller's balance fails, refunds the
// forwarded gas, and leaves the world untouched.
func TestCallInsufficientBalance(t *testing.T) {
	evm, world := newTestEVM(t, allForks())
	world.AddBalance(addrOwner, big.NewInt(100))
	world.CreateAccount(addrExt)
	world.SetCode(addrExt, storeContextCode)

	_, gasLeft, err := evm.Call(addrOwner, addrExt, nil, 50_000, big.NewInt(500))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want insufficient balance", err)
	}
	if gasLeft != 50_000 {
		t.Errorf("gas left = %d, want 50000", gasLeft)
	}
	if world.GetBalance(addrOwner).Cmp(big.NewInt(100)) != 0 {
		t.Error("failed call changed the caller balance")
	}
}

// Scenario: CALLCODE runs foreign code against the caller's own storage and
// moves no value.
func TestCallCodeStorageOnOwner(t *testing.T) {
	evm, world := newTestEVM(t, allForks())
	world.AddBalance(addrOwner, big.NewInt(1000))
	world.CreateAccount(addrExt)
	world.SetCode(addrExt, storeContextCode)

	_, _, err := evm.CallCode(addrOwner, addrExt, nil, 100_000, big.NewInt(500))
	if err != nil {
		t.Fatalf("callcode failed: %v", err)
	}

	// Storage lands on the owner, not the callee.
	wantAddr := types.BytesToHash(addrOwner.Bytes())
	if got := world.GetState(addrOwner, types.HexToHash("00")); got != wantAddr {
		t.Errorf("owner slot 0 = %v, want own address %v", got, wantAddr)
	}
	if got := world.GetState(addrExt, types.HexToHash("00")); !got.IsZero() {
		t.Error("callee storage mutated by CALLCODE")
	}
	// Balances unchanged: CALLCODE does not transfer.
	if got := world.GetBalance(addrOwner); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("owner balance = %v, want 1000", got)
	}
	// CALLER inside the frame is the owner itself.
	if got := world.GetState(addrOwner, types.HexToHash("01")); got != wantAddr {
		t.Errorf("owner slot 1 = %v, want %v", got, wantAddr)
	}
	// CALLVALUE is the value passed to CALLCODE.
	if got := world.GetState(addrOwner, types.HexToHash("02")); got != types.BytesToHash(big.NewInt(500).Bytes()) {
		t.Errorf("owner slot 2 = %v, want 500", got)
	}
}

// Scenario: DELEGATECALL keeps the parent's caller and value.
func TestDelegateCallContext(t *testing.T) {
	evm, world := newTestEVM(t, allForks())
	parentCaller := types.HexToAddress("0ddba11")
	world.CreateAccount(addrExt)
	world.SetCode(addrExt, storeContextCode)

	parent := NewContract(parentCaller, addrOwner, big.NewInt(777), 0)
	_, _, err := evm.DelegateCall(parent, addrExt, nil, 100_000)
	if err != nil {
		t.Fatalf("delegatecall failed: %v", err)
	}

	if got := world.GetState(addrOwner, types.HexToHash("00")); got != types.BytesToHash(addrOwner.Bytes()) {
		t.Errorf("slot 0 = %v, want owner address", got)
	}
	if got := world.GetState(addrOwner, types.HexToHash("01")); got != types.BytesToHash(parentCaller.Bytes()) {
		t.Errorf("slot 1 = %v, want parent caller", got)
	}
	if got := world.GetState(addrOwner, types.HexToHash("02")); got != types.BytesToHash(big.NewInt(777).Bytes()) {
		t.Errorf("slot 2 = %v, want parent value", got)
	}
}

// Scenario: ECRECOVER with an all-zero 128-byte input succeeds with empty
// output and charges exactly its flat cost.
func TestPrecompileEcrecoverZeroInput(t *testing.T) {
	evm, world := newTestEVM(t, allForks())
	world.AddBalance(addrOwner, big.NewInt(1000))

	input := make([]byte, 128)
	target := types.BytesToAddress([]byte{1})
	ret, gasLeft, err := evm.Call(addrOwner, target, input, 5000, big.NewInt(10))
	if err != nil {
		t.Fatalf("precompile call failed: %v", err)
	}
	if len(ret) != 0 {
		t.Errorf("output = %x, want empty", ret)
	}
	if gasLeft != 2000 {
		t.Errorf("gas left = %d, want 2000 (5000 - 3000)", gasLeft)
	}
	if got := world.GetBalance(target); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("precompile balance = %v, want 10", got)
	}
}

func TestPrecompileIdentity(t *testing.T) {
	evm, _ := newTestEVM(t, allForks())
	input := []byte("echo")
	target := types.BytesToAddress([]byte{4})
	ret, gasLeft, err := evm.Call(addrOwner, target, input, 100, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ret, input) {
		t.Errorf("identity output = %x, want %x", ret, input)
	}
	// 15 + 3 * ceil(4/32) = 18.
	if gasLeft != 82 {
		t.Errorf("gas left = %d, want 82", gasLeft)
	}
}

// Insufficient gas consumes everything and fails the precompile call.
func TestPrecompileOutOfGas(t *testing.T) {
	evm, _ := newTestEVM(t, allForks())
	target := types.BytesToAddress([]byte{2})
	_, gasLeft, err := evm.Call(addrOwner, target, []byte("x"), 10, nil)
	if !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("err = %v, want out of gas", err)
	}
	if gasLeft != 0 {
		t.Errorf("gas left = %d, want 0", gasLeft)
	}
}

// A frame error consumes all gas in the frame and reverts its effects.
func TestCallErrorConsumesGas(t *testing.T) {
	evm, world := newTestEVM(t, allForks())
	// SSTORE then jump to an invalid destination.
	code := []byte{
		byte(PUSH1), 0x01, byte(PUSH1), 0x00, byte(SSTORE),
		byte(PUSH1), 0x40, byte(JUMP),
	}
	world.CreateAccount(addrExt)
	world.SetCode(addrExt, code)

	_, gasLeft, err := evm.Call(addrOwner, addrExt, nil, 50_000, nil)
	if !errors.Is(err, ErrInvalidJump) {
		t.Fatalf("err = %v, want invalid jump", err)
	}
	if gasLeft != 0 {
		t.Errorf("gas left = %d, want 0", gasLeft)
	}
	if got := world.GetState(addrExt, types.HexToHash("00")); !got.IsZero() {
		t.Error("failed frame left a storage write behind")
	}
}

// REVERT undoes state but returns the remaining gas and the revert data.
func TestRevertReturnsGas(t *testing.T) {
	evm, world := newTestEVM(t, allForks())
	code := []byte{
		byte(PUSH1), 0x01, byte(PUSH1), 0x00, byte(SSTORE),
		byte(PUSH1), 0x00, byte(PUSH1), 0x00, byte(REVERT),
	}
	world.CreateAccount(addrExt)
	world.SetCode(addrExt, code)

	_, gasLeft, err := evm.Call(addrOwner, addrExt, nil, 50_000, nil)
	if !errors.Is(err, ErrExecutionReverted) {
		t.Fatalf("err = %v, want reverted", err)
	}
	if gasLeft == 0 {
		t.Error("revert consumed all gas")
	}
	if got := world.GetState(addrExt, types.HexToHash("00")); !got.IsZero() {
		t.Error("reverted frame left a storage write behind")
	}
}

// An infinite loop runs out of gas.
func TestOutOfGasLoop(t *testing.T) {
	evm, world := newTestEVM(t, allForks())
	code := []byte{byte(JUMPDEST), byte(PUSH1), 0x00, byte(JUMP)}
	world.CreateAccount(addrExt)
	world.SetCode(addrExt, code)

	_, gasLeft, err := evm.Call(addrOwner, addrExt, nil, 10_000, nil)
	if !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("err = %v, want out of gas", err)
	}
	if gasLeft != 0 {
		t.Errorf("gas left = %d, want 0", gasLeft)
	}
}

// A call to an account without code succeeds immediately, keeping all gas.
func TestCallNoCode(t *testing.T) {
	evm, world := newTestEVM(t, allForks())
	world.AddBalance(addrOwner, big.NewInt(100))

	ret, gasLeft, err := evm.Call(addrOwner, addrExt, nil, 7777, big.NewInt(1))
	if err != nil {
		t.Fatal(err)
	}
	if ret != nil || gasLeft != 7777 {
		t.Errorf("no-code call: ret %x, gas %d", ret, gasLeft)
	}
	if world.GetBalance(addrExt).Cmp(big.NewInt(1)) != 0 {
		t.Error("value not transferred")
	}
}

func TestCreateDeploysCode(t *testing.T) {
	evm, world := newTestEVM(t, allForks())
	world.AddBalance(addrOwner, big.NewInt(100))

	// Init code: MSTORE8(0, 0xfe); RETURN(0, 1) -> runtime code [0xfe].
	initCode := []byte{
		byte(PUSH1), 0xfe, byte(PUSH1), 0x00, byte(MSTORE8),
		byte(PUSH1), 0x01, byte(PUSH1), 0x00, byte(RETURN),
	}
	wantAddr := CreateAddress(addrOwner, 0)

	ret, addr, gasLeft, err := evm.Create(addrOwner, initCode, 100_000, big.NewInt(5))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if addr != wantAddr {
		t.Errorf("address = %v, want %v", addr, wantAddr)
	}
	if !bytes.Equal(ret, []byte{0xfe}) {
		t.Errorf("deployed code = %x, want fe", ret)
	}
	if gasLeft == 0 {
		t.Error("create consumed all gas")
	}
	if got := world.GetCode(addr); !bytes.Equal(got, []byte{0xfe}) {
		t.Errorf("stored code = %x, want fe", got)
	}
	if world.GetNonce(addrOwner) != 1 {
		t.Error("creator nonce not incremented")
	}
	// EIP-161: fresh contracts start at nonce 1.
	if world.GetNonce(addr) != 1 {
		t.Errorf("contract nonce = %d, want 1", world.GetNonce(addr))
	}
	if world.GetBalance(addr).Cmp(big.NewInt(5)) != 0 {
		t.Error("endowment not transferred")
	}
}

func TestCreateAddressDerivation(t *testing.T) {
	// keccak256(rlp([sender, nonce]))[12:] changes with the nonce.
	a := CreateAddress(addrOwner, 0)
	b := CreateAddress(addrOwner, 1)
	if a == b {
		t.Error("create addresses for different nonces collide")
	}
}

func TestCallStipendAllowsValueTransfer(t *testing.T) {
	// The 2300 stipend lets a value-receiving callee run a few cheap ops
	// even when the caller forwards zero gas. This callee just STOPs.
	evm, world := newTestEVM(t, allForks())
	world.AddBalance(addrOwner, big.NewInt(10))
	world.CreateAccount(addrExt)
	world.SetCode(addrExt, []byte{byte(STOP)})

	// Caller bytecode: CALL(gas=0, to, value=1, in=0/0, out=0/0), store the
	// result at slot 0.
	var code []byte
	code = append(code, byte(PUSH1), 0x00) // outSize
	code = append(code, byte(PUSH1), 0x00) // outOffset
	code = append(code, byte(PUSH1), 0x00) // inSize
	code = append(code, byte(PUSH1), 0x00) // inOffset
	code = append(code, byte(PUSH1), 0x01) // value
	code = append(code, byte(PUSH20))
	code = append(code, addrExt.Bytes()...)
	code = append(code, byte(PUSH1), 0x00) // gas
	code = append(code, byte(CALL))
	code = append(code, byte(PUSH1), 0x00, byte(SSTORE))
	code = append(code, byte(STOP))

	caller := types.HexToAddress("ca11e4")
	world.CreateAccount(caller)
	world.SetCode(caller, code)
	world.AddBalance(caller, big.NewInt(10))

	_, _, err := evm.Call(addrOwner, caller, nil, 200_000, nil)
	if err != nil {
		t.Fatalf("outer call failed: %v", err)
	}
	if got := world.GetState(caller, types.HexToHash("00")); got != types.HexToHash("01") {
		t.Errorf("inner call result = %v, want 1", got)
	}
	if world.GetBalance(addrExt).Cmp(big.NewInt(1)) != 0 {
		t.Error("stipend call did not move value")
	}
}

func TestStaticCallBlocksWrites(t *testing.T) {
	evm, world := newTestEVM(t, allForks())
	code := []byte{byte(PUSH1), 0x01, byte(PUSH1), 0x00, byte(SSTORE)}
	world.CreateAccount(addrExt)
	world.SetCode(addrExt, code)

	_, _, err := evm.StaticCall(addrOwner, addrExt, nil, 50_000)
	if !errors.Is(err, ErrWriteProtection) {
		t.Fatalf("err = %v, want write protection", err)
	}
}

func TestGasSstoreRefund(t *testing.T) {
	evm, world := newTestEVM(t, allForks())
	key := types.HexToHash("05")
	stack := NewStack()

	// Zero -> non-zero costs G_sset.
	stack.Push(uint256.NewInt(1))                  // value
	stack.Push(new(uint256.Int).SetBytes(key[:])) // key on top
	contract := NewContract(addrOwner, addrExt, nil, 0)
	gas, err := gasSstore(evm, contract, stack, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if gas != GasSstoreSet {
		t.Errorf("sstore set gas = %d, want %d", gas, GasSstoreSet)
	}

	// Non-zero -> zero costs G_sreset and accrues the clear refund.
	world.SetState(addrExt, key, types.HexToHash("01"))
	stack = NewStack()
	stack.Push(uint256.NewInt(0))
	stack.Push(new(uint256.Int).SetBytes(key[:]))
	gas, err = gasSstore(evm, contract, stack, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if gas != GasSstoreReset {
		t.Errorf("sstore clear gas = %d, want %d", gas, GasSstoreReset)
	}
	if world.GetRefund() != RefundSclear {
		t.Errorf("refund = %d, want %d", world.GetRefund(), RefundSclear)
	}
}

func TestCallGas63_64(t *testing.T) {
	// With EIP-150 the forwarded gas caps at available - available/64.
	requested := uint256.NewInt(1_000_000)
	got, err := callGas(true, 64_000, 0, requested)
	if err != nil {
		t.Fatal(err)
	}
	if got != 63_000 {
		t.Errorf("forwarded = %d, want 63000", got)
	}
	// Below the cap, the requested amount passes through.
	got, err = callGas(true, 64_000, 0, uint256.NewInt(1000))
	if err != nil {
		t.Fatal(err)
	}
	if got != 1000 {
		t.Errorf("forwarded = %d, want 1000", got)
	}
	// Pre-EIP-150 the request is taken as-is.
	got, err = callGas(false, 0, 0, uint256.NewInt(5000))
	if err != nil {
		t.Fatal(err)
	}
	if got != 5000 {
		t.Errorf("forwarded = %d, want 5000", got)
	}
}
