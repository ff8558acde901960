package core

import (
	"math/big"
	"testing"

	"github.com/ethforge/ethforge/core/state"
	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/ethdb"
)

func newTestState(t *testing.T) *state.WorldState {
	t.Helper()
	world, err := state.New(types.EmptyRootHash, state.NewDatabase(ethdb.NewMemoryDatabase()))
	if err != nil {
		t.Fatal(err)
	}
	return world
}

func testHeader() *types.Header {
	return &types.Header{
		ParentHash: types.HexToHash("aa"),
		Coinbase:   types.HexToAddress("c0ffee"),
		Difficulty: big.NewInt(131072),
		Number:     big.NewInt(10),
		GasLimit:   8_000_000,
		Time:       1_500_000_000,
	}
}

func TestIntrinsicGas(t *testing.T) {
	if gas := IntrinsicGas(nil, false, true); gas != TxGas {
		t.Errorf("empty tx gas = %d, want %d", gas, TxGas)
	}
	if gas := IntrinsicGas(nil, true, true); gas != TxGas+TxCreateGas {
		t.Errorf("create gas = %d, want %d", gas, TxGas+TxCreateGas)
	}
	// Frontier creations have no extra create cost.
	if gas := IntrinsicGas(nil, true, false); gas != TxGas {
		t.Errorf("frontier create gas = %d, want %d", gas, TxGas)
	}
	data := []byte{0, 1, 0, 2}
	want := TxGas + 2*TxDataZeroGas + 2*TxDataNonZeroGas
	if gas := IntrinsicGas(data, false, true); gas != want {
		t.Errorf("data gas = %d, want %d", gas, want)
	}
}

func TestApplyMessageTransfer(t *testing.T) {
	world := newTestState(t)
	header := testHeader()

	sender := types.HexToAddress("5e4d")
	receiver := types.HexToAddress("4ec5")
	world.AddBalance(sender, big.NewInt(1_000_000))

	msg := &Message{
		From:     sender,
		To:       &receiver,
		Nonce:    0,
		Value:    big.NewInt(1000),
		GasLimit: 21000,
		GasPrice: big.NewInt(2),
	}
	gp := new(GasPool).AddGas(header.GasLimit)
	result, err := ApplyMessage(TestChainConfig, world, header, msg, gp, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed() {
		t.Fatalf("transfer failed: %v", result.Err)
	}
	if result.UsedGas != 21000 {
		t.Errorf("gas used = %d, want 21000", result.UsedGas)
	}

	fee := big.NewInt(21000 * 2)
	wantSender := new(big.Int).Sub(big.NewInt(1_000_000), new(big.Int).Add(fee, big.NewInt(1000)))
	if got := world.GetBalance(sender); got.Cmp(wantSender) != 0 {
		t.Errorf("sender balance = %v, want %v", got, wantSender)
	}
	if got := world.GetBalance(receiver); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("receiver balance = %v, want 1000", got)
	}
	if got := world.GetBalance(header.Coinbase); got.Cmp(fee) != 0 {
		t.Errorf("miner fee = %v, want %v", got, fee)
	}
	if world.GetNonce(sender) != 1 {
		t.Error("sender nonce not incremented")
	}
	if gp.Gas() != header.GasLimit-21000 {
		t.Errorf("gas pool = %d", gp.Gas())
	}
}

func TestApplyMessageNonceMismatch(t *testing.T) {
	world := newTestState(t)
	header := testHeader()
	sender := types.HexToAddress("5e4d")
	world.AddBalance(sender, big.NewInt(1_000_000))

	to := types.HexToAddress("01")
	msg := &Message{From: sender, To: &to, Nonce: 5, Value: new(big.Int), GasLimit: 21000, GasPrice: big.NewInt(1)}
	gp := new(GasPool).AddGas(header.GasLimit)
	if _, err := ApplyMessage(TestChainConfig, world, header, msg, gp, nil); err == nil {
		t.Error("expected nonce error")
	}
	if gp.Gas() != header.GasLimit {
		t.Error("failed validation leaked pool gas")
	}
}

func TestApplyMessageInsufficientBalance(t *testing.T) {
	world := newTestState(t)
	header := testHeader()
	sender := types.HexToAddress("5e4d")
	world.AddBalance(sender, big.NewInt(100))

	to := types.HexToAddress("01")
	msg := &Message{From: sender, To: &to, Value: big.NewInt(1), GasLimit: 21000, GasPrice: big.NewInt(1)}
	gp := new(GasPool).AddGas(header.GasLimit)
	if _, err := ApplyMessage(TestChainConfig, world, header, msg, gp, nil); err == nil {
		t.Error("expected upfront balance error")
	}
}

func TestApplyMessageIntrinsicGas(t *testing.T) {
	world := newTestState(t)
	header := testHeader()
	sender := types.HexToAddress("5e4d")
	world.AddBalance(sender, big.NewInt(1_000_000))

	to := types.HexToAddress("01")
	msg := &Message{From: sender, To: &to, Value: new(big.Int), GasLimit: 20000, GasPrice: big.NewInt(1)}
	gp := new(GasPool).AddGas(header.GasLimit)
	if _, err := ApplyMessage(TestChainConfig, world, header, msg, gp, nil); err == nil {
		t.Error("expected intrinsic gas error")
	}
}

func TestApplyMessageGasPoolExhausted(t *testing.T) {
	world := newTestState(t)
	header := testHeader()
	sender := types.HexToAddress("5e4d")
	world.AddBalance(sender, big.NewInt(1_000_000))

	to := types.HexToAddress("01")
	msg := &Message{From: sender, To: &to, Value: new(big.Int), GasLimit: 21000, GasPrice: big.NewInt(1)}
	gp := new(GasPool).AddGas(10_000)
	if _, err := ApplyMessage(TestChainConfig, world, header, msg, gp, nil); err == nil {
		t.Error("expected gas pool error")
	}
}

func TestApplyTransactionReceipt(t *testing.T) {
	world := newTestState(t)
	header := testHeader()

	key, err := hexKeyCore("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	if err != nil {
		t.Fatal(err)
	}
	sender := addressOfKeyCore(key)
	world.AddBalance(sender, new(big.Int).Mul(big.NewInt(1), big.NewInt(1e18)))

	signer := TestChainConfig.MakeSigner(header.Number)
	tx := types.NewTransaction(0, types.HexToAddress("beef"), big.NewInt(100), 21000, big.NewInt(1), nil)
	signed, err := types.SignTx(tx, signer, key)
	if err != nil {
		t.Fatal(err)
	}

	world.SetTxContext(signed.Hash(), 0)
	gp := new(GasPool).AddGas(header.GasLimit)
	receipt, used, err := ApplyTransaction(TestChainConfig, world, header, signed, gp, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if used != 21000 {
		t.Errorf("gas used = %d, want 21000", used)
	}
	if !receipt.Succeeded() {
		t.Error("receipt reports failure")
	}
	if receipt.CumulativeGasUsed != 21000 {
		t.Errorf("cumulative gas = %d", receipt.CumulativeGasUsed)
	}
	if receipt.TxHash != signed.Hash() {
		t.Error("receipt tx hash mismatch")
	}
	// Byzantium receipts carry a status, not a root.
	if len(receipt.PostState) != 0 {
		t.Error("unexpected post-state root in Byzantium receipt")
	}
}

func TestApplyTransactionPreByzantiumRoot(t *testing.T) {
	config := &ChainConfig{
		ChainID:        big.NewInt(1),
		HomesteadBlock: big.NewInt(0),
		EIP150Block:    big.NewInt(0),
	}
	world := newTestState(t)
	header := testHeader()

	key, _ := hexKeyCore("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	sender := addressOfKeyCore(key)
	world.AddBalance(sender, new(big.Int).Mul(big.NewInt(1), big.NewInt(1e18)))

	tx := types.NewTransaction(0, types.HexToAddress("beef"), big.NewInt(100), 21000, big.NewInt(1), nil)
	signed, err := types.SignTx(tx, config.MakeSigner(header.Number), key)
	if err != nil {
		t.Fatal(err)
	}

	world.SetTxContext(signed.Hash(), 0)
	gp := new(GasPool).AddGas(header.GasLimit)
	receipt, _, err := ApplyTransaction(config, world, header, signed, gp, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(receipt.PostState) != types.HashLength {
		t.Errorf("pre-Byzantium receipt post state = %x", receipt.PostState)
	}
}

func TestContractCreationTx(t *testing.T) {
	world := newTestState(t)
	header := testHeader()

	sender := types.HexToAddress("5e4d")
	world.AddBalance(sender, big.NewInt(10_000_000))

	// Init code deploying the single byte 0xfe.
	initCode := types.FromHex("60fe60005360016000f3")
	msg := &Message{
		From:     sender,
		Nonce:    0,
		Value:    new(big.Int),
		GasLimit: 200_000,
		GasPrice: big.NewInt(1),
		Data:     initCode,
	}
	gp := new(GasPool).AddGas(header.GasLimit)
	result, err := ApplyMessage(TestChainConfig, world, header, msg, gp, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed() {
		t.Fatalf("creation failed: %v", result.Err)
	}
	if result.ContractAddress == (types.Address{}) {
		t.Fatal("no contract address")
	}
	if code := world.GetCode(result.ContractAddress); len(code) != 1 || code[0] != 0xfe {
		t.Errorf("deployed code = %x, want fe", code)
	}
}
