package core

import (
	"math/big"
	"testing"

	"github.com/ethforge/ethforge/core/state"
	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/ethdb"
)

const testGenesisJSON = `{
  "config": {
    "chainId": 1337,
    "homesteadBlock": 0,
    "eip150Block": 0,
    "eip155Block": 0,
    "eip158Block": 0,
    "byzantiumBlock": 0
  },
  "nonce": "0x2a",
  "timestamp": "0x59682f00",
  "extraData": "0x11bbe8db4e347b4e8c937c1c8370e4b5ed33adb3db69cbdb7a38e1e50b1b82fa",
  "gasLimit": "0x7a1200",
  "difficulty": "0x20000",
  "mixHash": "0x0000000000000000000000000000000000000000000000000000000000000000",
  "coinbase": "0x0000000000000000000000000000000000000000",
  "alloc": {
    "0x71562b71999873db5b286df957af199ec94617f7": {"balance": "0xde0b6b3a7640000"},
    "0x703c4b2bd70c169f5717101caee543299fc946c7": {
      "balance": "0x1",
      "nonce": "0x5",
      "storage": {
        "0x0000000000000000000000000000000000000000000000000000000000000001": "0x00000000000000000000000000000000000000000000000000000000000000ff"
      }
    }
  }
}`

func TestParseGenesis(t *testing.T) {
	g, err := ParseGenesis([]byte(testGenesisJSON))
	if err != nil {
		t.Fatal(err)
	}
	if g.Nonce != 0x2a {
		t.Errorf("nonce = %d, want 42", g.Nonce)
	}
	if g.GasLimit != 8_000_000 {
		t.Errorf("gas limit = %d, want 8000000", g.GasLimit)
	}
	if g.Difficulty.Cmp(big.NewInt(131072)) != 0 {
		t.Errorf("difficulty = %v", g.Difficulty)
	}
	if g.Config == nil || g.Config.ChainID.Cmp(big.NewInt(1337)) != 0 {
		t.Error("chain config not parsed")
	}
	funded := types.HexToAddress("71562b71999873db5b286df957af199ec94617f7")
	if acc, ok := g.Alloc[funded]; !ok || acc.Balance.Cmp(big.NewInt(1e18)) != 0 {
		t.Error("alloc balance not parsed")
	}
}

func TestGenesisCommit(t *testing.T) {
	g, err := ParseGenesis([]byte(testGenesisJSON))
	if err != nil {
		t.Fatal(err)
	}
	storages := NewStorages(ethdb.NewMemoryDatabase())
	block, err := g.Commit(storages)
	if err != nil {
		t.Fatal(err)
	}
	if block.NumberU64() != 0 {
		t.Errorf("genesis number = %d", block.NumberU64())
	}
	if block.Root() == types.EmptyRootHash {
		t.Error("genesis state root is empty despite the allocation")
	}

	world, err := state.New(block.Root(), storages.State)
	if err != nil {
		t.Fatal(err)
	}
	funded := types.HexToAddress("71562b71999873db5b286df957af199ec94617f7")
	if got := world.GetBalance(funded); got.Cmp(big.NewInt(1e18)) != 0 {
		t.Errorf("funded balance = %v", got)
	}
	stored := types.HexToAddress("703c4b2bd70c169f5717101caee543299fc946c7")
	if world.GetNonce(stored) != 5 {
		t.Error("alloc nonce not applied")
	}
	key := types.HexToHash("01")
	if got := world.GetState(stored, key); got != types.HexToHash("ff") {
		t.Errorf("alloc storage = %v, want 0xff", got)
	}

	// The same spec committed to a fresh database reproduces the root.
	block2, err := g.Commit(NewStorages(ethdb.NewMemoryDatabase()))
	if err != nil {
		t.Fatal(err)
	}
	if block2.Root() != block.Root() {
		t.Error("genesis root is not deterministic")
	}
	if block2.Hash() != block.Hash() {
		t.Error("genesis hash is not deterministic")
	}
}
