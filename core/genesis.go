package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethforge/ethforge/core/rawdb"
	"github.com/ethforge/ethforge/core/state"
	"github.com/ethforge/ethforge/core/types"
)

// GenesisAccount is an account in the genesis allocation.
type GenesisAccount struct {
	Balance *big.Int
	Code    []byte
	Nonce   uint64
	Storage map[types.Hash]types.Hash
}

// GenesisAlloc maps addresses to their genesis accounts.
type GenesisAlloc map[types.Address]GenesisAccount

// Genesis specifies the header fields and pre-funded accounts of the
// genesis block.
type Genesis struct {
	Config     *ChainConfig
	Nonce      uint64
	Timestamp  uint64
	ExtraData  []byte
	GasLimit   uint64
	Difficulty *big.Int
	MixHash    types.Hash
	Coinbase   types.Address
	Alloc      GenesisAlloc
}

// genesisJSON is the on-disk JSON form with hex-encoded quantities.
type genesisJSON struct {
	Config     *ChainConfig               `json:"config"`
	Nonce      string                     `json:"nonce"`
	Timestamp  string                     `json:"timestamp"`
	ExtraData  string                     `json:"extraData"`
	GasLimit   string                     `json:"gasLimit"`
	Difficulty string                     `json:"difficulty"`
	MixHash    string                     `json:"mixHash"`
	Coinbase   string                     `json:"coinbase"`
	Alloc      map[string]genesisAllocJSON `json:"alloc"`
}

type genesisAllocJSON struct {
	Balance string            `json:"balance"`
	Code    string            `json:"code,omitempty"`
	Nonce   string            `json:"nonce,omitempty"`
	Storage map[string]string `json:"storage,omitempty"`
}

// ParseGenesis decodes a JSON genesis specification.
func ParseGenesis(data []byte) (*Genesis, error) {
	var spec genesisJSON
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	g := &Genesis{
		Config:    spec.Config,
		ExtraData: types.FromHex(spec.ExtraData),
		MixHash:   types.HexToHash(spec.MixHash),
		Coinbase:  types.HexToAddress(spec.Coinbase),
		Alloc:     make(GenesisAlloc, len(spec.Alloc)),
	}
	var err error
	if g.Nonce, err = parseHexUint(spec.Nonce); err != nil {
		return nil, fmt.Errorf("genesis nonce: %w", err)
	}
	if g.Timestamp, err = parseHexUint(spec.Timestamp); err != nil {
		return nil, fmt.Errorf("genesis timestamp: %w", err)
	}
	if g.GasLimit, err = parseHexUint(spec.GasLimit); err != nil {
		return nil, fmt.Errorf("genesis gasLimit: %w", err)
	}
	if g.Difficulty, err = parseHexBig(spec.Difficulty); err != nil {
		return nil, fmt.Errorf("genesis difficulty: %w", err)
	}
	for addr, acc := range spec.Alloc {
		balance, err := parseHexBig(acc.Balance)
		if err != nil {
			return nil, fmt.Errorf("genesis alloc %s: %w", addr, err)
		}
		nonce, err := parseHexUint(acc.Nonce)
		if err != nil {
			return nil, fmt.Errorf("genesis alloc %s: %w", addr, err)
		}
		account := GenesisAccount{
			Balance: balance,
			Nonce:   nonce,
			Code:    types.FromHex(acc.Code),
		}
		if len(acc.Storage) > 0 {
			account.Storage = make(map[types.Hash]types.Hash, len(acc.Storage))
			for k, v := range acc.Storage {
				account.Storage[types.HexToHash(k)] = types.HexToHash(v)
			}
		}
		g.Alloc[types.HexToAddress(addr)] = account
	}
	return g, nil
}

// parseHexUint parses a hex or decimal quantity; empty means zero.
func parseHexUint(s string) (uint64, error) {
	b, err := parseHexBig(s)
	if err != nil {
		return 0, err
	}
	if !b.IsUint64() {
		return 0, errors.New("quantity exceeds uint64")
	}
	return b.Uint64(), nil
}

// parseHexBig parses a hex ("0x...") or decimal quantity; empty means zero.
func parseHexBig(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	b, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("invalid quantity %q", s)
	}
	return b, nil
}

// ToHeader builds the genesis header with the given state root.
func (g *Genesis) ToHeader(stateRoot types.Hash) *types.Header {
	difficulty := g.Difficulty
	if difficulty == nil {
		difficulty = new(big.Int)
	}
	return &types.Header{
		UncleHash:   types.EmptyUncleHash,
		Coinbase:    g.Coinbase,
		Root:        stateRoot,
		TxHash:      types.EmptyRootHash,
		ReceiptHash: types.EmptyRootHash,
		Difficulty:  new(big.Int).Set(difficulty),
		Number:      new(big.Int),
		GasLimit:    g.GasLimit,
		Time:        g.Timestamp,
		Extra:       append([]byte(nil), g.ExtraData...),
		MixDigest:   g.MixHash,
		Nonce:       types.EncodeNonce(g.Nonce),
	}
}

// Commit applies the genesis allocation, persists the resulting state and
// writes the genesis block into the chain storage. It returns the genesis
// block.
func (g *Genesis) Commit(storages *Storages) (*types.Block, error) {
	world, err := state.New(types.EmptyRootHash, storages.State)
	if err != nil {
		return nil, err
	}
	for addr, account := range g.Alloc {
		world.CreateAccount(addr)
		if account.Balance != nil && account.Balance.Sign() > 0 {
			world.AddBalance(addr, account.Balance)
		}
		if account.Nonce > 0 {
			world.SetNonce(addr, account.Nonce)
		}
		if len(account.Code) > 0 {
			world.SetCode(addr, account.Code)
		}
		for key, val := range account.Storage {
			world.SetState(addr, key, val)
		}
	}
	world.Finalise(false)
	stateRoot, err := world.Commit()
	if err != nil {
		return nil, err
	}

	block := types.NewBlock(g.ToHeader(stateRoot), nil)
	if err := rawdb.WriteHeader(storages.ChainDB, block.Header()); err != nil {
		return nil, err
	}
	if err := rawdb.WriteCanonicalHash(storages.ChainDB, 0, block.Hash()); err != nil {
		return nil, err
	}
	if err := rawdb.WriteHeadBlockHash(storages.ChainDB, block.Hash()); err != nil {
		return nil, err
	}
	return block, nil
}

// DefaultGenesis returns a development genesis with every fork active.
func DefaultGenesis() *Genesis {
	return &Genesis{
		Config:     TestChainConfig,
		GasLimit:   8_000_000,
		Difficulty: big.NewInt(131072),
		Alloc:      GenesisAlloc{},
	}
}
