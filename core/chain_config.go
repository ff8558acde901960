// Package core implements the block execution engine: transaction
// processing, block validation, reward accounting and genesis setup.
package core

import (
	"math/big"

	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/core/vm"
)

// ChainConfig holds the fork-activation schedule of a chain. A nil block
// number means the fork never activates.
type ChainConfig struct {
	ChainID *big.Int `json:"chainId"`

	HomesteadBlock      *big.Int `json:"homesteadBlock,omitempty"`
	EIP150Block         *big.Int `json:"eip150Block,omitempty"`
	EIP155Block         *big.Int `json:"eip155Block,omitempty"`
	EIP158Block         *big.Int `json:"eip158Block,omitempty"`
	ByzantiumBlock      *big.Int `json:"byzantiumBlock,omitempty"`
	ConstantinopleBlock *big.Int `json:"constantinopleBlock,omitempty"`
}

// MainnetChainConfig matches the Ethereum mainnet fork schedule up to
// Constantinople.
var MainnetChainConfig = &ChainConfig{
	ChainID:             big.NewInt(1),
	HomesteadBlock:      big.NewInt(1_150_000),
	EIP150Block:         big.NewInt(2_463_000),
	EIP155Block:         big.NewInt(2_675_000),
	EIP158Block:         big.NewInt(2_675_000),
	ByzantiumBlock:      big.NewInt(4_370_000),
	ConstantinopleBlock: big.NewInt(7_280_000),
}

// TestChainConfig has every supported fork active from genesis.
var TestChainConfig = &ChainConfig{
	ChainID:             big.NewInt(1337),
	HomesteadBlock:      big.NewInt(0),
	EIP150Block:         big.NewInt(0),
	EIP155Block:         big.NewInt(0),
	EIP158Block:         big.NewInt(0),
	ByzantiumBlock:      big.NewInt(0),
	ConstantinopleBlock: big.NewInt(0),
}

// FrontierChainConfig never activates any fork.
var FrontierChainConfig = &ChainConfig{ChainID: big.NewInt(1)}

func isForked(fork, num *big.Int) bool {
	if fork == nil || num == nil {
		return false
	}
	return fork.Cmp(num) <= 0
}

// IsHomestead reports whether num is at or past the Homestead fork.
func (c *ChainConfig) IsHomestead(num *big.Int) bool {
	return isForked(c.HomesteadBlock, num)
}

// IsEIP150 reports whether num is at or past Tangerine Whistle.
func (c *ChainConfig) IsEIP150(num *big.Int) bool {
	return isForked(c.EIP150Block, num)
}

// IsEIP155 reports whether num is at or past the replay-protection fork.
func (c *ChainConfig) IsEIP155(num *big.Int) bool {
	return isForked(c.EIP155Block, num)
}

// IsEIP158 reports whether num is at or past Spurious Dragon.
func (c *ChainConfig) IsEIP158(num *big.Int) bool {
	return isForked(c.EIP158Block, num)
}

// IsByzantium reports whether num is at or past Byzantium.
func (c *ChainConfig) IsByzantium(num *big.Int) bool {
	return isForked(c.ByzantiumBlock, num)
}

// IsConstantinople reports whether num is at or past Constantinople.
func (c *ChainConfig) IsConstantinople(num *big.Int) bool {
	return isForked(c.ConstantinopleBlock, num)
}

// Rules derives the VM fork flags at the given block number.
func (c *ChainConfig) Rules(num *big.Int) vm.ForkRules {
	return vm.ForkRules{
		IsHomestead:      c.IsHomestead(num),
		IsEIP150:         c.IsEIP150(num),
		IsEIP155:         c.IsEIP155(num),
		IsEIP158:         c.IsEIP158(num),
		IsByzantium:      c.IsByzantium(num),
		IsConstantinople: c.IsConstantinople(num),
	}
}

// MakeSigner returns the signer matching the signature rules at num.
func (c *ChainConfig) MakeSigner(num *big.Int) types.Signer {
	switch {
	case c.IsEIP155(num):
		return types.NewEIP155Signer(c.ChainID)
	case c.IsHomestead(num):
		return types.HomesteadSigner{}
	default:
		return types.FrontierSigner{}
	}
}

// Block rewards in wei.
var (
	// FrontierBlockReward is the pre-Byzantium static block reward (5 ETH).
	FrontierBlockReward = new(big.Int).Mul(big.NewInt(5), big.NewInt(1e18))
	// ByzantiumBlockReward is the EIP-649 reduced block reward (3 ETH).
	ByzantiumBlockReward = new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18))
)

// BlockReward returns the static block reward at the given height.
func (c *ChainConfig) BlockReward(num *big.Int) *big.Int {
	if c.IsByzantium(num) {
		return ByzantiumBlockReward
	}
	return FrontierBlockReward
}
