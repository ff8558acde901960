package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethforge/ethforge/core/types"
)

// Header validation parameters.
const (
	// MaxExtraDataSize bounds the header extra-data field.
	MaxExtraDataSize = 32
	// GasLimitBoundDivisor bounds the per-block gas limit delta.
	GasLimitBoundDivisor uint64 = 1024
	// MinGasLimit is the floor of the block gas limit.
	MinGasLimit uint64 = 5000
	// maxUncles is the number of uncles allowed in a single block.
	maxUncles = 2
	// uncleDepthLimit is how many generations back an uncle may reach.
	uncleDepthLimit = 6
)

var (
	ErrUnknownParent      = errors.New("unknown parent")
	ErrInvalidNumber      = errors.New("invalid block number")
	ErrInvalidTimestamp   = errors.New("timestamp not after parent")
	ErrInvalidDifficulty  = errors.New("invalid difficulty")
	ErrInvalidGasLimit    = errors.New("invalid gas limit")
	ErrGasUsedOverLimit   = errors.New("gas used above gas limit")
	ErrExtraDataTooLong   = errors.New("extra data too long")
	ErrInvalidTxRoot      = errors.New("transaction root mismatch")
	ErrInvalidUncleHash   = errors.New("uncle hash mismatch")
	ErrTooManyUncles      = errors.New("too many uncles")
	ErrDuplicateUncle     = errors.New("duplicate uncle")
	ErrUncleIsAncestor    = errors.New("uncle is an ancestor")
	ErrDanglingUncle      = errors.New("uncle's parent is not an ancestor")
	ErrInvalidSeal        = errors.New("invalid proof-of-work seal")
)

// HeaderReader provides ancestor headers to the validators.
type HeaderReader interface {
	// GetHeader returns the header with the given hash and number, or nil.
	GetHeader(hash types.Hash, number uint64) *types.Header
}

// SealVerifier checks the proof-of-work seal of a header. Mining is out of
// scope here, so the engine takes the verifier as a collaborator.
type SealVerifier interface {
	VerifySeal(header *types.Header) error
}

// HeaderValidator validates a header against its parent.
type HeaderValidator interface {
	ValidateHeader(header, parent *types.Header) error
}

// BodyValidator checks the consistency of a block's header with its body.
type BodyValidator interface {
	ValidateBody(block *types.Block) error
}

// OmmersValidator validates a block's uncles against the chain.
type OmmersValidator interface {
	ValidateOmmers(block *types.Block, chain HeaderReader) error
}

// Validators bundles the validation strategies the block executor runs.
type Validators struct {
	Header HeaderValidator
	Body   BodyValidator
	Ommers OmmersValidator
}

// DefaultValidators returns the consensus validators for the given chain
// configuration and seal verifier. A nil verifier accepts any seal.
func DefaultValidators(config *ChainConfig, seal SealVerifier) Validators {
	return Validators{
		Header: &headerValidator{config: config, seal: seal},
		Body:   &bodyValidator{},
		Ommers: &ommersValidator{config: config, seal: seal},
	}
}

type headerValidator struct {
	config *ChainConfig
	seal   SealVerifier
}

func (v *headerValidator) ValidateHeader(header, parent *types.Header) error {
	if header.Number == nil || parent.Number == nil ||
		header.Number.Cmp(new(big.Int).Add(parent.Number, big.NewInt(1))) != 0 {
		return ErrInvalidNumber
	}
	if header.Time <= parent.Time {
		return ErrInvalidTimestamp
	}
	if len(header.Extra) > MaxExtraDataSize {
		return fmt.Errorf("%w: %d bytes", ErrExtraDataTooLong, len(header.Extra))
	}

	expected := CalcDifficulty(v.config, header.Time, parent)
	if header.Difficulty == nil || header.Difficulty.Cmp(expected) != 0 {
		return fmt.Errorf("%w: have %v, want %v", ErrInvalidDifficulty, header.Difficulty, expected)
	}

	if err := validateGasLimit(header.GasLimit, parent.GasLimit); err != nil {
		return err
	}
	if header.GasUsed > header.GasLimit {
		return fmt.Errorf("%w: used %d, limit %d", ErrGasUsedOverLimit, header.GasUsed, header.GasLimit)
	}

	if v.seal != nil {
		if err := v.seal.VerifySeal(header); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSeal, err)
		}
	}
	return nil
}

// validateGasLimit enforces the 1/1024 adjustment bound and the minimum.
func validateGasLimit(gasLimit, parentGasLimit uint64) error {
	var diff uint64
	if gasLimit > parentGasLimit {
		diff = gasLimit - parentGasLimit
	} else {
		diff = parentGasLimit - gasLimit
	}
	if diff >= parentGasLimit/GasLimitBoundDivisor {
		return fmt.Errorf("%w: have %d, parent %d", ErrInvalidGasLimit, gasLimit, parentGasLimit)
	}
	if gasLimit < MinGasLimit {
		return fmt.Errorf("%w: %d below minimum", ErrInvalidGasLimit, gasLimit)
	}
	return nil
}

type bodyValidator struct{}

func (v *bodyValidator) ValidateBody(block *types.Block) error {
	header := block.Header()
	if hash := types.CalcUncleHash(block.Uncles()); hash != header.UncleHash {
		return fmt.Errorf("%w: have %v, want %v", ErrInvalidUncleHash, hash, header.UncleHash)
	}
	if hash := DeriveTxsRoot(block.Transactions()); hash != header.TxHash {
		return fmt.Errorf("%w: have %v, want %v", ErrInvalidTxRoot, hash, header.TxHash)
	}
	return nil
}

type ommersValidator struct {
	config *ChainConfig
	seal   SealVerifier
}

// ValidateOmmers checks every uncle: at most two per block, no duplicates,
// neither the block itself nor one of its last six ancestors, a parent among
// those ancestors, and a valid header in its own right. Only ancestor
// headers are consulted, so an uncle already included by an earlier block
// is not detected.
func (v *ommersValidator) ValidateOmmers(block *types.Block, chain HeaderReader) error {
	uncles := block.Uncles()
	if len(uncles) > maxUncles {
		return ErrTooManyUncles
	}
	if len(uncles) == 0 {
		return nil
	}

	// Gather the previous generations: the ancestor headers by hash. The
	// ancestors and the block itself count as already included; the uncles
	// those ancestors carried are not loaded.
	ancestors := make(map[types.Hash]*types.Header)
	included := make(map[types.Hash]struct{})

	parentHash, number := block.ParentHash(), block.NumberU64()
	for i := 0; i < uncleDepthLimit; i++ {
		if number == 0 {
			break
		}
		number--
		ancestor := chain.GetHeader(parentHash, number)
		if ancestor == nil {
			break
		}
		ancestors[ancestor.Hash()] = ancestor
		included[ancestor.Hash()] = struct{}{}
		parentHash = ancestor.ParentHash
	}
	included[block.Hash()] = struct{}{}

	seen := make(map[types.Hash]struct{})
	for _, uncle := range uncles {
		hash := uncle.Hash()
		if _, ok := seen[hash]; ok {
			return fmt.Errorf("%w: %v", ErrDuplicateUncle, hash)
		}
		seen[hash] = struct{}{}
		if _, ok := included[hash]; ok {
			return fmt.Errorf("%w: %v", ErrUncleIsAncestor, hash)
		}
		uncleParent, ok := ancestors[uncle.ParentHash]
		if !ok {
			return fmt.Errorf("%w: %v", ErrDanglingUncle, hash)
		}
		hv := headerValidator{config: v.config, seal: v.seal}
		if err := hv.ValidateHeader(uncle, uncleParent); err != nil {
			return fmt.Errorf("invalid uncle %v: %w", hash, err)
		}
	}
	return nil
}

// Difficulty calculation parameters.
var (
	difficultyBoundDivisor = big.NewInt(2048)
	minimumDifficulty      = big.NewInt(131072)
	expDiffPeriod          = big.NewInt(100000)

	big1       = big.NewInt(1)
	big2       = big.NewInt(2)
	big9       = big.NewInt(9)
	big10      = big.NewInt(10)
	big13      = big.NewInt(13)
	bigMinus99 = big.NewInt(-99)
)

// CalcDifficulty returns the canonical difficulty of a block built on
// parent at the given time, per the fork rules in effect.
func CalcDifficulty(config *ChainConfig, time uint64, parent *types.Header) *big.Int {
	next := new(big.Int).Add(parent.Number, big1)
	switch {
	case config.IsByzantium(next):
		return calcDifficultyByzantium(time, parent)
	case config.IsHomestead(next):
		return calcDifficultyHomestead(time, parent)
	default:
		return calcDifficultyFrontier(time, parent)
	}
}

// calcDifficultyFrontier: adjust by parent/2048 up when the block came
// faster than 13s, down otherwise, plus the difficulty bomb.
func calcDifficultyFrontier(time uint64, parent *types.Header) *big.Int {
	diff := new(big.Int)
	adjust := new(big.Int).Div(parent.Difficulty, difficultyBoundDivisor)

	bigTime := new(big.Int).SetUint64(time)
	bigParentTime := new(big.Int).SetUint64(parent.Time)

	if bigTime.Sub(bigTime, bigParentTime).Cmp(big13) < 0 {
		diff.Add(parent.Difficulty, adjust)
	} else {
		diff.Sub(parent.Difficulty, adjust)
	}
	if diff.Cmp(minimumDifficulty) < 0 {
		diff.Set(minimumDifficulty)
	}
	addDifficultyBomb(diff, new(big.Int).Add(parent.Number, big1))
	return diff
}

// calcDifficultyHomestead: EIP-2 continuous adjustment,
// max(1 - (time - parentTime) // 10, -99).
func calcDifficultyHomestead(time uint64, parent *types.Header) *big.Int {
	adjust := new(big.Int).SetUint64(time - parent.Time)
	adjust.Div(adjust, big10)
	adjust.Sub(big1, adjust)
	if adjust.Cmp(bigMinus99) < 0 {
		adjust.Set(bigMinus99)
	}

	diff := new(big.Int).Div(parent.Difficulty, difficultyBoundDivisor)
	diff.Mul(diff, adjust)
	diff.Add(diff, parent.Difficulty)
	if diff.Cmp(minimumDifficulty) < 0 {
		diff.Set(minimumDifficulty)
	}
	addDifficultyBomb(diff, new(big.Int).Add(parent.Number, big1))
	return diff
}

// calcDifficultyByzantium: Homestead adjustment over uncle-aware parent
// time, with the bomb delayed by three million blocks (EIP-649).
func calcDifficultyByzantium(time uint64, parent *types.Header) *big.Int {
	adjust := new(big.Int).SetUint64(time - parent.Time)
	adjust.Div(adjust, big9)
	if parent.UncleHash == types.EmptyUncleHash {
		adjust.Sub(big1, adjust)
	} else {
		adjust.Sub(big2, adjust)
	}
	if adjust.Cmp(bigMinus99) < 0 {
		adjust.Set(bigMinus99)
	}

	diff := new(big.Int).Div(parent.Difficulty, difficultyBoundDivisor)
	diff.Mul(diff, adjust)
	diff.Add(diff, parent.Difficulty)
	if diff.Cmp(minimumDifficulty) < 0 {
		diff.Set(minimumDifficulty)
	}

	// EIP-649: the bomb acts on a block number pushed back three million.
	fakeNumber := new(big.Int)
	if parent.Number.Cmp(big.NewInt(2_999_999)) >= 0 {
		fakeNumber.Sub(parent.Number, big.NewInt(2_999_999))
	}
	addDifficultyBomb(diff, fakeNumber.Add(fakeNumber, big1))
	return diff
}

// addDifficultyBomb adds 2^(number/100000 - 2) for periods beyond the
// first.
func addDifficultyBomb(diff, number *big.Int) {
	period := new(big.Int).Div(number, expDiffPeriod)
	if period.Cmp(big1) > 0 {
		bomb := new(big.Int).Sub(period, big2)
		bomb.Exp(big2, bomb, nil)
		diff.Add(diff, bomb)
	}
}
