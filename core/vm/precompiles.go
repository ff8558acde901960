package vm

import (
	"crypto/sha256"
	"math/big"

	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/crypto"
	"golang.org/x/crypto/ripemd160"
)

// PrecompiledContract is a fixed-address contract implemented natively.
type PrecompiledContract interface {
	// RequiredGas returns the gas charge for running the contract on input.
	RequiredGas(input []byte) uint64
	// Run executes the contract.
	Run(input []byte) ([]byte, error)
}

// PrecompiledContractsFrontier holds the original four precompiles.
var PrecompiledContractsFrontier = map[types.Address]PrecompiledContract{
	types.BytesToAddress([]byte{1}): &ecrecover{},
	types.BytesToAddress([]byte{2}): &sha256hash{},
	types.BytesToAddress([]byte{3}): &ripemd160hash{},
	types.BytesToAddress([]byte{4}): &dataCopy{},
}

// PrecompiledContractsByzantium adds the EIP-198 modular exponentiation
// contract.
var PrecompiledContractsByzantium = map[types.Address]PrecompiledContract{
	types.BytesToAddress([]byte{1}): &ecrecover{},
	types.BytesToAddress([]byte{2}): &sha256hash{},
	types.BytesToAddress([]byte{3}): &ripemd160hash{},
	types.BytesToAddress([]byte{4}): &dataCopy{},
	types.BytesToAddress([]byte{5}): &bigModExp{},
}

// ActivePrecompiles returns the precompile set for the given fork rules.
func ActivePrecompiles(rules ForkRules) map[types.Address]PrecompiledContract {
	if rules.IsByzantium {
		return PrecompiledContractsByzantium
	}
	return PrecompiledContractsFrontier
}

// RunPrecompiledContract executes a precompile. If the forwarded gas does
// not cover the cost, all of it is consumed and the call fails with no
// output.
func RunPrecompiledContract(p PrecompiledContract, input []byte, gas uint64) ([]byte, uint64, error) {
	gasCost := p.RequiredGas(input)
	if gas < gasCost {
		return nil, 0, ErrOutOfGas
	}
	output, err := p.Run(input)
	if err != nil {
		return nil, 0, err
	}
	return output, gas - gasCost, nil
}

// wordCount returns the number of 32-byte words covering n bytes.
func wordCount(n int) uint64 {
	return uint64(n+31) / 32
}

// rightPad returns input zero-padded on the right to at least n bytes.
func rightPad(input []byte, n int) []byte {
	if len(input) >= n {
		return input
	}
	out := make([]byte, n)
	copy(out, input)
	return out
}

// --- 0x01: ECRECOVER ---

type ecrecover struct{}

func (c *ecrecover) RequiredGas(input []byte) uint64 {
	return 3000
}

// Run recovers the signing address from {hash, v, r, s}. Any malformed
// signature yields empty output with no error, per the Yellow Paper.
func (c *ecrecover) Run(input []byte) ([]byte, error) {
	input = rightPad(input, 128)

	hash := input[0:32]
	v := new(big.Int).SetBytes(input[32:64])
	r := new(big.Int).SetBytes(input[64:96])
	s := new(big.Int).SetBytes(input[96:128])

	if v.BitLen() > 8 {
		return nil, nil
	}
	vByte := byte(v.Uint64())
	if vByte != 27 && vByte != 28 {
		return nil, nil
	}
	if !crypto.ValidateSignatureValues(vByte-27, r, s, false) {
		return nil, nil
	}

	sig := make([]byte, 65)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])
	sig[64] = vByte - 27

	pub, err := crypto.Ecrecover(hash, sig)
	if err != nil {
		return nil, nil
	}

	result := make([]byte, 32)
	copy(result[12:], crypto.Keccak256(pub[1:])[12:])
	return result, nil
}

// --- 0x02: SHA256 ---

type sha256hash struct{}

func (c *sha256hash) RequiredGas(input []byte) uint64 {
	return 60 + 12*wordCount(len(input))
}

func (c *sha256hash) Run(input []byte) ([]byte, error) {
	h := sha256.Sum256(input)
	return h[:], nil
}

// --- 0x03: RIPEMD160 ---

type ripemd160hash struct{}

func (c *ripemd160hash) RequiredGas(input []byte) uint64 {
	return 600 + 120*wordCount(len(input))
}

func (c *ripemd160hash) Run(input []byte) ([]byte, error) {
	h := ripemd160.New()
	h.Write(input)
	result := make([]byte, 32)
	copy(result[12:], h.Sum(nil))
	return result, nil
}

// --- 0x04: IDENTITY ---

type dataCopy struct{}

func (c *dataCopy) RequiredGas(input []byte) uint64 {
	return 15 + 3*wordCount(len(input))
}

func (c *dataCopy) Run(input []byte) ([]byte, error) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}

// --- 0x05: MODEXP (EIP-198, Byzantium) ---

type bigModExp struct{}

func (c *bigModExp) RequiredGas(input []byte) uint64 {
	header := rightPad(input, 96)
	baseLen := new(big.Int).SetBytes(header[0:32])
	expLen := new(big.Int).SetBytes(header[32:64])
	modLen := new(big.Int).SetBytes(header[64:96])

	if !baseLen.IsUint64() || !expLen.IsUint64() || !modLen.IsUint64() {
		return ^uint64(0)
	}

	// Adjusted exponent length per EIP-198.
	var expHead *big.Int
	body := input
	if len(body) > 96 {
		body = body[96:]
	} else {
		body = nil
	}
	if baseLen.Uint64() < uint64(len(body)) {
		expBytes := body[baseLen.Uint64():]
		if uint64(len(expBytes)) > 32 {
			expBytes = expBytes[:32]
		}
		expHead = new(big.Int).SetBytes(expBytes)
	} else {
		expHead = new(big.Int)
	}

	adjExpLen := new(big.Int)
	if expLen.Uint64() > 32 {
		adjExpLen.SetUint64(8 * (expLen.Uint64() - 32))
	}
	if bitlen := expHead.BitLen(); bitlen > 0 {
		adjExpLen.Add(adjExpLen, big.NewInt(int64(bitlen-1)))
	}
	if adjExpLen.Sign() == 0 {
		adjExpLen.SetInt64(1)
	}

	maxLen := baseLen.Uint64()
	if modLen.Uint64() > maxLen {
		maxLen = modLen.Uint64()
	}
	gas := multComplexity(maxLen)
	gas, overflow := safeMul(gas, adjExpLen.Uint64())
	if overflow {
		return ^uint64(0)
	}
	return gas / 20
}

// multComplexity is the EIP-198 multiplication complexity function.
func multComplexity(x uint64) uint64 {
	switch {
	case x <= 64:
		return x * x
	case x <= 1024:
		return x*x/4 + 96*x - 3072
	default:
		return x*x/16 + 480*x - 199680
	}
}

func (c *bigModExp) Run(input []byte) ([]byte, error) {
	header := rightPad(input, 96)
	baseLen := new(big.Int).SetBytes(header[0:32]).Uint64()
	expLen := new(big.Int).SetBytes(header[32:64]).Uint64()
	modLen := new(big.Int).SetBytes(header[64:96]).Uint64()

	if baseLen == 0 && modLen == 0 {
		return []byte{}, nil
	}

	var body []byte
	if len(input) > 96 {
		body = input[96:]
	}
	body = rightPad(body, int(baseLen+expLen+modLen))

	base := new(big.Int).SetBytes(body[:baseLen])
	exp := new(big.Int).SetBytes(body[baseLen : baseLen+expLen])
	mod := new(big.Int).SetBytes(body[baseLen+expLen : baseLen+expLen+modLen])

	result := make([]byte, modLen)
	if mod.Sign() == 0 {
		return result, nil
	}
	new(big.Int).Exp(base, exp, mod).FillBytes(result)
	return result, nil
}
