package vm

import (
	"math/big"

	"github.com/ethforge/ethforge/core/types"
	"github.com/holiman/uint256"
)

// Contract is one call frame: the code being executed, the addresses
// involved, and the gas ledger of the frame.
type Contract struct {
	CallerAddress types.Address
	Address       types.Address
	Code          []byte
	CodeHash      types.Hash
	Input         []byte
	Gas           uint64
	Value         *big.Int

	jumpdests map[uint64]bool // cached JUMPDEST analysis
}

// NewContract creates a call frame.
func NewContract(caller, addr types.Address, value *big.Int, gas uint64) *Contract {
	if value == nil {
		value = new(big.Int)
	}
	return &Contract{
		CallerAddress: caller,
		Address:       addr,
		Value:         value,
		Gas:           gas,
	}
}

// GetOp returns the opcode at position n, or STOP past the end of code.
func (c *Contract) GetOp(n uint64) OpCode {
	if n < uint64(len(c.Code)) {
		return OpCode(c.Code[n])
	}
	return STOP
}

// UseGas consumes gas from the frame, reporting whether enough was left.
func (c *Contract) UseGas(gas uint64) bool {
	if c.Gas < gas {
		return false
	}
	c.Gas -= gas
	return true
}

// SetCallCode sets the code executed by the frame. For CALLCODE and
// DELEGATECALL the code comes from a different account than Address.
func (c *Contract) SetCallCode(codeHash types.Hash, code []byte) {
	c.Code = code
	c.CodeHash = codeHash
	c.jumpdests = nil
}

// validJumpdest checks that dest is a JUMPDEST outside of PUSH data.
func (c *Contract) validJumpdest(dest *uint256.Int) bool {
	if !dest.IsUint64() {
		return false
	}
	udest := dest.Uint64()
	if udest >= uint64(len(c.Code)) {
		return false
	}
	if OpCode(c.Code[udest]) != JUMPDEST {
		return false
	}
	return c.isCode(udest)
}

// isCode reports whether the offset holds an opcode rather than PUSH data.
func (c *Contract) isCode(pos uint64) bool {
	if c.jumpdests == nil {
		c.jumpdests = make(map[uint64]bool)
		c.analyzeJumpdests()
	}
	return c.jumpdests[pos]
}

// analyzeJumpdests scans the code for JUMPDEST positions, skipping the
// immediate bytes of PUSH instructions.
func (c *Contract) analyzeJumpdests() {
	for i := uint64(0); i < uint64(len(c.Code)); i++ {
		op := OpCode(c.Code[i])
		if op == JUMPDEST {
			c.jumpdests[i] = true
		}
		if op.IsPush() {
			i += uint64(op - PUSH1 + 1)
		}
	}
}
