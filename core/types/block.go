package types

import (
	"math/big"
	"sync/atomic"
	"unsafe"
)

// Body contains the transactions and uncle headers of a block.
type Body struct {
	Transactions []*Transaction
	Uncles       []*Header
}

// Block represents a complete block: header plus body.
type Block struct {
	header *Header
	body   Body

	hash atomic.Pointer[Hash]
	size atomic.Uint64
}

// NewBlock creates a new block with the given header and body.
// A nil body is treated as an empty body. The header is deep-copied.
func NewBlock(header *Header, body *Body) *Block {
	b := &Block{header: CopyHeader(header)}
	if body != nil {
		b.body.Transactions = make([]*Transaction, len(body.Transactions))
		copy(b.body.Transactions, body.Transactions)

		b.body.Uncles = make([]*Header, len(body.Uncles))
		for i, uncle := range body.Uncles {
			b.body.Uncles[i] = CopyHeader(uncle)
		}
	}
	return b
}

// Header returns a copy of the block header.
func (b *Block) Header() *Header { return CopyHeader(b.header) }

// Body returns the block body.
func (b *Block) Body() *Body {
	return &Body{Transactions: b.body.Transactions, Uncles: b.body.Uncles}
}

// Transactions returns the block's transactions.
func (b *Block) Transactions() []*Transaction { return b.body.Transactions }

// Uncles returns the block's uncle headers.
func (b *Block) Uncles() []*Header { return b.body.Uncles }

// Number returns the block number.
func (b *Block) Number() *big.Int {
	if b.header.Number == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.header.Number)
}

// NumberU64 returns the block number as uint64.
func (b *Block) NumberU64() uint64 {
	if b.header.Number == nil {
		return 0
	}
	return b.header.Number.Uint64()
}

// GasLimit returns the gas limit of the block.
func (b *Block) GasLimit() uint64 { return b.header.GasLimit }

// GasUsed returns the gas used by the block.
func (b *Block) GasUsed() uint64 { return b.header.GasUsed }

// Time returns the block timestamp.
func (b *Block) Time() uint64 { return b.header.Time }

// Difficulty returns the block difficulty.
func (b *Block) Difficulty() *big.Int {
	if b.header.Difficulty == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.header.Difficulty)
}

// ParentHash returns the parent block hash.
func (b *Block) ParentHash() Hash { return b.header.ParentHash }

// TxHash returns the transactions root hash.
func (b *Block) TxHash() Hash { return b.header.TxHash }

// ReceiptHash returns the receipts root hash.
func (b *Block) ReceiptHash() Hash { return b.header.ReceiptHash }

// UncleHash returns the uncle list hash.
func (b *Block) UncleHash() Hash { return b.header.UncleHash }

// Root returns the state root hash.
func (b *Block) Root() Hash { return b.header.Root }

// Coinbase returns the beneficiary address of the block.
func (b *Block) Coinbase() Address { return b.header.Coinbase }

// Bloom returns the logs bloom of the block.
func (b *Block) Bloom() Bloom { return b.header.Bloom }

// Extra returns the extra data of the block.
func (b *Block) Extra() []byte { return b.header.Extra }

// Hash returns the keccak256 hash of the block header.
func (b *Block) Hash() Hash {
	if cached := b.hash.Load(); cached != nil {
		return *cached
	}
	h := b.header.Hash()
	b.hash.Store(&h)
	return h
}

// Size returns the approximate memory footprint of the block.
func (b *Block) Size() uint64 {
	if cached := b.size.Load(); cached != 0 {
		return cached
	}
	s := unsafe.Sizeof(*b) + unsafe.Sizeof(*b.header)
	for _, tx := range b.body.Transactions {
		s += uintptr(tx.Size())
	}
	for _, uncle := range b.body.Uncles {
		s += uintptr(uncle.Size())
	}
	size := uint64(s)
	b.size.Store(size)
	return size
}

// CalcUncleHash returns keccak256(rlp(uncles)).
func CalcUncleHash(uncles []*Header) Hash {
	if len(uncles) == 0 {
		return EmptyUncleHash
	}
	enc, err := encodeHeaderList(uncles)
	if err != nil {
		return Hash{}
	}
	return keccakHash(enc)
}
