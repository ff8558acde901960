package types

import (
	"math/big"
	"sync/atomic"
	"unsafe"
)

// Header represents a block header with the fifteen Yellow Paper fields.
type Header struct {
	ParentHash  Hash
	UncleHash   Hash
	Coinbase    Address
	Root        Hash
	TxHash      Hash
	ReceiptHash Hash
	Bloom       Bloom
	Difficulty  *big.Int
	Number      *big.Int
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixDigest   Hash
	Nonce       BlockNonce

	// Cache fields (not serialized).
	hash atomic.Pointer[Hash]
	size atomic.Uint64
}

// Hash returns the keccak256 hash of the RLP-encoded header.
func (h *Header) Hash() Hash {
	if cached := h.hash.Load(); cached != nil {
		return *cached
	}
	hash := computeHeaderHash(h)
	h.hash.Store(&hash)
	return hash
}

// Size returns the approximate memory footprint of the header in bytes.
func (h *Header) Size() uint64 {
	if cached := h.size.Load(); cached != 0 {
		return cached
	}
	s := unsafe.Sizeof(*h)
	if h.Difficulty != nil {
		s += unsafe.Sizeof(*h.Difficulty)
	}
	if h.Number != nil {
		s += unsafe.Sizeof(*h.Number)
	}
	s += uintptr(len(h.Extra))
	size := uint64(s)
	h.size.Store(size)
	return size
}

// CopyHeader creates a deep copy of a header, dropping the caches.
func CopyHeader(h *Header) *Header {
	cpy := Header{
		ParentHash:  h.ParentHash,
		UncleHash:   h.UncleHash,
		Coinbase:    h.Coinbase,
		Root:        h.Root,
		TxHash:      h.TxHash,
		ReceiptHash: h.ReceiptHash,
		Bloom:       h.Bloom,
		GasLimit:    h.GasLimit,
		GasUsed:     h.GasUsed,
		Time:        h.Time,
		MixDigest:   h.MixDigest,
		Nonce:       h.Nonce,
	}
	if h.Difficulty != nil {
		cpy.Difficulty = new(big.Int).Set(h.Difficulty)
	}
	if h.Number != nil {
		cpy.Number = new(big.Int).Set(h.Number)
	}
	if len(h.Extra) > 0 {
		cpy.Extra = make([]byte, len(h.Extra))
		copy(cpy.Extra, h.Extra)
	}
	return &cpy
}
