package types

import (
	"math/big"

	"github.com/ethforge/ethforge/rlp"
)

// EncodeRLP returns the RLP encoding of the header in Yellow Paper order:
// [ParentHash, UncleHash, Coinbase, Root, TxHash, ReceiptHash, Bloom,
// Difficulty, Number, GasLimit, GasUsed, Time, Extra, MixDigest, Nonce].
func (h *Header) EncodeRLP() ([]byte, error) {
	items := []interface{}{
		h.ParentHash,
		h.UncleHash,
		h.Coinbase,
		h.Root,
		h.TxHash,
		h.ReceiptHash,
		h.Bloom,
		bigIntOrZero(h.Difficulty),
		bigIntOrZero(h.Number),
		h.GasLimit,
		h.GasUsed,
		h.Time,
		h.Extra,
		h.MixDigest,
		h.Nonce,
	}
	return encodeRLPList(items)
}

// encodeRLPList encodes each item and wraps the concatenated payload in a
// list header.
func encodeRLPList(items []interface{}) ([]byte, error) {
	var payload []byte
	for _, item := range items {
		enc, err := rlp.EncodeToBytes(item)
		if err != nil {
			return nil, err
		}
		payload = append(payload, enc...)
	}
	return rlp.WrapList(payload), nil
}

// bigIntOrZero returns v if non-nil, otherwise a zero big.Int.
func bigIntOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// DecodeHeaderRLP decodes an RLP-encoded header.
func DecodeHeaderRLP(data []byte) (*Header, error) {
	s := rlp.NewStreamFromBytes(data)
	if _, err := s.List(); err != nil {
		return nil, err
	}

	h := &Header{}
	var err error

	if err = decodeHash(s, &h.ParentHash); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.UncleHash); err != nil {
		return nil, err
	}
	if err = decodeAddress(s, &h.Coinbase); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.Root); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.TxHash); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.ReceiptHash); err != nil {
		return nil, err
	}
	if err = decodeBloom(s, &h.Bloom); err != nil {
		return nil, err
	}
	if h.Difficulty, err = s.BigInt(); err != nil {
		return nil, err
	}
	if h.Number, err = s.BigInt(); err != nil {
		return nil, err
	}
	if h.GasLimit, err = s.Uint64(); err != nil {
		return nil, err
	}
	if h.GasUsed, err = s.Uint64(); err != nil {
		return nil, err
	}
	if h.Time, err = s.Uint64(); err != nil {
		return nil, err
	}
	if h.Extra, err = s.Bytes(); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.MixDigest); err != nil {
		return nil, err
	}
	if err = decodeBlockNonce(s, &h.Nonce); err != nil {
		return nil, err
	}

	if err = s.ListEnd(); err != nil {
		return nil, err
	}
	return h, nil
}

func decodeHash(s *rlp.Stream, h *Hash) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	copy(h[HashLength-len(b):], b)
	return nil
}

func decodeAddress(s *rlp.Stream, a *Address) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	copy(a[AddressLength-len(b):], b)
	return nil
}

func decodeBloom(s *rlp.Stream, bl *Bloom) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	copy(bl[BloomLength-len(b):], b)
	return nil
}

func decodeBlockNonce(s *rlp.Stream, n *BlockNonce) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	copy(n[NonceLength-len(b):], b)
	return nil
}

// computeHeaderHash computes the Keccak-256 hash of the RLP-encoded header.
func computeHeaderHash(h *Header) Hash {
	enc, err := h.EncodeRLP()
	if err != nil {
		return Hash{}
	}
	return keccakHash(enc)
}
