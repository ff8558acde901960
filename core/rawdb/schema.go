// Package rawdb lays out the chain storage schema over an ethdb backend:
// headers, bodies, receipts and the canonical number index.
package rawdb

import (
	"encoding/binary"

	"github.com/ethforge/ethforge/core/types"
)

// Database key prefixes. The number is always 8 bytes big-endian so keys of
// one kind sort by height.
var (
	headerPrefix       = []byte("h") // h + num + hash -> header RLP
	headerNumberPrefix = []byte("H") // H + hash -> num
	bodyPrefix         = []byte("b") // b + num + hash -> body RLP
	receiptPrefix      = []byte("r") // r + num + hash -> receipts RLP
	canonicalPrefix    = []byte("c") // c + num -> canonical hash

	headBlockKey = []byte("LastBlock") // -> hash of the head block
)

// encodeBlockNumber encodes a block number as 8 bytes big-endian.
func encodeBlockNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

func headerKey(number uint64, hash types.Hash) []byte {
	return append(append(append([]byte{}, headerPrefix...), encodeBlockNumber(number)...), hash.Bytes()...)
}

func headerNumberKey(hash types.Hash) []byte {
	return append(append([]byte{}, headerNumberPrefix...), hash.Bytes()...)
}

func bodyKey(number uint64, hash types.Hash) []byte {
	return append(append(append([]byte{}, bodyPrefix...), encodeBlockNumber(number)...), hash.Bytes()...)
}

func receiptKey(number uint64, hash types.Hash) []byte {
	return append(append(append([]byte{}, receiptPrefix...), encodeBlockNumber(number)...), hash.Bytes()...)
}

func canonicalKey(number uint64) []byte {
	return append(append([]byte{}, canonicalPrefix...), encodeBlockNumber(number)...)
}
