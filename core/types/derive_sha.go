package types

import "github.com/ethforge/ethforge/rlp"

// DerivableList is a list whose items can be keyed by index in a trie:
// transactions and receipts.
type DerivableList interface {
	Len() int
	EncodeIndex(i int) []byte
}

// TrieHasher is the subset of the trie used for root derivation. The trie
// package implements it; taking an interface here avoids a dependency cycle.
type TrieHasher interface {
	Update(key, value []byte)
	Hash() Hash
}

// DeriveSha computes the root hash of a trie holding the list items keyed
// by their RLP-encoded index, as consumed by the transactionsRoot and
// receiptsRoot header fields.
func DeriveSha(list DerivableList, hasher TrieHasher) Hash {
	for i := 0; i < list.Len(); i++ {
		key, _ := rlp.EncodeToBytes(uint64(i))
		hasher.Update(key, list.EncodeIndex(i))
	}
	return hasher.Hash()
}
