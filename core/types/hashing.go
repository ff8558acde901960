package types

import "golang.org/x/crypto/sha3"

// keccakHash computes the Keccak-256 hash of data as a Hash.
func keccakHash(data []byte) Hash {
	d := sha3.NewLegacyKeccak256()
	d.Write(data)
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}
