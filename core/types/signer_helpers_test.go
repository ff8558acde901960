package types

import (
	"crypto/ecdsa"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// hexKey parses a secp256k1 private key from hex for tests.
func hexKey(h string) (*ecdsa.PrivateKey, error) {
	b := FromHex(h)
	if len(b) != 32 {
		return nil, errors.New("bad key length")
	}
	return secp256k1.PrivKeyFromBytes(b).ToECDSA(), nil
}

// addressOfKey derives the address of a private key's public key.
func addressOfKey(key *ecdsa.PrivateKey) Address {
	var buf [65]byte
	buf[0] = 4
	key.PublicKey.X.FillBytes(buf[1:33])
	key.PublicKey.Y.FillBytes(buf[33:65])
	return BytesToAddress(keccakHash(buf[1:]).Bytes()[12:])
}
