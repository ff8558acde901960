package core

import (
	"crypto/ecdsa"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/crypto"
)

// hexKeyCore parses a private key from hex for tests.
func hexKeyCore(h string) (*ecdsa.PrivateKey, error) {
	b := types.FromHex(h)
	if len(b) != 32 {
		return nil, errors.New("bad key length")
	}
	return secp256k1.PrivKeyFromBytes(b).ToECDSA(), nil
}

// addressOfKeyCore derives the sender address of a test key.
func addressOfKeyCore(key *ecdsa.PrivateKey) types.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
