package crypto

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	decdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethforge/ethforge/core/types"
)

// SignatureLength is the byte length of an Ethereum signature: R || S || V.
const SignatureLength = 65

// secp256k1N is the order of the secp256k1 curve.
var secp256k1N = secp256k1.S256().Params().N

// secp256k1halfN is half the curve order, used for the Homestead low-S check.
var secp256k1halfN = new(big.Int).Rsh(secp256k1N, 1)

var (
	ErrInvalidSignatureLen = errors.New("crypto: signature must be 65 bytes [R || S || V]")
	ErrInvalidHashLen      = errors.New("crypto: message hash must be 32 bytes")
	ErrInvalidRecoveryID   = errors.New("crypto: invalid recovery id")
)

// GenerateKey generates a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	prv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return prv.ToECDSA(), nil
}

// Sign calculates a recoverable ECDSA signature over hash. The produced
// signature is 65 bytes in [R || S || V] format where V is 0 or 1.
func Sign(hash []byte, prv *ecdsa.PrivateKey) ([]byte, error) {
	if len(hash) != 32 {
		return nil, ErrInvalidHashLen
	}
	if prv == nil || prv.D == nil {
		return nil, errors.New("crypto: nil private key")
	}
	var keyBytes [32]byte
	prv.D.FillBytes(keyBytes[:])
	key := secp256k1.PrivKeyFromBytes(keyBytes[:])
	defer key.Zero()

	// SignCompact returns [V || R || S] with the legacy 27/28 V offset.
	compact := decdsa.SignCompact(key, hash, false)
	sig := make([]byte, SignatureLength)
	copy(sig[:64], compact[1:])
	sig[64] = compact[0] - 27
	return sig, nil
}

// Ecrecover recovers the 65-byte uncompressed public key that produced the
// given signature over hash.
func Ecrecover(hash, sig []byte) ([]byte, error) {
	pub, err := sigToPubKey(hash, sig)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed(), nil
}

// SigToPub recovers the public key from hash and signature.
func SigToPub(hash, sig []byte) (*ecdsa.PublicKey, error) {
	pub, err := sigToPubKey(hash, sig)
	if err != nil {
		return nil, err
	}
	return pub.ToECDSA(), nil
}

func sigToPubKey(hash, sig []byte) (*secp256k1.PublicKey, error) {
	if len(sig) != SignatureLength {
		return nil, ErrInvalidSignatureLen
	}
	if len(hash) != 32 {
		return nil, ErrInvalidHashLen
	}
	if sig[64] >= 4 {
		return nil, ErrInvalidRecoveryID
	}
	// Convert from Ethereum [R || S || V] to decred's [V || R || S].
	compact := make([]byte, SignatureLength)
	compact[0] = sig[64] + 27
	copy(compact[1:], sig[:64])
	pub, _, err := decdsa.RecoverCompact(compact, hash)
	return pub, err
}

// VerifySignature checks that the given public key created the 64-byte
// signature (R || S, no recovery id) over hash.
func VerifySignature(pubkey, hash, sig []byte) bool {
	if len(sig) != 64 || len(hash) != 32 {
		return false
	}
	pub, err := secp256k1.ParsePubKey(pubkey)
	if err != nil {
		return false
	}
	var r, s secp256k1.ModNScalar
	if r.SetByteSlice(sig[:32]) || s.SetByteSlice(sig[32:64]) {
		return false // overflow
	}
	return decdsa.NewSignature(&r, &s).Verify(hash, pub)
}

// ValidateSignatureValues checks r, s, v for validity. If homestead is true,
// s must be in the lower half of the curve order (EIP-2).
func ValidateSignatureValues(v byte, r, s *big.Int, homestead bool) bool {
	if r == nil || s == nil {
		return false
	}
	if v > 1 {
		return false
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return false
	}
	if r.Cmp(secp256k1N) >= 0 || s.Cmp(secp256k1N) >= 0 {
		return false
	}
	if homestead && s.Cmp(secp256k1halfN) > 0 {
		return false
	}
	return true
}

// PubkeyToAddress derives the Ethereum address from a public key:
// Keccak256(pubkey[1:])[12:].
func PubkeyToAddress(p ecdsa.PublicKey) types.Address {
	pubBytes := FromECDSAPub(&p)
	if pubBytes == nil {
		return types.Address{}
	}
	return types.BytesToAddress(Keccak256(pubBytes[1:])[12:])
}

// FromECDSAPub marshals a public key to 65-byte uncompressed format.
func FromECDSAPub(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	buf := make([]byte, 65)
	buf[0] = 0x04
	pub.X.FillBytes(buf[1:33])
	pub.Y.FillBytes(buf[33:65])
	return buf
}

// HexToECDSA parses a secp256k1 private key from a hex string.
func HexToECDSA(hexkey string) (*ecdsa.PrivateKey, error) {
	b := types.FromHex(hexkey)
	if len(b) != 32 {
		return nil, errors.New("crypto: private key must be 32 bytes")
	}
	key := secp256k1.PrivKeyFromBytes(b)
	if key.Key.IsZero() {
		return nil, errors.New("crypto: invalid private key")
	}
	return key.ToECDSA(), nil
}
