package types

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	decdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	lru "github.com/hashicorp/golang-lru/v2"
)

// senderCacheSize bounds the global recovered-sender cache.
const senderCacheSize = 4096

// senderCache maps transaction hash to the recovered sender. Recovery is the
// most expensive part of transaction validation, so the result is shared
// across decoded copies of the same transaction.
var senderCache, _ = lru.New[Hash, sigCache](senderCacheSize)

var (
	ErrTxChainID = errors.New("invalid chain id for signer")
)

// Signer derives senders and encodes signature values for a given set of
// signature rules (Frontier, Homestead, or EIP-155).
type Signer interface {
	// Sender recovers the sender address of the transaction.
	Sender(tx *Transaction) (Address, error)
	// SignatureValues converts a 65-byte [R || S || V] signature into the
	// transaction's v, r, s values.
	SignatureValues(tx *Transaction, sig []byte) (r, s, v *big.Int, err error)
	// Hash returns the hash signed by the sender.
	Hash(tx *Transaction) Hash
	// Equal reports whether the given signer has the same rules.
	Equal(Signer) bool
}

// Sender recovers the transaction sender through the per-transaction and
// global caches.
func Sender(signer Signer, tx *Transaction) (Address, error) {
	if sc := tx.from.Load(); sc != nil && sc.signer.Equal(signer) {
		return sc.from, nil
	}
	if sc, ok := senderCache.Get(tx.Hash()); ok && sc.signer.Equal(signer) {
		tx.from.Store(&sc)
		return sc.from, nil
	}

	addr, err := signer.Sender(tx)
	if err != nil {
		return Address{}, err
	}
	sc := sigCache{signer: signer, from: addr}
	tx.from.Store(&sc)
	senderCache.Add(tx.Hash(), sc)
	return addr, nil
}

// SignTx signs the transaction with the given private key.
func SignTx(tx *Transaction, signer Signer, prv *ecdsa.PrivateKey) (*Transaction, error) {
	h := signer.Hash(tx)
	sig, err := signHash(h[:], prv)
	if err != nil {
		return nil, err
	}
	return tx.WithSignature(signer, sig)
}

// FrontierSigner implements the original pre-Homestead signature rules.
type FrontierSigner struct{}

func (fs FrontierSigner) Equal(s2 Signer) bool {
	_, ok := s2.(FrontierSigner)
	return ok
}

func (fs FrontierSigner) Hash(tx *Transaction) Hash {
	return rlpHash(tx.sigHashFields(nil))
}

func (fs FrontierSigner) Sender(tx *Transaction) (Address, error) {
	v, r, s := tx.RawSignatureValues()
	return recoverPlain(fs.Hash(tx), r, s, v, false)
}

func (fs FrontierSigner) SignatureValues(tx *Transaction, sig []byte) (r, s, v *big.Int, err error) {
	if len(sig) != 65 {
		return nil, nil, nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:64])
	v = new(big.Int).SetBytes([]byte{sig[64] + 27})
	return r, s, v, nil
}

// HomesteadSigner adds the EIP-2 low-S rule to the Frontier scheme.
type HomesteadSigner struct{ FrontierSigner }

func (hs HomesteadSigner) Equal(s2 Signer) bool {
	_, ok := s2.(HomesteadSigner)
	return ok
}

func (hs HomesteadSigner) Sender(tx *Transaction) (Address, error) {
	v, r, s := tx.RawSignatureValues()
	return recoverPlain(hs.Hash(tx), r, s, v, true)
}

// EIP155Signer implements replay-protected signatures bound to a chain id:
// v = chainID*2 + 35 + parity.
type EIP155Signer struct {
	chainID    *big.Int
	chainIDMul *big.Int
}

// NewEIP155Signer creates a signer bound to the given chain id.
func NewEIP155Signer(chainID *big.Int) EIP155Signer {
	if chainID == nil {
		chainID = new(big.Int)
	}
	return EIP155Signer{
		chainID:    chainID,
		chainIDMul: new(big.Int).Mul(chainID, big.NewInt(2)),
	}
}

func (es EIP155Signer) Equal(s2 Signer) bool {
	eip155, ok := s2.(EIP155Signer)
	return ok && eip155.chainID.Cmp(es.chainID) == 0
}

func (es EIP155Signer) Hash(tx *Transaction) Hash {
	return rlpHash(tx.sigHashFields(es.chainID))
}

func (es EIP155Signer) Sender(tx *Transaction) (Address, error) {
	if !tx.Protected() {
		return HomesteadSigner{}.Sender(tx)
	}
	if tx.ChainID().Cmp(es.chainID) != 0 {
		return Address{}, fmt.Errorf("%w: have %d want %d", ErrTxChainID, tx.ChainID(), es.chainID)
	}
	v, r, s := tx.RawSignatureValues()
	v = new(big.Int).Sub(v, es.chainIDMul)
	v.Sub(v, big.NewInt(8)) // 35 - 27
	return recoverPlain(es.Hash(tx), r, s, v, true)
}

func (es EIP155Signer) SignatureValues(tx *Transaction, sig []byte) (r, s, v *big.Int, err error) {
	r, s, v, err = FrontierSigner{}.SignatureValues(tx, sig)
	if err != nil {
		return nil, nil, nil, err
	}
	if es.chainID.Sign() != 0 {
		v = big.NewInt(int64(sig[64] + 35))
		v.Add(v, es.chainIDMul)
	}
	return r, s, v, nil
}

// recoverPlain recovers the sender from a signature hash with v normalized
// to the 27/28 legacy convention.
func recoverPlain(sighash Hash, r, s, v *big.Int, homestead bool) (Address, error) {
	if v == nil || v.BitLen() > 8 {
		return Address{}, ErrInvalidSig
	}
	recID := byte(v.Uint64() - 27)
	if !validateSignatureValues(recID, r, s, homestead) {
		return Address{}, ErrInvalidSig
	}
	// Assemble the 65-byte [R || S || V] signature.
	sig := make([]byte, 65)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])
	sig[64] = recID

	pub, err := recoverPubkey(sighash[:], sig)
	if err != nil {
		return Address{}, err
	}
	if len(pub) == 0 || pub[0] != 4 {
		return Address{}, errors.New("invalid public key")
	}
	return BytesToAddress(keccakHash(pub[1:]).Bytes()[12:]), nil
}

// --- secp256k1 plumbing ---
//
// The types package cannot import the crypto package (crypto depends on
// types), so the low-level recovery is wired to decred's secp256k1 directly.

var (
	secpN     = secp256k1.S256().Params().N
	secpHalfN = new(big.Int).Rsh(secpN, 1)
)

func validateSignatureValues(v byte, r, s *big.Int, homestead bool) bool {
	if r == nil || s == nil || v > 1 {
		return false
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return false
	}
	if r.Cmp(secpN) >= 0 || s.Cmp(secpN) >= 0 {
		return false
	}
	if homestead && s.Cmp(secpHalfN) > 0 {
		return false
	}
	return true
}

func recoverPubkey(hash, sig []byte) ([]byte, error) {
	compact := make([]byte, 65)
	compact[0] = sig[64] + 27
	copy(compact[1:], sig[:64])
	pub, _, err := decdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed(), nil
}

func signHash(hash []byte, prv *ecdsa.PrivateKey) ([]byte, error) {
	if prv == nil || prv.D == nil {
		return nil, errors.New("nil private key")
	}
	var keyBytes [32]byte
	prv.D.FillBytes(keyBytes[:])
	key := secp256k1.PrivKeyFromBytes(keyBytes[:])
	defer key.Zero()

	compact := decdsa.SignCompact(key, hash, false)
	sig := make([]byte, 65)
	copy(sig[:64], compact[1:])
	sig[64] = compact[0] - 27
	return sig, nil
}
