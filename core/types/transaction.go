package types

import (
	"errors"
	"math/big"
	"sync/atomic"
)

var (
	// ErrInvalidSig is returned when a transaction carries malformed
	// signature values.
	ErrInvalidSig = errors.New("invalid transaction v, r, s values")
)

// Transaction is a signed transaction. The payload is immutable after
// construction; derived values (hash, sender) are cached.
type Transaction struct {
	inner txdata

	hash atomic.Pointer[Hash]
	size atomic.Uint64
	from atomic.Pointer[sigCache]
}

// txdata is the consensus content of a transaction:
// [nonce, gasPrice, gasLimit, to, value, data, v, r, s].
type txdata struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *Address // nil means contract creation
	Value    *big.Int
	Data     []byte
	V, R, S  *big.Int
}

// sigCache caches a derived sender along with the signer used to derive it.
type sigCache struct {
	signer Signer
	from   Address
}

// NewTransaction creates an unsigned message-call transaction.
func NewTransaction(nonce uint64, to Address, value *big.Int, gasLimit uint64, gasPrice *big.Int, data []byte) *Transaction {
	return newTransaction(nonce, &to, value, gasLimit, gasPrice, data)
}

// NewContractCreation creates an unsigned contract-creation transaction.
func NewContractCreation(nonce uint64, value *big.Int, gasLimit uint64, gasPrice *big.Int, data []byte) *Transaction {
	return newTransaction(nonce, nil, value, gasLimit, gasPrice, data)
}

func newTransaction(nonce uint64, to *Address, value *big.Int, gasLimit uint64, gasPrice *big.Int, data []byte) *Transaction {
	d := txdata{
		Nonce: nonce,
		Gas:   gasLimit,
		To:    copyAddressPtr(to),
		Data:  copyBytes(data),
		V:     new(big.Int),
		R:     new(big.Int),
		S:     new(big.Int),
	}
	if value != nil {
		d.Value = new(big.Int).Set(value)
	} else {
		d.Value = new(big.Int)
	}
	if gasPrice != nil {
		d.GasPrice = new(big.Int).Set(gasPrice)
	} else {
		d.GasPrice = new(big.Int)
	}
	return &Transaction{inner: d}
}

// Nonce returns the sender nonce of the transaction.
func (tx *Transaction) Nonce() uint64 { return tx.inner.Nonce }

// Gas returns the gas limit of the transaction.
func (tx *Transaction) Gas() uint64 { return tx.inner.Gas }

// GasPrice returns the gas price of the transaction.
func (tx *Transaction) GasPrice() *big.Int { return new(big.Int).Set(tx.inner.GasPrice) }

// Value returns the ether amount of the transaction.
func (tx *Transaction) Value() *big.Int { return new(big.Int).Set(tx.inner.Value) }

// Data returns the input payload of the transaction.
func (tx *Transaction) Data() []byte { return tx.inner.Data }

// To returns the recipient address, or nil for contract creation.
func (tx *Transaction) To() *Address { return copyAddressPtr(tx.inner.To) }

// RawSignatureValues returns the raw V, R, S signature values.
func (tx *Transaction) RawSignatureValues() (v, r, s *big.Int) {
	return tx.inner.V, tx.inner.R, tx.inner.S
}

// Protected reports whether the transaction is replay-protected (EIP-155).
func (tx *Transaction) Protected() bool {
	v := tx.inner.V
	if v == nil {
		return false
	}
	// 27/28 are the unprotected legacy values.
	return v.Cmp(big.NewInt(27)) != 0 && v.Cmp(big.NewInt(28)) != 0 && v.Sign() != 0
}

// ChainID derives the chain id from the signature V value, or zero for
// unprotected transactions.
func (tx *Transaction) ChainID() *big.Int {
	return deriveChainID(tx.inner.V)
}

// Cost returns gasPrice * gasLimit + value, the maximum the sender pays.
func (tx *Transaction) Cost() *big.Int {
	total := new(big.Int).Mul(tx.inner.GasPrice, new(big.Int).SetUint64(tx.inner.Gas))
	return total.Add(total, tx.inner.Value)
}

// Hash returns the keccak256 hash of the RLP-encoded signed transaction.
func (tx *Transaction) Hash() Hash {
	if cached := tx.hash.Load(); cached != nil {
		return *cached
	}
	h := rlpHash(tx.rlpFields())
	tx.hash.Store(&h)
	return h
}

// Size returns the length of the RLP-encoded transaction in bytes.
func (tx *Transaction) Size() uint64 {
	if cached := tx.size.Load(); cached != 0 {
		return cached
	}
	enc, _ := tx.EncodeRLP()
	size := uint64(len(enc))
	tx.size.Store(size)
	return size
}

// WithSignature returns a copy of the transaction with the signature set
// from the given signer and 65-byte [R || S || V] signature.
func (tx *Transaction) WithSignature(signer Signer, sig []byte) (*Transaction, error) {
	r, s, v, err := signer.SignatureValues(tx, sig)
	if err != nil {
		return nil, err
	}
	cpy := &Transaction{inner: tx.inner}
	cpy.inner.Data = copyBytes(tx.inner.Data)
	cpy.inner.To = copyAddressPtr(tx.inner.To)
	cpy.inner.Value = new(big.Int).Set(tx.inner.Value)
	cpy.inner.GasPrice = new(big.Int).Set(tx.inner.GasPrice)
	cpy.inner.V, cpy.inner.R, cpy.inner.S = v, r, s
	return cpy, nil
}

// deriveChainID derives the chain id from an EIP-155 V value.
func deriveChainID(v *big.Int) *big.Int {
	if v == nil || v.Sign() == 0 {
		return new(big.Int)
	}
	if v.BitLen() <= 64 {
		vu := v.Uint64()
		if vu == 27 || vu == 28 {
			return new(big.Int)
		}
		return new(big.Int).SetUint64((vu - 35) / 2)
	}
	w := new(big.Int).Sub(v, big.NewInt(35))
	return w.Rsh(w, 1)
}

// Transactions is a list of transactions implementing DerivableList.
type Transactions []*Transaction

// Len returns the number of transactions in the list.
func (txs Transactions) Len() int { return len(txs) }

// EncodeIndex returns the RLP encoding of the i'th transaction.
func (txs Transactions) EncodeIndex(i int) []byte {
	enc, _ := txs[i].EncodeRLP()
	return enc
}
