package types

import (
	"math/big"

	"github.com/ethforge/ethforge/rlp"
)

// rlpFields returns the nine signed-transaction fields in wire order.
// A nil To is encoded as the empty string per the Yellow Paper.
func (tx *Transaction) rlpFields() []interface{} {
	var to interface{}
	if tx.inner.To != nil {
		to = *tx.inner.To
	} else {
		to = []byte{}
	}
	return []interface{}{
		tx.inner.Nonce,
		bigIntOrZero(tx.inner.GasPrice),
		tx.inner.Gas,
		to,
		bigIntOrZero(tx.inner.Value),
		tx.inner.Data,
		bigIntOrZero(tx.inner.V),
		bigIntOrZero(tx.inner.R),
		bigIntOrZero(tx.inner.S),
	}
}

// EncodeRLP returns the wire encoding of the signed transaction:
// rlp([nonce, gasPrice, gasLimit, to, value, data, v, r, s]).
func (tx *Transaction) EncodeRLP() ([]byte, error) {
	return encodeRLPList(tx.rlpFields())
}

// DecodeTransactionRLP decodes a wire-encoded signed transaction.
func DecodeTransactionRLP(data []byte) (*Transaction, error) {
	s := rlp.NewStreamFromBytes(data)
	if _, err := s.List(); err != nil {
		return nil, err
	}

	var (
		d   txdata
		err error
	)
	if d.Nonce, err = s.Uint64(); err != nil {
		return nil, err
	}
	if d.GasPrice, err = s.BigInt(); err != nil {
		return nil, err
	}
	if d.Gas, err = s.Uint64(); err != nil {
		return nil, err
	}
	toBytes, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	if len(toBytes) == AddressLength {
		to := BytesToAddress(toBytes)
		d.To = &to
	} else if len(toBytes) != 0 {
		return nil, ErrInvalidSig
	}
	if d.Value, err = s.BigInt(); err != nil {
		return nil, err
	}
	payload, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	d.Data = copyBytes(payload)
	if d.V, err = s.BigInt(); err != nil {
		return nil, err
	}
	if d.R, err = s.BigInt(); err != nil {
		return nil, err
	}
	if d.S, err = s.BigInt(); err != nil {
		return nil, err
	}
	if err = s.ListEnd(); err != nil {
		return nil, err
	}
	return &Transaction{inner: d}, nil
}

// sigHashFields returns the fields hashed for signing. For EIP-155 signers
// the chain id is appended with empty r and s placeholders.
func (tx *Transaction) sigHashFields(chainID *big.Int) []interface{} {
	var to interface{}
	if tx.inner.To != nil {
		to = *tx.inner.To
	} else {
		to = []byte{}
	}
	fields := []interface{}{
		tx.inner.Nonce,
		bigIntOrZero(tx.inner.GasPrice),
		tx.inner.Gas,
		to,
		bigIntOrZero(tx.inner.Value),
		tx.inner.Data,
	}
	if chainID != nil && chainID.Sign() != 0 {
		fields = append(fields, chainID, uint64(0), uint64(0))
	}
	return fields
}

// rlpHash encodes items as an RLP list and returns its keccak256 hash.
func rlpHash(items []interface{}) Hash {
	enc, err := encodeRLPList(items)
	if err != nil {
		return Hash{}
	}
	return keccakHash(enc)
}
