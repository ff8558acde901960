package core

import (
	"math/big"

	"github.com/ethforge/ethforge/core/types"
)

// Message is a transaction flattened for execution: the recovered sender
// plus the consensus payload fields.
type Message struct {
	From     types.Address
	To       *types.Address // nil for contract creation
	Nonce    uint64
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Data     []byte
}

// TransactionToMessage recovers the sender via the signer and builds the
// execution message.
func TransactionToMessage(tx *types.Transaction, signer types.Signer) (*Message, error) {
	from, err := types.Sender(signer, tx)
	if err != nil {
		return nil, err
	}
	return &Message{
		From:     from,
		To:       tx.To(),
		Nonce:    tx.Nonce(),
		Value:    tx.Value(),
		GasLimit: tx.Gas(),
		GasPrice: tx.GasPrice(),
		Data:     tx.Data(),
	}, nil
}
