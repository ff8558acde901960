package types

import "math/big"

// Receipt status values (post-Byzantium).
const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// Receipt is the result of a transaction. Pre-Byzantium receipts commit to
// the intermediate state root; from Byzantium on they carry a status code.
type Receipt struct {
	// Consensus fields.
	PostState         []byte // intermediate state root, pre-Byzantium only
	Status            uint64
	CumulativeGasUsed uint64
	Bloom             Bloom
	Logs              []*Log

	// Derived fields, filled in during block processing.
	TxHash          Hash
	ContractAddress Address
	GasUsed         uint64
	BlockHash       Hash
	BlockNumber     *big.Int
	TxIndex         uint
}

// NewReceipt creates a bare receipt committing to either root or status.
func NewReceipt(root []byte, failed bool, cumulativeGasUsed uint64) *Receipt {
	r := &Receipt{
		PostState:         copyBytes(root),
		CumulativeGasUsed: cumulativeGasUsed,
	}
	if failed {
		r.Status = ReceiptStatusFailed
	} else {
		r.Status = ReceiptStatusSuccessful
	}
	return r
}

// Succeeded reports whether the transaction completed without a VM error.
func (r *Receipt) Succeeded() bool {
	return r.Status == ReceiptStatusSuccessful
}

// statusEncoding returns the first consensus field: the post-state root for
// pre-Byzantium receipts, else the status byte.
func (r *Receipt) statusEncoding() []byte {
	if len(r.PostState) > 0 {
		return r.PostState
	}
	if r.Status == ReceiptStatusFailed {
		return []byte{}
	}
	return []byte{0x01}
}

// Receipts is a list of receipts implementing DerivableList.
type Receipts []*Receipt

// Len returns the number of receipts in the list.
func (rs Receipts) Len() int { return len(rs) }

// EncodeIndex returns the consensus RLP encoding of the i'th receipt.
func (rs Receipts) EncodeIndex(i int) []byte {
	enc, _ := rs[i].EncodeRLP()
	return enc
}

// DeriveReceiptFields populates the derived fields on the receipts of a
// block: block context, per-transaction hashes, and global log indices.
func DeriveReceiptFields(receipts []*Receipt, blockHash Hash, blockNumber uint64, txs []*Transaction) {
	var logIndex uint
	for i, receipt := range receipts {
		receipt.BlockHash = blockHash
		receipt.BlockNumber = new(big.Int).SetUint64(blockNumber)
		receipt.TxIndex = uint(i)
		if i < len(txs) {
			receipt.TxHash = txs[i].Hash()
		}
		for _, log := range receipt.Logs {
			log.BlockHash = blockHash
			log.BlockNumber = blockNumber
			log.TxIndex = uint(i)
			log.Index = logIndex
			if i < len(txs) {
				log.TxHash = txs[i].Hash()
			}
			logIndex++
		}
	}
}
