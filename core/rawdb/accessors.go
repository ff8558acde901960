package rawdb

import (
	"encoding/binary"

	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/ethdb"
	"github.com/ethforge/ethforge/rlp"
)

// --- Headers ---

// WriteHeader stores a header and its hash-to-number index entry.
func WriteHeader(db ethdb.KeyValueWriter, header *types.Header) error {
	enc, err := header.EncodeRLP()
	if err != nil {
		return err
	}
	hash, number := header.Hash(), header.Number.Uint64()
	if err := db.Put(headerKey(number, hash), enc); err != nil {
		return err
	}
	return db.Put(headerNumberKey(hash), encodeBlockNumber(number))
}

// ReadHeader retrieves the header with the given number and hash.
func ReadHeader(db ethdb.KeyValueReader, number uint64, hash types.Hash) (*types.Header, error) {
	enc, err := db.Get(headerKey(number, hash))
	if err != nil {
		return nil, err
	}
	return types.DecodeHeaderRLP(enc)
}

// ReadHeaderNumber retrieves the block number of the given header hash.
func ReadHeaderNumber(db ethdb.KeyValueReader, hash types.Hash) (uint64, error) {
	data, err := db.Get(headerNumberKey(hash))
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, ethdb.ErrNotFound
	}
	return binary.BigEndian.Uint64(data), nil
}

// ReadHeaderByHash retrieves a header by hash alone via the number index.
func ReadHeaderByHash(db ethdb.KeyValueReader, hash types.Hash) (*types.Header, error) {
	number, err := ReadHeaderNumber(db, hash)
	if err != nil {
		return nil, err
	}
	return ReadHeader(db, number, hash)
}

// HasHeader reports whether the header is stored.
func HasHeader(db ethdb.KeyValueReader, number uint64, hash types.Hash) bool {
	ok, _ := db.Has(headerKey(number, hash))
	return ok
}

// --- Bodies ---

// WriteBody stores a block body.
func WriteBody(db ethdb.KeyValueWriter, number uint64, hash types.Hash, body *types.Body) error {
	enc, err := encodeBodyRLP(body)
	if err != nil {
		return err
	}
	return db.Put(bodyKey(number, hash), enc)
}

// ReadBody retrieves a block body.
func ReadBody(db ethdb.KeyValueReader, number uint64, hash types.Hash) (*types.Body, error) {
	enc, err := db.Get(bodyKey(number, hash))
	if err != nil {
		return nil, err
	}
	return decodeBodyRLP(enc)
}

// --- Receipts ---

// WriteReceipts stores the consensus encoding of a block's receipts.
func WriteReceipts(db ethdb.KeyValueWriter, number uint64, hash types.Hash, receipts types.Receipts) error {
	var payload []byte
	for _, r := range receipts {
		enc, err := r.EncodeRLP()
		if err != nil {
			return err
		}
		payload = append(payload, enc...)
	}
	return db.Put(receiptKey(number, hash), rlp.WrapList(payload))
}

// ReadReceipts retrieves the receipts of a block.
func ReadReceipts(db ethdb.KeyValueReader, number uint64, hash types.Hash) (types.Receipts, error) {
	enc, err := db.Get(receiptKey(number, hash))
	if err != nil {
		return nil, err
	}
	s := rlp.NewStreamFromBytes(enc)
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var receipts types.Receipts
	for !s.AtListEnd() {
		raw, err := s.Raw()
		if err != nil {
			return nil, err
		}
		r, err := types.DecodeReceiptRLP(raw)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return receipts, nil
}

// --- Canonical chain ---

// WriteCanonicalHash marks hash as the canonical block at the given height.
func WriteCanonicalHash(db ethdb.KeyValueWriter, number uint64, hash types.Hash) error {
	return db.Put(canonicalKey(number), hash.Bytes())
}

// ReadCanonicalHash retrieves the canonical block hash at the given height.
func ReadCanonicalHash(db ethdb.KeyValueReader, number uint64) (types.Hash, error) {
	data, err := db.Get(canonicalKey(number))
	if err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(data), nil
}

// WriteHeadBlockHash stores the hash of the current chain head.
func WriteHeadBlockHash(db ethdb.KeyValueWriter, hash types.Hash) error {
	return db.Put(headBlockKey, hash.Bytes())
}

// ReadHeadBlockHash retrieves the hash of the current chain head.
func ReadHeadBlockHash(db ethdb.KeyValueReader) (types.Hash, error) {
	data, err := db.Get(headBlockKey)
	if err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(data), nil
}

// encodeBodyRLP encodes a body as rlp([transactions, uncles]).
func encodeBodyRLP(body *types.Body) ([]byte, error) {
	var txsPayload []byte
	for _, tx := range body.Transactions {
		enc, err := tx.EncodeRLP()
		if err != nil {
			return nil, err
		}
		txsPayload = append(txsPayload, enc...)
	}
	var unclesPayload []byte
	for _, uncle := range body.Uncles {
		enc, err := uncle.EncodeRLP()
		if err != nil {
			return nil, err
		}
		unclesPayload = append(unclesPayload, enc...)
	}
	payload := append(rlp.WrapList(txsPayload), rlp.WrapList(unclesPayload)...)
	return rlp.WrapList(payload), nil
}

// decodeBodyRLP decodes rlp([transactions, uncles]).
func decodeBodyRLP(enc []byte) (*types.Body, error) {
	s := rlp.NewStreamFromBytes(enc)
	if _, err := s.List(); err != nil {
		return nil, err
	}
	body := new(types.Body)

	if _, err := s.List(); err != nil {
		return nil, err
	}
	for !s.AtListEnd() {
		raw, err := s.Raw()
		if err != nil {
			return nil, err
		}
		tx, err := types.DecodeTransactionRLP(raw)
		if err != nil {
			return nil, err
		}
		body.Transactions = append(body.Transactions, tx)
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}

	if _, err := s.List(); err != nil {
		return nil, err
	}
	for !s.AtListEnd() {
		raw, err := s.Raw()
		if err != nil {
			return nil, err
		}
		uncle, err := types.DecodeHeaderRLP(raw)
		if err != nil {
			return nil, err
		}
		body.Uncles = append(body.Uncles, uncle)
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}

	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return body, nil
}
