package types

import "github.com/ethforge/ethforge/rlp"

// EncodeRLP returns the wire encoding of the block:
// rlp([header, transactions, uncles]).
func (b *Block) EncodeRLP() ([]byte, error) {
	var payload []byte

	headerEnc, err := b.header.EncodeRLP()
	if err != nil {
		return nil, err
	}
	payload = append(payload, headerEnc...)

	var txsPayload []byte
	for _, tx := range b.body.Transactions {
		enc, err := tx.EncodeRLP()
		if err != nil {
			return nil, err
		}
		txsPayload = append(txsPayload, enc...)
	}
	payload = append(payload, rlp.WrapList(txsPayload)...)

	unclesEnc, err := encodeHeaderList(b.body.Uncles)
	if err != nil {
		return nil, err
	}
	payload = append(payload, unclesEnc...)

	return rlp.WrapList(payload), nil
}

// encodeHeaderList encodes a list of headers as an RLP list.
func encodeHeaderList(headers []*Header) ([]byte, error) {
	var payload []byte
	for _, h := range headers {
		enc, err := h.EncodeRLP()
		if err != nil {
			return nil, err
		}
		payload = append(payload, enc...)
	}
	return rlp.WrapList(payload), nil
}

// DecodeBlockRLP decodes a wire-encoded block.
func DecodeBlockRLP(data []byte) (*Block, error) {
	s := rlp.NewStreamFromBytes(data)
	if _, err := s.List(); err != nil {
		return nil, err
	}

	headerRaw, err := s.Raw()
	if err != nil {
		return nil, err
	}
	header, err := DecodeHeaderRLP(headerRaw)
	if err != nil {
		return nil, err
	}

	var body Body
	if _, err := s.List(); err != nil {
		return nil, err
	}
	for !s.AtListEnd() {
		txRaw, err := s.Raw()
		if err != nil {
			return nil, err
		}
		tx, err := DecodeTransactionRLP(txRaw)
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
		uncleRaw, err := s.Raw()
		if err != nil {
			return nil, err
		}
		uncle, err := DecodeHeaderRLP(uncleRaw)
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
	return NewBlock(header, &body), nil
}
