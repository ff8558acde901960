package types

import "github.com/ethforge/ethforge/rlp"

// EncodeRLP returns the consensus encoding of the receipt:
// rlp([postStateOrStatus, cumulativeGasUsed, bloom, logs]).
func (r *Receipt) EncodeRLP() ([]byte, error) {
	var payload []byte
	payload = rlp.AppendString(payload, r.statusEncoding())
	payload = rlp.AppendUint(payload, r.CumulativeGasUsed)
	payload = rlp.AppendString(payload, r.Bloom[:])

	var logsPayload []byte
	for _, log := range r.Logs {
		enc, err := encodeLogRLP(log)
		if err != nil {
			return nil, err
		}
		logsPayload = append(logsPayload, enc...)
	}
	payload = append(payload, rlp.WrapList(logsPayload)...)
	return rlp.WrapList(payload), nil
}

// encodeLogRLP encodes the consensus fields of a log:
// rlp([address, topics, data]).
func encodeLogRLP(log *Log) ([]byte, error) {
	return encodeRLPList([]interface{}{log.Address, log.Topics, log.Data})
}

// DecodeReceiptRLP decodes a consensus-encoded receipt. The first field is
// interpreted as a post-state root if it is 32 bytes, else as a status.
func DecodeReceiptRLP(data []byte) (*Receipt, error) {
	s := rlp.NewStreamFromBytes(data)
	if _, err := s.List(); err != nil {
		return nil, err
	}
	r := &Receipt{}

	first, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	switch len(first) {
	case HashLength:
		r.PostState = copyBytes(first)
		r.Status = ReceiptStatusSuccessful
	case 0:
		r.Status = ReceiptStatusFailed
	default:
		r.Status = uint64(first[0])
	}

	if r.CumulativeGasUsed, err = s.Uint64(); err != nil {
		return nil, err
	}
	if err = decodeBloom(s, &r.Bloom); err != nil {
		return nil, err
	}

	if _, err = s.List(); err != nil {
		return nil, err
	}
	for !s.AtListEnd() {
		log, err := decodeLogRLP(s)
		if err != nil {
			return nil, err
		}
		r.Logs = append(r.Logs, log)
	}
	if err = s.ListEnd(); err != nil {
		return nil, err
	}

	if err = s.ListEnd(); err != nil {
		return nil, err
	}
	return r, nil
}

func decodeLogRLP(s *rlp.Stream) (*Log, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	log := &Log{}
	if err := decodeAddress(s, &log.Address); err != nil {
		return nil, err
	}
	if _, err := s.List(); err != nil {
		return nil, err
	}
	for !s.AtListEnd() {
		var topic Hash
		if err := decodeHash(s, &topic); err != nil {
			return nil, err
		}
		log.Topics = append(log.Topics, topic)
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	data, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	log.Data = copyBytes(data)
	return log, s.ListEnd()
}
