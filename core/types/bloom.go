package types

import "encoding/binary"

// BloomBitLength is the number of bits in a logs bloom filter (2048).
const BloomBitLength = 8 * BloomLength

// bloom9 computes the 3 bit positions for a bloom filter entry: the first
// 6 bytes of keccak256(data), taken as 3 big-endian uint16 values mod 2048.
func bloom9(data []byte) [3]uint {
	h := keccakHash(data)
	var bits [3]uint
	for i := 0; i < 3; i++ {
		bits[i] = uint(binary.BigEndian.Uint16(h[2*i:])) & 0x7FF
	}
	return bits
}

// BloomAdd sets the 3 bloom bits derived from data in the bloom filter.
// Bit 0 is the least significant bit of the last byte (big-endian order).
func BloomAdd(bloom *Bloom, data []byte) {
	for _, bit := range bloom9(data) {
		byteIdx := BloomLength - 1 - bit/8
		bloom[byteIdx] |= 1 << (bit % 8)
	}
}

// LogsBloom computes the bloom filter over a set of logs: each log
// contributes its address and every topic.
func LogsBloom(logs []*Log) Bloom {
	var bloom Bloom
	for _, log := range logs {
		BloomAdd(&bloom, log.Address.Bytes())
		for _, topic := range log.Topics {
			BloomAdd(&bloom, topic.Bytes())
		}
	}
	return bloom
}

// BloomContains checks whether the bloom filter may contain the given data.
func BloomContains(bloom Bloom, data []byte) bool {
	for _, bit := range bloom9(data) {
		byteIdx := BloomLength - 1 - bit/8
		if bloom[byteIdx]&(1<<(bit%8)) == 0 {
			return false
		}
	}
	return true
}

// CreateBloom ORs together the blooms of all receipts.
func CreateBloom(receipts []*Receipt) Bloom {
	var bloom Bloom
	for _, receipt := range receipts {
		for i := range receipt.Bloom {
			bloom[i] |= receipt.Bloom[i]
		}
	}
	return bloom
}
