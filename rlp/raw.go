package rlp

import "errors"

var (
	errRawTooShort = errors.New("rlp: input too short")
	errRawOversize = errors.New("rlp: element larger than containing list")
)

// Split reads the first RLP item from b, returning its kind, content, and the
// bytes following the item. The content of a list is its undecoded payload.
func Split(b []byte) (Kind, []byte, []byte, error) {
	kind, contentStart, contentLen, err := readKind(b)
	if err != nil {
		return 0, nil, nil, err
	}
	end := contentStart + contentLen
	return kind, b[contentStart:end], b[end:], nil
}

// SplitString reads an RLP string from b and returns its content and the
// remaining bytes after the string.
func SplitString(b []byte) ([]byte, []byte, error) {
	kind, content, rest, err := Split(b)
	if err != nil {
		return nil, nil, err
	}
	if kind == List {
		return nil, nil, ErrExpectedString
	}
	return content, rest, nil
}

// SplitList reads an RLP list from b and returns its payload and the remaining
// bytes after the list.
func SplitList(b []byte) ([]byte, []byte, error) {
	kind, content, rest, err := Split(b)
	if err != nil {
		return nil, nil, err
	}
	if kind != List {
		return nil, nil, ErrExpectedList
	}
	return content, rest, nil
}

// CountValues counts the number of top-level RLP items in b.
func CountValues(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		_, contentStart, contentLen, err := readKind(b)
		if err != nil {
			return 0, err
		}
		b = b[contentStart+contentLen:]
		n++
	}
	return n, nil
}

// readKind parses the prefix of the first item in b and returns its kind,
// the offset of its content, and the content length in bytes.
func readKind(b []byte) (kind Kind, contentStart, contentLen int, err error) {
	if len(b) == 0 {
		return 0, 0, 0, errRawTooShort
	}
	prefix := b[0]
	switch {
	case prefix <= 0x7f:
		return Byte, 0, 1, nil
	case prefix <= 0xb7:
		kind, contentStart, contentLen = String, 1, int(prefix-0x80)
	case prefix <= 0xbf:
		lenOfLen := int(prefix - 0xb7)
		if len(b) < 1+lenOfLen {
			return 0, 0, 0, errRawTooShort
		}
		kind, contentStart = String, 1+lenOfLen
		contentLen = int(readBigEndian(b[1 : 1+lenOfLen]))
	case prefix <= 0xf7:
		kind, contentStart, contentLen = List, 1, int(prefix-0xc0)
	default:
		lenOfLen := int(prefix - 0xf7)
		if len(b) < 1+lenOfLen {
			return 0, 0, 0, errRawTooShort
		}
		kind, contentStart = List, 1+lenOfLen
		contentLen = int(readBigEndian(b[1 : 1+lenOfLen]))
	}
	if contentStart+contentLen > len(b) {
		return 0, 0, 0, errRawOversize
	}
	return kind, contentStart, contentLen, nil
}
