package trie

import (
	"fmt"

	"github.com/ethforge/ethforge/rlp"
)

// node is a node of the Merkle Patricia Trie. The four concrete kinds are
// fullNode (branch), shortNode (extension/leaf), hashNode (reference to a
// stored node) and valueNode (leaf payload).
type node interface {
	cache() (hashNode, bool)
	fstring(string) string
}

type nodeFlag struct {
	hash  hashNode // cached hash of the node, nil if not yet hashed
	dirty bool     // node changed since its hash was last computed
}

// fullNode is a branch with 16 child slots plus a value slot.
type fullNode struct {
	Children [17]node
	flags    nodeFlag
}

func (n *fullNode) cache() (hashNode, bool) { return n.flags.hash, n.flags.dirty }
func (n *fullNode) copy() *fullNode         { cpy := *n; return &cpy }
func (n *fullNode) String() string          { return n.fstring("") }

var nodeIndices = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "a", "b", "c", "d", "e", "f", "[17]"}

func (n *fullNode) fstring(ind string) string {
	resp := fmt.Sprintf("[\n%s  ", ind)
	for i, child := range &n.Children {
		if child == nil {
			resp += fmt.Sprintf("%s: <nil> ", nodeIndices[i])
		} else {
			resp += fmt.Sprintf("%s: %v", nodeIndices[i], child.fstring(ind+"  "))
		}
	}
	return resp + fmt.Sprintf("\n%s] ", ind)
}

// shortNode is an extension (Val is a child node) or a leaf (Val is a
// valueNode); the distinction is carried by the key's terminator nibble.
type shortNode struct {
	Key   []byte // hex nibbles, with terminator for leaves
	Val   node
	flags nodeFlag
}

func (n *shortNode) cache() (hashNode, bool) { return n.flags.hash, n.flags.dirty }
func (n *shortNode) copy() *shortNode        { cpy := *n; return &cpy }
func (n *shortNode) String() string          { return n.fstring("") }
func (n *shortNode) fstring(ind string) string {
	return fmt.Sprintf("{%x: %v} ", n.Key, n.Val.fstring(ind+"  "))
}

// hashNode is the keccak256 reference to a node stored in the database.
type hashNode []byte

func (n hashNode) cache() (hashNode, bool) { return nil, false }
func (n hashNode) fstring(string) string   { return fmt.Sprintf("<%x> ", []byte(n)) }

// valueNode holds a leaf payload.
type valueNode []byte

func (n valueNode) cache() (hashNode, bool) { return nil, false }
func (n valueNode) fstring(string) string   { return fmt.Sprintf("%x ", []byte(n)) }

// decodeNode parses an RLP-encoded trie node. hash is the node's own hash,
// attached to the decoded node for caching (may be nil for embedded nodes).
func decodeNode(hash, buf []byte) (node, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("trie: empty node encoding")
	}
	elems, _, err := rlp.SplitList(buf)
	if err != nil {
		return nil, fmt.Errorf("trie: decode error: %v", err)
	}
	count, err := rlp.CountValues(elems)
	if err != nil {
		return nil, err
	}
	switch count {
	case 2:
		return decodeShort(hash, elems)
	case 17:
		return decodeFull(hash, elems)
	default:
		return nil, fmt.Errorf("trie: invalid number of list elements: %d", count)
	}
}

func decodeShort(hash, elems []byte) (node, error) {
	kbuf, rest, err := rlp.SplitString(elems)
	if err != nil {
		return nil, err
	}
	flag := nodeFlag{hash: hash}
	key := compactToHex(kbuf)
	if hasTerm(key) {
		// Leaf node: the second element is the value.
		val, _, err := rlp.SplitString(rest)
		if err != nil {
			return nil, err
		}
		return &shortNode{key, valueNode(append([]byte(nil), val...)), flag}, nil
	}
	child, _, err := decodeRef(rest)
	if err != nil {
		return nil, err
	}
	return &shortNode{key, child, flag}, nil
}

func decodeFull(hash, elems []byte) (*fullNode, error) {
	n := &fullNode{flags: nodeFlag{hash: hash}}
	for i := 0; i < 16; i++ {
		child, rest, err := decodeRef(elems)
		if err != nil {
			return nil, err
		}
		n.Children[i], elems = child, rest
	}
	val, _, err := rlp.SplitString(elems)
	if err != nil {
		return nil, err
	}
	if len(val) > 0 {
		n.Children[16] = valueNode(append([]byte(nil), val...))
	}
	return n, nil
}

func decodeRef(buf []byte) (node, []byte, error) {
	kind, val, rest, err := rlp.Split(buf)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case kind == rlp.List:
		// Embedded node: the encoding must be smaller than a hash.
		if size := len(buf) - len(rest); size > 32 {
			return nil, nil, fmt.Errorf("trie: oversized embedded node (%d bytes)", size)
		}
		n, err := decodeNode(nil, buf[:len(buf)-len(rest)])
		return n, rest, err
	case len(val) == 0:
		return nil, rest, nil
	case len(val) == 32:
		return hashNode(append([]byte(nil), val...)), rest, nil
	default:
		return nil, nil, fmt.Errorf("trie: invalid RLP reference size %d (want 0 or 32)", len(val))
	}
}
