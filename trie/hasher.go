package trie

import (
	"github.com/ethforge/ethforge/crypto"
	"github.com/ethforge/ethforge/rlp"
	"github.com/ethforge/ethforge/core/types"
)

// storeFunc persists a hashed node's RLP encoding under its hash.
type storeFunc func(hash types.Hash, enc []byte) error

// hasher folds a trie into hash references bottom-up. With a non-nil store
// callback every hashed node is also written out.
type hasher struct {
	store storeFunc
	err   error
}

func newHasher(store storeFunc) *hasher {
	return &hasher{store: store}
}

// hash returns the hash reference for n (a hashNode, or the node itself if
// its encoding fits inline) together with a cached version of n that carries
// the computed hash.
func (h *hasher) hash(n node, force bool) (node, node) {
	if hash, dirty := n.cache(); hash != nil && !dirty && h.store == nil {
		return hash, n
	}
	switch n := n.(type) {
	case *shortNode:
		collapsed, cached := h.hashShortChildren(n)
		hashed := h.shrink(collapsed, force)
		if hn, ok := hashed.(hashNode); ok {
			cached.flags.hash = hn
			cached.flags.dirty = false
		}
		return hashed, cached
	case *fullNode:
		collapsed, cached := h.hashFullChildren(n)
		hashed := h.shrink(collapsed, force)
		if hn, ok := hashed.(hashNode); ok {
			cached.flags.hash = hn
			cached.flags.dirty = false
		}
		return hashed, cached
	default:
		// Value and hash nodes have no children and are never stored alone.
		return n, n
	}
}

// hashShortChildren collapses a short node for encoding: the key is
// compact-encoded and a non-value child is replaced by its hash reference.
func (h *hasher) hashShortChildren(n *shortNode) (*shortNode, *shortNode) {
	collapsed, cached := n.copy(), n.copy()
	collapsed.Key = hexToCompact(n.Key)
	if _, ok := n.Val.(valueNode); !ok {
		collapsed.Val, cached.Val = h.hash(n.Val, false)
	}
	return collapsed, cached
}

func (h *hasher) hashFullChildren(n *fullNode) (*fullNode, *fullNode) {
	collapsed, cached := n.copy(), n.copy()
	for i := 0; i < 16; i++ {
		if child := n.Children[i]; child != nil {
			collapsed.Children[i], cached.Children[i] = h.hash(child, false)
		}
	}
	return collapsed, cached
}

// shrink encodes a collapsed node and replaces it with its hash reference
// when the encoding is 32 bytes or larger (or force is set, as for the
// root). Smaller nodes stay embedded in their parent.
func (h *hasher) shrink(n node, force bool) node {
	enc := encodeNode(n)
	if len(enc) < 32 && !force {
		return n
	}
	hash := crypto.Keccak256(enc)
	if h.store != nil {
		if err := h.store(types.BytesToHash(hash), enc); err != nil && h.err == nil {
			h.err = err
		}
	}
	return hashNode(hash)
}

// encodeNode returns the RLP encoding of a collapsed node.
func encodeNode(n node) []byte {
	switch n := n.(type) {
	case *shortNode:
		var payload []byte
		payload = rlp.AppendString(payload, n.Key)
		payload = append(payload, encodeRef(n.Val)...)
		return rlp.WrapList(payload)
	case *fullNode:
		var payload []byte
		for i := 0; i < 16; i++ {
			payload = append(payload, encodeRef(n.Children[i])...)
		}
		if v, ok := n.Children[16].(valueNode); ok {
			payload = rlp.AppendString(payload, v)
		} else {
			payload = rlp.AppendString(payload, nil)
		}
		return rlp.WrapList(payload)
	case valueNode:
		return rlp.AppendString(nil, n)
	case hashNode:
		return rlp.AppendString(nil, n)
	default:
		return rlp.AppendString(nil, nil)
	}
}

// encodeRef encodes a child reference: a hash string, an embedded node
// encoding, a value string, or the empty string for a nil child.
func encodeRef(n node) []byte {
	switch n := n.(type) {
	case nil:
		return rlp.AppendString(nil, nil)
	case hashNode:
		return rlp.AppendString(nil, n)
	case valueNode:
		return rlp.AppendString(nil, n)
	default:
		// Embedded node (encoding known to be < 32 bytes).
		return encodeNode(n)
	}
}
