// Package trie implements the Merkle Patricia Trie that commits the world
// state, storage, transaction and receipt contents to root hashes.
package trie

import (
	"bytes"
	"fmt"

	"github.com/ethforge/ethforge/core/types"
)

// Trie is an in-memory Merkle Patricia Trie over a node database. Unloaded
// subtrees are referenced by hash and resolved on demand.
type Trie struct {
	root node
	db   NodeReader // may be nil for a purely in-memory trie
}

// MissingNodeError is returned when a referenced trie node is absent from
// the node database.
type MissingNodeError struct {
	NodeHash types.Hash
	Path     []byte
}

func (e *MissingNodeError) Error() string {
	return fmt.Sprintf("trie: missing node %x (path %x)", e.NodeHash, e.Path)
}

// NewEmpty creates an empty trie with no backing database.
func NewEmpty() *Trie {
	return &Trie{}
}

// New creates a trie rooted at root, resolving nodes from db. An empty or
// zero root yields an empty trie.
func New(root types.Hash, db NodeReader) (*Trie, error) {
	t := &Trie{db: db}
	if root != (types.Hash{}) && root != types.EmptyRootHash {
		rootNode, err := t.resolveHash(hashNode(root.Bytes()), nil)
		if err != nil {
			return nil, err
		}
		t.root = rootNode
	}
	return t, nil
}

// Get returns the value stored under key, or nil if absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	value, newroot, resolved, err := t.get(t.root, keybytesToHex(key), 0)
	if err == nil && resolved {
		t.root = newroot
	}
	return value, err
}

// MustGet is Get for tries known to be fully loaded.
func (t *Trie) MustGet(key []byte) []byte {
	value, _ := t.Get(key)
	return value
}

// TryUpdate associates key with value. An empty value deletes the key.
func (t *Trie) TryUpdate(key, value []byte) error {
	hexKey := keybytesToHex(key)
	if len(value) != 0 {
		_, n, err := t.insert(t.root, nil, hexKey, valueNode(value))
		if err != nil {
			return err
		}
		t.root = n
		return nil
	}
	_, n, err := t.delete(t.root, nil, hexKey)
	if err != nil {
		return err
	}
	t.root = n
	return nil
}

// Update associates key with value, ignoring resolution failures. It exists
// to satisfy types.TrieHasher for in-memory derivation tries.
func (t *Trie) Update(key, value []byte) {
	_ = t.TryUpdate(key, value)
}

// Delete removes the value stored under key.
func (t *Trie) Delete(key []byte) error {
	return t.TryUpdate(key, nil)
}

// Hash returns the root hash of the trie without persisting anything.
func (t *Trie) Hash() types.Hash {
	hash, cached, _ := t.hashRoot(nil)
	t.root = cached
	return hash
}

// Commit hashes the trie and writes every node at or above the inline
// threshold to w. Committing twice yields the same root.
func (t *Trie) Commit(w NodeWriter) (types.Hash, error) {
	store := func(hash types.Hash, enc []byte) error {
		return w.InsertNode(hash, enc)
	}
	hash, cached, err := t.hashRoot(store)
	if err != nil {
		return types.Hash{}, err
	}
	t.root = cached
	return hash, nil
}

func (t *Trie) hashRoot(store storeFunc) (types.Hash, node, error) {
	if t.root == nil {
		return types.EmptyRootHash, nil, nil
	}
	h := newHasher(store)
	hashed, cached := h.hash(t.root, true)
	if h.err != nil {
		return types.Hash{}, nil, h.err
	}
	return types.BytesToHash(hashed.(hashNode)), cached, nil
}

func (t *Trie) get(origNode node, key []byte, pos int) (value []byte, newnode node, resolved bool, err error) {
	switch n := origNode.(type) {
	case nil:
		return nil, nil, false, nil
	case valueNode:
		return n, n, false, nil
	case *shortNode:
		if len(key)-pos < len(n.Key) || !bytes.Equal(n.Key, key[pos:pos+len(n.Key)]) {
			return nil, n, false, nil
		}
		value, newnode, resolved, err = t.get(n.Val, key, pos+len(n.Key))
		if err == nil && resolved {
			n = n.copy()
			n.Val = newnode
		}
		return value, n, resolved, err
	case *fullNode:
		value, newnode, resolved, err = t.get(n.Children[key[pos]], key, pos+1)
		if err == nil && resolved {
			n = n.copy()
			n.Children[key[pos]] = newnode
		}
		return value, n, resolved, err
	case hashNode:
		child, err := t.resolveHash(n, key[:pos])
		if err != nil {
			return nil, n, true, err
		}
		value, newnode, _, err := t.get(child, key, pos)
		return value, newnode, true, err
	default:
		panic(fmt.Sprintf("trie: invalid node type %T", origNode))
	}
}

func (t *Trie) insert(n node, prefix, key []byte, value node) (bool, node, error) {
	if len(key) == 0 {
		if v, ok := n.(valueNode); ok {
			return !bytes.Equal(v, value.(valueNode)), value, nil
		}
		return true, value, nil
	}
	switch n := n.(type) {
	case *shortNode:
		matchlen := prefixLen(key, n.Key)
		// If the whole key matches, recurse into the child.
		if matchlen == len(n.Key) {
			dirty, nn, err := t.insert(n.Val, append(prefix, key[:matchlen]...), key[matchlen:], value)
			if !dirty || err != nil {
				return false, n, err
			}
			return true, &shortNode{n.Key, nn, nodeFlag{dirty: true}}, nil
		}
		// Branch out at the index where the keys diverge.
		branch := &fullNode{flags: nodeFlag{dirty: true}}
		var err error
		_, branch.Children[n.Key[matchlen]], err = t.insert(nil, append(prefix, n.Key[:matchlen+1]...), n.Key[matchlen+1:], n.Val)
		if err != nil {
			return false, nil, err
		}
		_, branch.Children[key[matchlen]], err = t.insert(nil, append(prefix, key[:matchlen+1]...), key[matchlen+1:], value)
		if err != nil {
			return false, nil, err
		}
		// The branch replaces the short node directly when nothing matched.
		if matchlen == 0 {
			return true, branch, nil
		}
		return true, &shortNode{key[:matchlen], branch, nodeFlag{dirty: true}}, nil

	case *fullNode:
		dirty, nn, err := t.insert(n.Children[key[0]], append(prefix, key[0]), key[1:], value)
		if !dirty || err != nil {
			return false, n, err
		}
		n = n.copy()
		n.flags = nodeFlag{dirty: true}
		n.Children[key[0]] = nn
		return true, n, nil

	case nil:
		return true, &shortNode{key, value, nodeFlag{dirty: true}}, nil

	case hashNode:
		rn, err := t.resolveHash(n, prefix)
		if err != nil {
			return false, nil, err
		}
		dirty, nn, err := t.insert(rn, prefix, key, value)
		if !dirty || err != nil {
			return false, rn, err
		}
		return true, nn, nil

	default:
		panic(fmt.Sprintf("trie: invalid node type %T", n))
	}
}

func (t *Trie) delete(n node, prefix, key []byte) (bool, node, error) {
	switch n := n.(type) {
	case *shortNode:
		matchlen := prefixLen(key, n.Key)
		if matchlen < len(n.Key) {
			return false, n, nil // key not in trie
		}
		if matchlen == len(key) {
			return true, nil, nil // whole match, remove the node
		}
		// The key is longer than n.Key; delete from the subtrie. The child
		// cannot become nil since the subtrie holds at least two values.
		dirty, child, err := t.delete(n.Val, append(prefix, key[:len(n.Key)]...), key[len(n.Key):])
		if !dirty || err != nil {
			return false, n, err
		}
		switch child := child.(type) {
		case *shortNode:
			// Merge nested short nodes into one. The key slices are
			// concatenated into a fresh buffer since n.Key may be shared.
			return true, &shortNode{concat(n.Key, child.Key...), child.Val, nodeFlag{dirty: true}}, nil
		default:
			return true, &shortNode{n.Key, child, nodeFlag{dirty: true}}, nil
		}

	case *fullNode:
		dirty, nn, err := t.delete(n.Children[key[0]], append(prefix, key[0]), key[1:])
		if !dirty || err != nil {
			return false, n, err
		}
		n = n.copy()
		n.flags = nodeFlag{dirty: true}
		n.Children[key[0]] = nn

		// Find whether a single child remains; if so the branch reduces to
		// a short node.
		pos := -1
		for i, cld := range &n.Children {
			if cld != nil {
				if pos == -1 {
					pos = i
				} else {
					pos = -2
					break
				}
			}
		}
		if pos >= 0 {
			if pos != 16 {
				// Resolve the remaining child if needed; a short child gets
				// the branch nibble prepended to its key.
				cnode := n.Children[pos]
				if hn, ok := cnode.(hashNode); ok {
					rn, err := t.resolveHash(hn, append(prefix, byte(pos)))
					if err != nil {
						return false, nil, err
					}
					cnode = rn
				}
				if short, ok := cnode.(*shortNode); ok {
					k := append([]byte{byte(pos)}, short.Key...)
					return true, &shortNode{k, short.Val, nodeFlag{dirty: true}}, nil
				}
				n.Children[pos] = cnode
			}
			return true, &shortNode{[]byte{byte(pos)}, n.Children[pos], nodeFlag{dirty: true}}, nil
		}
		return true, n, nil

	case valueNode:
		return true, nil, nil

	case nil:
		return false, nil, nil

	case hashNode:
		rn, err := t.resolveHash(n, prefix)
		if err != nil {
			return false, nil, err
		}
		dirty, nn, err := t.delete(rn, prefix, key)
		if !dirty || err != nil {
			return false, rn, err
		}
		return true, nn, nil

	default:
		panic(fmt.Sprintf("trie: invalid node type %T", n))
	}
}

func (t *Trie) resolveHash(n hashNode, prefix []byte) (node, error) {
	if t.db == nil {
		return nil, &MissingNodeError{NodeHash: types.BytesToHash(n), Path: prefix}
	}
	enc, err := t.db.Node(types.BytesToHash(n))
	if err != nil || len(enc) == 0 {
		return nil, &MissingNodeError{NodeHash: types.BytesToHash(n), Path: prefix}
	}
	return decodeNode(n, enc)
}

// concat joins a and b into a freshly allocated slice.
func concat(a []byte, b ...byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
