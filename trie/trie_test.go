package trie

import (
	"bytes"
	"testing"

	"github.com/ethforge/ethforge/core/types"
	"github.com/ethforge/ethforge/ethdb"
)

func TestEmptyTrieHash(t *testing.T) {
	tr := NewEmpty()
	if root := tr.Hash(); root != types.EmptyRootHash {
		t.Errorf("empty trie root = %v, want %v", root, types.EmptyRootHash)
	}
}

func TestInsertKnownRoot(t *testing.T) {
	// Vector from the canonical trietest suite.
	tr := NewEmpty()
	entries := [][2]string{
		{"doe", "reindeer"},
		{"dog", "puppy"},
		{"dogglesworth", "cat"},
	}
	for _, kv := range entries {
		if err := tr.TryUpdate([]byte(kv[0]), []byte(kv[1])); err != nil {
			t.Fatal(err)
		}
	}
	want := types.HexToHash("8aad789dff2f538bca5d8ea56e8abe10f4c7ba3a5dea95fea4cd6e7c3a1168d3")
	if root := tr.Hash(); root != want {
		t.Errorf("root = %v, want %v", root, want)
	}
}

func TestGet(t *testing.T) {
	tr := NewEmpty()
	tr.Update([]byte("alpha"), []byte("one"))
	tr.Update([]byte("alphabet"), []byte("two"))
	tr.Update([]byte("beta"), []byte("three"))

	for key, want := range map[string]string{"alpha": "one", "alphabet": "two", "beta": "three"} {
		got, err := tr.Get([]byte(key))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Errorf("Get(%q) = %q, want %q", key, got, want)
		}
	}
	if got := tr.MustGet([]byte("gamma")); got != nil {
		t.Errorf("Get(gamma) = %q, want nil", got)
	}
}

func TestDelete(t *testing.T) {
	tr := NewEmpty()
	tr.Update([]byte("doe"), []byte("reindeer"))
	tr.Update([]byte("dog"), []byte("puppy"))
	if err := tr.Delete([]byte("dog")); err != nil {
		t.Fatal(err)
	}
	if got := tr.MustGet([]byte("dog")); got != nil {
		t.Errorf("deleted key still present: %q", got)
	}
	if got := tr.MustGet([]byte("doe")); string(got) != "reindeer" {
		t.Errorf("sibling damaged by delete: %q", got)
	}

	// Deleting the last key restores the empty root.
	if err := tr.Delete([]byte("doe")); err != nil {
		t.Fatal(err)
	}
	if root := tr.Hash(); root != types.EmptyRootHash {
		t.Errorf("root after deleting all keys = %v, want empty", root)
	}
}

func TestUpdateOverwrite(t *testing.T) {
	a, b := NewEmpty(), NewEmpty()
	a.Update([]byte("key"), []byte("one"))
	a.Update([]byte("key"), []byte("two"))
	b.Update([]byte("key"), []byte("two"))
	if a.Hash() != b.Hash() {
		t.Error("overwrite produced a different root than direct insert")
	}
}

func TestCommitAndReload(t *testing.T) {
	db := NewDatabase(ethdb.NewMemoryDatabase())

	tr := NewEmpty()
	entries := map[string]string{
		"doe":          "reindeer",
		"dog":          "puppy",
		"dogglesworth": "cat",
		"horse":        "stallion",
	}
	for k, v := range entries {
		tr.Update([]byte(k), []byte(v))
	}
	root, err := tr.Commit(db)
	if err != nil {
		t.Fatal(err)
	}

	// Committing again without changes yields the same root.
	root2, err := tr.Commit(db)
	if err != nil {
		t.Fatal(err)
	}
	if root != root2 {
		t.Errorf("commit not idempotent: %v != %v", root, root2)
	}

	// Reload from the database and read everything back.
	reloaded, err := New(root, db)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range entries {
		got, err := reloaded.Get([]byte(k))
		if err != nil {
			t.Fatalf("Get(%q): %v", k, err)
		}
		if !bytes.Equal(got, []byte(v)) {
			t.Errorf("reloaded Get(%q) = %q, want %q", k, got, v)
		}
	}
	if reloaded.Hash() != root {
		t.Errorf("reloaded root = %v, want %v", reloaded.Hash(), root)
	}
}

func TestMissingNode(t *testing.T) {
	db := NewDatabase(ethdb.NewMemoryDatabase())
	tr := NewEmpty()
	tr.Update([]byte("missing"), []byte("node"))
	root, err := tr.Commit(db)
	if err != nil {
		t.Fatal(err)
	}

	// A fresh database has none of the nodes.
	if _, err := New(root, NewDatabase(ethdb.NewMemoryDatabase())); err == nil {
		t.Error("expected missing node error for unknown root")
	}
}

func TestHexPrefixRoundTrip(t *testing.T) {
	keys := [][]byte{{}, {0x12}, {0x12, 0x34}, {0x12, 0x34, 0x56}}
	for _, key := range keys {
		hex := keybytesToHex(key)
		for _, leaf := range []bool{false, true} {
			nibbles := hex
			if !leaf {
				nibbles = hex[:len(hex)-1]
			}
			compact := hexToCompact(nibbles)
			back := compactToHex(compact)
			if !bytes.Equal(back, nibbles) {
				t.Errorf("compact round trip failed for %x (leaf=%v): %x != %x", key, leaf, back, nibbles)
			}
		}
	}
}
