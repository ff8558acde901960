package ethdb

import (
	"bytes"
	"testing"
)

func TestMemoryDatabase(t *testing.T) {
	db := NewMemoryDatabase()
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("Get = %q", got)
	}
	if ok, _ := db.Has([]byte("k")); !ok {
		t.Error("Has = false")
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Get([]byte("k")); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryBatch(t *testing.T) {
	db := NewMemoryDatabase()
	batch := db.NewBatch()
	batch.Put([]byte("a"), []byte("1"))
	batch.Put([]byte("b"), []byte("2"))
	batch.Delete([]byte("a"))

	// Nothing lands before Write.
	if db.Len() != 0 {
		t.Error("batch wrote early")
	}
	if err := batch.Write(); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Get([]byte("a")); err != ErrNotFound {
		t.Error("batched delete not applied")
	}
	if v, _ := db.Get([]byte("b")); !bytes.Equal(v, []byte("2")) {
		t.Error("batched put not applied")
	}
}
