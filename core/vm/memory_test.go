package vm

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"
)

func TestMemorySetGet(t *testing.T) {
	m := NewMemory()
	m.Resize(64)
	m.Set(4, 3, []byte{1, 2, 3})
	if got := m.Get(4, 3); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Get = %x", got)
	}
	if m.Len() != 64 {
		t.Errorf("len = %d, want 64", m.Len())
	}
}

func TestMemorySet32(t *testing.T) {
	m := NewMemory()
	m.Resize(32)
	m.Set32(0, uint256.NewInt(0xdead))
	want := make([]byte, 32)
	want[30], want[31] = 0xde, 0xad
	if !bytes.Equal(m.Data(), want) {
		t.Errorf("Set32 = %x", m.Data())
	}
}

func TestMemoryGasCost(t *testing.T) {
	m := NewMemory()
	// First word: 3*1 + 1/512 = 3.
	cost, err := memoryGasCost(m, 32)
	if err != nil {
		t.Fatal(err)
	}
	if cost != 3 {
		t.Errorf("cost(32) = %d, want 3", cost)
	}

	// 1024 words: 3*1024 + 1024*1024/512 = 5120.
	cost, err = memoryGasCost(m, 32768)
	if err != nil {
		t.Fatal(err)
	}
	if cost != 5120 {
		t.Errorf("cost(32768) = %d, want 5120", cost)
	}

	// Growth is charged on the delta only.
	m.Resize(32)
	cost, err = memoryGasCost(m, 64)
	if err != nil {
		t.Fatal(err)
	}
	if cost != 3 {
		t.Errorf("delta cost(32->64) = %d, want 3", cost)
	}

	// Shrinking or equal size costs nothing.
	cost, err = memoryGasCost(m, 16)
	if err != nil {
		t.Fatal(err)
	}
	if cost != 0 {
		t.Errorf("cost of no growth = %d, want 0", cost)
	}
}

func TestMemoryGasOverflow(t *testing.T) {
	m := NewMemory()
	if _, err := memoryGasCost(m, ^uint64(0)); err == nil {
		t.Error("expected overflow error")
	}
}
