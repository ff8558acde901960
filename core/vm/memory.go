package vm

import "github.com/holiman/uint256"

// Memory is the byte-addressed, lazily extended memory of a call frame.
// Growth is word-aligned; the expansion cost is charged by the interpreter
// before Resize is called.
type Memory struct {
	store []byte
}

// NewMemory returns a new zero-length memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Set copies value into memory at the given offset. The caller has already
// sized the memory through the operation's memorySize function.
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	if offset+size > uint64(len(m.store)) {
		panic("vm: memory write out of bounds")
	}
	copy(m.store[offset:offset+size], value)
}

// Set32 writes val as a 32-byte big-endian word at the given offset.
func (m *Memory) Set32(offset uint64, val *uint256.Int) {
	if offset+32 > uint64(len(m.store)) {
		panic("vm: memory write out of bounds")
	}
	val.PutUint256(m.store[offset : offset+32])
}

// Resize grows memory to size bytes.
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) < size {
		m.store = append(m.store, make([]byte, size-uint64(len(m.store)))...)
	}
}

// Get returns a copy of memory contents at [offset, offset+size).
func (m *Memory) Get(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, m.store[offset:offset+size])
	return out
}

// GetPtr returns a direct reference to memory at [offset, offset+size).
func (m *Memory) GetPtr(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	return m.store[offset : offset+size]
}

// Len returns the current memory size in bytes.
func (m *Memory) Len() int {
	return len(m.store)
}

// Data returns the full backing slice.
func (m *Memory) Data() []byte {
	return m.store
}
