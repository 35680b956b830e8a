package wasm

import (
	"bytes"
	"encoding/binary"
)

var header = func() []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:], Version)
	return buf[:]
}()

// IsModule reports whether data starts with the "\0asm" magic.
func IsModule(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], header[:4])
}

// AddBumpAllocator defines cabi_realloc(old_ptr, old_size, align, new_size)
// as a bump allocator over a mutable heap global starting at heapBase,
// growing memory 0 when the heap passes its end. It never frees and ignores
// old_ptr/old_size. The function is exported as "cabi_realloc" and its index
// returned.
func (b *Builder) AddBumpAllocator(heapBase int32) uint32 {
	heap := b.Global(true, heapBase)
	const (
		align   = 2
		newSize = 3
		ptr     = 4
	)
	code := NewCode().
		// ptr = (heap + align - 1) & -align
		GlobalGet(heap).LocalGet(align).I32Add().I32Const(1).I32Sub().
		I32Const(0).LocalGet(align).I32Sub().I32And().
		LocalTee(ptr).
		LocalGet(newSize).I32Add().GlobalSet(heap).
		Block().
		GlobalGet(heap).MemorySize().I32Const(16).I32Shl().I32LeU().BrIf(0).
		// pages = (heap - size + 65535) >> 16
		GlobalGet(heap).MemorySize().I32Const(16).I32Shl().I32Sub().
		I32Const(65535).I32Add().I32Const(16).I32ShrU().
		MemoryGrow().I32Const(-1).I32Ne().BrIf(0).
		Unreachable().
		End().
		LocalGet(ptr).
		End()

	i32 := ValI32
	sig := b.Type([]ValType{i32, i32, i32, i32}, []ValType{i32})
	fn := b.Func(sig, []ValType{i32}, code)
	b.ExportFunc("cabi_realloc", fn)
	return fn
}
