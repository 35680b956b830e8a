package wasm

import (
	"github.com/wippyai/wasm-workspace/wasm/internal/binary"
)

// Code assembles a function body instruction by instruction.
type Code struct {
	buf []byte
}

func NewCode() *Code {
	return &Code{}
}

// Bytes returns the encoded instructions.
func (c *Code) Bytes() []byte {
	return c.buf
}

// Op appends an instruction without immediates, or with immediates the
// caller has already encoded.
func (c *Code) Op(op ...byte) *Code {
	c.buf = append(c.buf, op...)
	return c
}

func (c *Code) withIndex(op byte, idx uint32) *Code {
	c.buf = binary.AppendU32(append(c.buf, op), idx)
	return c
}

func (c *Code) memArg(op byte, align, offset uint32) *Code {
	c.buf = binary.AppendU32(append(c.buf, op), align)
	c.buf = binary.AppendU32(c.buf, offset)
	return c
}

func (c *Code) Unreachable() *Code { return c.Op(OpUnreachable) }
func (c *Code) Drop() *Code        { return c.Op(OpDrop) }
func (c *Code) Return() *Code      { return c.Op(OpReturn) }
func (c *Code) Else() *Code        { return c.Op(OpElse) }
func (c *Code) End() *Code         { return c.Op(OpEnd) }

// Block, Loop and If open a structured block with no result.
func (c *Code) Block() *Code { return c.Op(OpBlock, BlockTypeVoid) }
func (c *Code) Loop() *Code  { return c.Op(OpLoop, BlockTypeVoid) }
func (c *Code) If() *Code    { return c.Op(OpIf, BlockTypeVoid) }

func (c *Code) Br(depth uint32) *Code   { return c.withIndex(OpBr, depth) }
func (c *Code) BrIf(depth uint32) *Code { return c.withIndex(OpBrIf, depth) }
func (c *Code) Call(fn uint32) *Code    { return c.withIndex(OpCall, fn) }

func (c *Code) LocalGet(i uint32) *Code  { return c.withIndex(OpLocalGet, i) }
func (c *Code) LocalSet(i uint32) *Code  { return c.withIndex(OpLocalSet, i) }
func (c *Code) LocalTee(i uint32) *Code  { return c.withIndex(OpLocalTee, i) }
func (c *Code) GlobalGet(i uint32) *Code { return c.withIndex(OpGlobalGet, i) }
func (c *Code) GlobalSet(i uint32) *Code { return c.withIndex(OpGlobalSet, i) }

// I32Load reads a naturally aligned i32 at base+offset.
func (c *Code) I32Load(offset uint32) *Code   { return c.memArg(OpI32Load, 2, offset) }
func (c *Code) I32Load8U(offset uint32) *Code { return c.memArg(OpI32Load8U, 0, offset) }
func (c *Code) I32Store(offset uint32) *Code  { return c.memArg(OpI32Store, 2, offset) }
func (c *Code) I32Store8(offset uint32) *Code { return c.memArg(OpI32Store8, 0, offset) }

// memory.size and memory.grow on memory 0
func (c *Code) MemorySize() *Code { return c.Op(OpMemorySize, 0) }
func (c *Code) MemoryGrow() *Code { return c.Op(OpMemoryGrow, 0) }

func (c *Code) I32Const(v int32) *Code {
	c.buf = binary.AppendS64(append(c.buf, OpI32Const), int64(v))
	return c
}

func (c *Code) I64Const(v int64) *Code {
	c.buf = binary.AppendS64(append(c.buf, OpI64Const), v)
	return c
}

func (c *Code) I32Add() *Code  { return c.Op(OpI32Add) }
func (c *Code) I32Sub() *Code  { return c.Op(OpI32Sub) }
func (c *Code) I32Mul() *Code  { return c.Op(OpI32Mul) }
func (c *Code) I32And() *Code  { return c.Op(OpI32And) }
func (c *Code) I32Shl() *Code  { return c.Op(OpI32Shl) }
func (c *Code) I32ShrU() *Code { return c.Op(OpI32ShrU) }
func (c *Code) I32Eqz() *Code  { return c.Op(OpI32Eqz) }
func (c *Code) I32Eq() *Code   { return c.Op(OpI32Eq) }
func (c *Code) I32Ne() *Code   { return c.Op(OpI32Ne) }
func (c *Code) I32LtU() *Code  { return c.Op(OpI32LtU) }
func (c *Code) I32LeU() *Code  { return c.Op(OpI32LeU) }

// ConstExpr returns an initializer expression for globals and data offsets.
func ConstExpr(v int32) []byte {
	return NewCode().I32Const(v).End().Bytes()
}
