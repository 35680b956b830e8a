package wasm

import "bytes"

// Module is a core module in section order.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // type index per defined function
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Code     []FuncBody
	Data     []DataSegment
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two signatures are identical.
func (f FuncType) Equal(o FuncType) bool {
	return bytes.Equal(valBytes(f.Params), valBytes(o.Params)) &&
		bytes.Equal(valBytes(f.Results), valBytes(o.Results))
}

func valBytes(v []ValType) []byte {
	out := make([]byte, len(v))
	for i, t := range v {
		out[i] = byte(t)
	}
	return out
}

// ValType is a value type byte (see constants.go).
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	default:
		return "unknown"
	}
}

type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes what is imported. Only function and memory imports
// are emitted.
type ImportDesc struct {
	Memory  *MemoryType
	TypeIdx uint32
	Kind    byte
}

type MemoryType struct {
	Limits Limits
}

type Limits struct {
	Max *uint32
	Min uint32
}

type GlobalType struct {
	ValType ValType
	Mutable bool
}

type Global struct {
	Type GlobalType
	Init []byte // constant expression including end
}

type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // including the final end opcode
}

type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// DataSegment is an active segment for memory 0.
type DataSegment struct {
	Offset []byte // constant expression including end
	Init   []byte
}
