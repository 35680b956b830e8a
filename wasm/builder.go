package wasm

// Builder assembles a Module. Function imports must be declared before
// any defined function so indices stay stable.
type Builder struct {
	m           Module
	importFuncs uint32
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Type returns the index of a signature, reusing an identical one.
func (b *Builder) Type(params, results []ValType) uint32 {
	ft := FuncType{Params: params, Results: results}
	for i, existing := range b.m.Types {
		if existing.Equal(ft) {
			return uint32(i)
		}
	}
	b.m.Types = append(b.m.Types, ft)
	return uint32(len(b.m.Types) - 1)
}

// ImportFunc declares a function import and returns its function index.
func (b *Builder) ImportFunc(module, name string, typeIdx uint32) uint32 {
	if len(b.m.Funcs) > 0 {
		panic("wasm: function imports must precede defined functions")
	}
	b.m.Imports = append(b.m.Imports, Import{
		Module: module,
		Name:   name,
		Desc:   ImportDesc{Kind: KindFunc, TypeIdx: typeIdx},
	})
	b.importFuncs++
	return b.importFuncs - 1
}

// Memory defines memory 0 with min pages and an optional max.
func (b *Builder) Memory(min uint32, max *uint32) uint32 {
	b.m.Memories = append(b.m.Memories, MemoryType{Limits: Limits{Min: min, Max: max}})
	return uint32(len(b.m.Memories) - 1)
}

// Global defines a global initialized to an i32 constant.
func (b *Builder) Global(mutable bool, init int32) uint32 {
	b.m.Globals = append(b.m.Globals, Global{
		Type: GlobalType{ValType: ValI32, Mutable: mutable},
		Init: ConstExpr(init),
	})
	return uint32(len(b.m.Globals) - 1)
}

// Func defines a function and returns its function index. code must end
// with End().
func (b *Builder) Func(typeIdx uint32, locals []ValType, code *Code) uint32 {
	body := FuncBody{Code: code.Bytes()}
	for _, l := range locals {
		n := len(body.Locals)
		if n > 0 && body.Locals[n-1].ValType == l {
			body.Locals[n-1].Count++
			continue
		}
		body.Locals = append(body.Locals, LocalEntry{Count: 1, ValType: l})
	}
	b.m.Funcs = append(b.m.Funcs, typeIdx)
	b.m.Code = append(b.m.Code, body)
	return b.importFuncs + uint32(len(b.m.Funcs)-1)
}

func (b *Builder) ExportFunc(name string, fn uint32) {
	b.m.Exports = append(b.m.Exports, Export{Name: name, Kind: KindFunc, Idx: fn})
}

func (b *Builder) ExportMemory(name string, mem uint32) {
	b.m.Exports = append(b.m.Exports, Export{Name: name, Kind: KindMemory, Idx: mem})
}

// Data places init at a constant offset in memory 0.
func (b *Builder) Data(offset int32, init []byte) {
	b.m.Data = append(b.m.Data, DataSegment{Offset: ConstExpr(offset), Init: init})
}

// Build returns the assembled module. The builder must not be reused.
func (b *Builder) Build() *Module {
	return &b.m
}
