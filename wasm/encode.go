package wasm

import (
	"github.com/wippyai/wasm-workspace/wasm/internal/binary"
)

// Encode encodes the module to WebAssembly binary format. Empty sections
// are omitted.
func (m *Module) Encode() []byte {
	out := binary.AppendU32LE(nil, Magic)
	out = binary.AppendU32LE(out, Version)

	out = appendSection(out, SectionType, len(m.Types), func(b []byte, i int) []byte {
		ft := m.Types[i]
		b = append(b, FuncTypeByte)
		b = appendValTypes(b, ft.Params)
		return appendValTypes(b, ft.Results)
	})

	out = appendSection(out, SectionImport, len(m.Imports), func(b []byte, i int) []byte {
		imp := m.Imports[i]
		b = binary.AppendName(b, imp.Module)
		b = binary.AppendName(b, imp.Name)
		b = append(b, imp.Desc.Kind)
		switch imp.Desc.Kind {
		case KindFunc:
			b = binary.AppendU32(b, imp.Desc.TypeIdx)
		case KindMemory:
			if imp.Desc.Memory != nil {
				b = appendLimits(b, imp.Desc.Memory.Limits)
			}
		}
		return b
	})

	out = appendSection(out, SectionFunction, len(m.Funcs), func(b []byte, i int) []byte {
		return binary.AppendU32(b, m.Funcs[i])
	})

	out = appendSection(out, SectionMemory, len(m.Memories), func(b []byte, i int) []byte {
		return appendLimits(b, m.Memories[i].Limits)
	})

	out = appendSection(out, SectionGlobal, len(m.Globals), func(b []byte, i int) []byte {
		g := m.Globals[i]
		var mut byte
		if g.Type.Mutable {
			mut = 1
		}
		b = append(b, byte(g.Type.ValType), mut)
		return append(b, g.Init...)
	})

	out = appendSection(out, SectionExport, len(m.Exports), func(b []byte, i int) []byte {
		exp := m.Exports[i]
		b = binary.AppendName(b, exp.Name)
		b = append(b, exp.Kind)
		return binary.AppendU32(b, exp.Idx)
	})

	out = appendSection(out, SectionCode, len(m.Code), func(b []byte, i int) []byte {
		fn := m.Code[i]
		body := binary.AppendU32(nil, uint32(len(fn.Locals)))
		for _, local := range fn.Locals {
			body = binary.AppendU32(body, local.Count)
			body = append(body, byte(local.ValType))
		}
		body = append(body, fn.Code...)
		return binary.AppendSized(b, body)
	})

	out = appendSection(out, SectionData, len(m.Data), func(b []byte, i int) []byte {
		d := m.Data[i]
		b = binary.AppendU32(b, 0) // active, memory 0
		b = append(b, d.Offset...)
		return binary.AppendSized(b, d.Init)
	})

	return out
}

// appendSection frames n entries, each produced by entry, as section id.
func appendSection(out []byte, id byte, n int, entry func(b []byte, i int) []byte) []byte {
	if n == 0 {
		return out
	}
	body := binary.AppendU32(nil, uint32(n))
	for i := 0; i < n; i++ {
		body = entry(body, i)
	}
	out = append(out, id)
	return binary.AppendSized(out, body)
}

func appendValTypes(b []byte, types []ValType) []byte {
	b = binary.AppendU32(b, uint32(len(types)))
	for _, t := range types {
		b = append(b, byte(t))
	}
	return b
}

func appendLimits(b []byte, l Limits) []byte {
	if l.Max == nil {
		b = append(b, 0)
		return binary.AppendU32(b, l.Min)
	}
	b = append(b, LimitsHasMax)
	b = binary.AppendU32(b, l.Min)
	return binary.AppendU32(b, *l.Max)
}
