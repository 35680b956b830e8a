package layout

import (
	"github.com/wippyai/wasm-workspace/transcoder/internal/abi"
	"go.bytecodealliance.org/wit"
)

// Calculator caches layouts per declaration. It is not safe for concurrent
// use; callers serialize access.
type Calculator struct {
	cache map[*wit.TypeDef]Info
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]Info),
	}
}

func (c *Calculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return Info{Size: 8, Align: 4} // [ptr: u32, len: u32]
	case *wit.TypeDef:
		return c.calculateTypeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (c *Calculator) calculateTypeDef(t *wit.TypeDef) Info {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var info Info

	switch kind := t.Kind.(type) {
	case *wit.Record:
		info = c.calculateRecord(kind)
	case *wit.List:
		info = Info{Size: 8, Align: 4}
	case *wit.Option:
		info = c.tagged(c.Calculate(kind.Type))
	case *wit.Result:
		info = c.calculateResult(kind)
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.cache[t] = info
	return info
}

func (c *Calculator) calculateRecord(r *wit.Record) Info {
	if len(r.Fields) == 0 {
		return Info{Size: 0, Align: 1}
	}

	info := Info{
		FieldOffs: make(map[string]uint32, len(r.Fields)),
		Fields:    make([]FieldLayout, 0, len(r.Fields)),
		Align:     1,
	}
	offset := uint32(0)

	for _, field := range r.Fields {
		fieldLayout := c.Calculate(field.Type)

		offset = abi.AlignTo(offset, fieldLayout.Align)
		info.FieldOffs[field.Name] = offset
		info.Fields = append(info.Fields, FieldLayout{Name: field.Name, Offset: offset})

		if fieldLayout.Align > info.Align {
			info.Align = fieldLayout.Align
		}
		offset += fieldLayout.Size
	}

	info.Size = abi.AlignTo(offset, info.Align)
	return info
}

func (c *Calculator) calculateResult(r *wit.Result) Info {
	payload := Info{Size: 0, Align: 1}
	for _, arm := range []wit.Type{r.OK, r.Err} {
		if arm == nil {
			continue
		}
		l := c.Calculate(arm)
		if l.Size > payload.Size {
			payload.Size = l.Size
		}
		if l.Align > payload.Align {
			payload.Align = l.Align
		}
	}
	return c.tagged(payload)
}

// tagged lays out a two-case discriminated union around payload.
func (c *Calculator) tagged(payload Info) Info {
	align := payload.Align
	if align < 1 {
		align = 1
	}
	payloadOffset := abi.AlignTo(abi.DiscriminantSize(2), align)

	disc := uint32(1)
	if payloadOffset >= 4 {
		disc = 4
	}

	return Info{
		Size:          abi.AlignTo(payloadOffset+payload.Size, align),
		Align:         align,
		PayloadOffset: payloadOffset,
		DiscSize:      disc,
	}
}
