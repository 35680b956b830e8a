package transcoder

import (
	"strings"

	"go.bytecodealliance.org/wit"
)

// Primitive shapes.
var (
	Bool   = wit.Bool{}
	U8     = wit.U8{}
	U16    = wit.U16{}
	U32    = wit.U32{}
	S32    = wit.S32{}
	U64    = wit.U64{}
	S64    = wit.S64{}
	String = wit.String{}
)

func Field(name string, t wit.Type) wit.Field {
	return wit.Field{Name: name, Type: t}
}

func Record(name string, fields ...wit.Field) *wit.TypeDef {
	return &wit.TypeDef{Name: &name, Kind: &wit.Record{Fields: fields}}
}

// Recursive declares a record whose fields may refer to the record itself,
// e.g. through option<list<self>>.
func Recursive(name string, fields func(self *wit.TypeDef) []wit.Field) *wit.TypeDef {
	self := &wit.TypeDef{Name: &name}
	self.Kind = &wit.Record{Fields: fields(self)}
	return self
}

func Option(t wit.Type) *wit.TypeDef {
	return &wit.TypeDef{Kind: &wit.Option{Type: t}}
}

func List(t wit.Type) *wit.TypeDef {
	return &wit.TypeDef{Kind: &wit.List{Type: t}}
}

// ResultOf declares result<ok, err>. Either arm may be nil.
func ResultOf(ok, err wit.Type) *wit.TypeDef {
	return &wit.TypeDef{Kind: &wit.Result{OK: ok, Err: err}}
}

// TypeString renders a declaration the way it reads in WIT.
func TypeString(t wit.Type) string {
	var b strings.Builder
	writeType(&b, t)
	return b.String()
}

func writeType(b *strings.Builder, t wit.Type) {
	switch typ := t.(type) {
	case nil:
		b.WriteByte('_')
	case wit.Bool:
		b.WriteString("bool")
	case wit.U8:
		b.WriteString("u8")
	case wit.U16:
		b.WriteString("u16")
	case wit.U32:
		b.WriteString("u32")
	case wit.S32:
		b.WriteString("s32")
	case wit.U64:
		b.WriteString("u64")
	case wit.S64:
		b.WriteString("s64")
	case wit.String:
		b.WriteString("string")
	case *wit.TypeDef:
		if typ.Name != nil {
			b.WriteString(*typ.Name)
			return
		}
		switch kind := typ.Kind.(type) {
		case *wit.List:
			b.WriteString("list<")
			writeType(b, kind.Type)
			b.WriteByte('>')
		case *wit.Option:
			b.WriteString("option<")
			writeType(b, kind.Type)
			b.WriteByte('>')
		case *wit.Result:
			b.WriteString("result<")
			writeType(b, kind.OK)
			b.WriteString(", ")
			writeType(b, kind.Err)
			b.WriteByte('>')
		case *wit.Record:
			b.WriteString("record")
		case wit.Type:
			writeType(b, kind)
		default:
			b.WriteString("unknown")
		}
	default:
		b.WriteString("unknown")
	}
}
