// Package transcoder moves values between the host and guest linear memory
// using a Canonical-ABI-style layout.
//
// Shapes are declared once with the go.bytecodealliance.org/wit type model
// and a single generic Encoder/Decoder pair walks the declaration:
//
//	node := transcoder.Recursive("bookmark-node", func(self *wit.TypeDef) []wit.Field {
//		return []wit.Field{
//			transcoder.Field("id", transcoder.String),
//			transcoder.Field("children", transcoder.Option(transcoder.List(self))),
//		}
//	})
//	ptr, err := enc.Encode(node, map[string]any{"id": "1", "children": nil}, mem, alloc)
//
// # Memory Layout
//
//	Type            Size    Alignment
//	──────────────────────────────────
//	bool/u8         1       1
//	u16             2       2
//	u32/s32         4       4
//	u64/s64         8       8
//	string          8       4 (ptr + len)
//	list<T>         8       4 (ptr + len)
//	record          sum     max field align
//	option<T>       disc + T, T at PayloadOffset
//	result<O, E>    disc + max(O, E)
//
// Zero-length strings and lists are written as ptr=0, len=0 without
// allocating. Discriminants are written across the whole gap before the
// payload and read from the low byte; anything but 0 or 1 is a decode error.
//
// # Dynamic Values
//
//	record  map[string]any
//	option  nil (absent) or the value; nil pointers, slices and maps are absent
//	list    []any on decode, any slice on encode
//	result  Result (a map with a single "ok" or "err" key is accepted on encode)
//
// # Allocation
//
// Every allocation goes through the Allocator; the codec never frees.
// Memory is re-read on every access so growth caused by an allocation is
// always observed.
//
// # Thread Safety
//
// Encoder, Decoder and LayoutCalculator are safe for concurrent use.
//
// # Error Handling
//
//	[decode] out_of_bounds at parent-id: range [70000, 70000+4) exceeds memory size 65536
//	[encode] field_missing at bookmark-node: required field "title" not found
package transcoder
