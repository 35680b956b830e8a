// Package layout computes sizes, alignments and offsets for the value shapes
// exchanged with guests.
//
// # Layout Rules
//
//   - Primitives: size equals alignment (u8=1, u32=4, u64=8)
//   - Strings and lists: an 8-byte {ptr, len} header, content elsewhere
//   - Records: fields laid out in declaration order, each aligned
//   - Options and results: a discriminant, then the payload at
//     PayloadOffset (the discriminant aligned up to the payload alignment)
//
// Lists never inspect their element type, so a record that contains a list
// of itself has a finite layout.
//
// This package is internal to the transcoder.
package layout
