// Package binary appends WebAssembly binary encodings to byte slices.
package binary

import "encoding/binary"

// AppendU32 appends v as unsigned LEB128.
func AppendU32(b []byte, v uint32) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// AppendS64 appends v as signed LEB128. i32 immediates use it as well: a
// sign-extended i32 encodes to the same bytes.
func AppendS64(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		// done once the remaining bits are all sign bits of c
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

// AppendName appends a length-prefixed UTF-8 name.
func AppendName(b []byte, s string) []byte {
	b = AppendU32(b, uint32(len(s)))
	return append(b, s...)
}

// AppendSized appends data prefixed by its byte length, the framing of
// sections and function bodies.
func AppendSized(b []byte, data []byte) []byte {
	b = AppendU32(b, uint32(len(data)))
	return append(b, data...)
}

func AppendU32LE(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}
