package transcoder

import (
	stderrors "errors"
	"reflect"
	"strconv"
	"unicode/utf8"

	"github.com/wippyai/wasm-workspace/errors"
	"github.com/wippyai/wasm-workspace/transcoder/internal/abi"
	"go.bytecodealliance.org/wit"
)

// Safety limits applied before allocating or reading.
const (
	MaxStringSize = abi.MaxStringSize
	MaxListLength = abi.MaxListLength
	MaxAlloc      = abi.MaxAlloc
)

var (
	safeMulU32     = abi.SafeMulU32
	typeName       = abi.TypeName
	coerceToUint32 = abi.CoerceToUint32
	coerceToInt32  = abi.CoerceToInt32
	coerceToUint64 = abi.CoerceToUint64
	coerceToInt64  = abi.CoerceToInt64
)

// Encoder lowers host values into guest memory.
type Encoder struct {
	layout *LayoutCalculator
}

func NewEncoder() *Encoder {
	return &Encoder{layout: NewLayoutCalculator()}
}

// NewEncoderWithLayout shares a layout cache, typically with a Decoder.
func NewEncoderWithLayout(lc *LayoutCalculator) *Encoder {
	return &Encoder{layout: lc}
}

// WriteString copies s into a fresh guest allocation.
// Empty strings are returned as (0, 0) without allocating.
func (e *Encoder) WriteString(s string, mem Memory, alloc Allocator) (uint32, uint32, error) {
	return e.writeString(s, mem, alloc, nil)
}

// Encode allocates sizeof(t) and stores value there, returning the address.
func (e *Encoder) Encode(t wit.Type, value any, mem Memory, alloc Allocator) (uint32, error) {
	info := e.layout.Calculate(t)
	addr, err := e.allocate(alloc, info.Size, info.Align, nil)
	if err != nil {
		return 0, err
	}
	if err := e.storeValue(t, value, addr, mem, alloc, nil); err != nil {
		return 0, err
	}
	return addr, nil
}

// Store writes value at addr, which must already hold sizeof(t) bytes.
func (e *Encoder) Store(t wit.Type, value any, addr uint32, mem Memory, alloc Allocator) error {
	return e.storeValue(t, value, addr, mem, alloc, nil)
}

// EncodeList allocates len*stride bytes once and stores every element in
// place. items may be any slice.
func (e *Encoder) EncodeList(elem wit.Type, items any, mem Memory, alloc Allocator) (uint32, uint32, error) {
	return e.encodeList(elem, items, mem, alloc, nil)
}

func (e *Encoder) allocate(alloc Allocator, size, align uint32, path []string) (uint32, error) {
	if size == 0 {
		return 0, nil
	}
	if size > MaxAlloc {
		return 0, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Path(path...).
			Detail("allocation of %d bytes exceeds maximum %d", size, MaxAlloc).
			Build()
	}
	if alloc == nil {
		return 0, errors.NotInitialized(errors.PhaseEncode, "allocator")
	}
	ptr, err := alloc.Alloc(size, align)
	if err != nil {
		var structured *errors.Error
		if stderrors.As(err, &structured) {
			return 0, err
		}
		failure := errors.AllocationFailed(errors.PhaseEncode, size, align)
		failure.Path = path
		failure.Cause = err
		return 0, failure
	}
	return ptr, nil
}

func (e *Encoder) writeString(s string, mem Memory, alloc Allocator, path []string) (uint32, uint32, error) {
	if !utf8.ValidString(s) {
		return 0, 0, errors.InvalidUTF8(errors.PhaseEncode, path, []byte(s))
	}
	if len(s) > MaxStringSize {
		return 0, 0, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Path(path...).
			Detail("string size %d exceeds maximum %d", len(s), MaxStringSize).
			Build()
	}
	dataLen := uint32(len(s))
	if dataLen == 0 {
		return 0, 0, nil
	}
	dataAddr, err := e.allocate(alloc, dataLen, 1, path)
	if err != nil {
		return 0, 0, err
	}
	if err := mem.Write(dataAddr, []byte(s)); err != nil {
		return 0, 0, writeFailed(path, err)
	}
	return dataAddr, dataLen, nil
}

func (e *Encoder) encodeList(elem wit.Type, items any, mem Memory, alloc Allocator, path []string) (uint32, uint32, error) {
	if items == nil {
		return 0, 0, nil
	}
	rv := reflect.ValueOf(items)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(items), "list<"+TypeString(elem)+">")
	}

	n := rv.Len()
	if n > MaxListLength {
		return 0, 0, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Path(path...).
			Detail("list length %d exceeds maximum %d", n, MaxListLength).
			Build()
	}
	length := uint32(n)
	if length == 0 {
		return 0, 0, nil
	}

	elemLayout := e.layout.Calculate(elem)
	dataSize, ok := safeMulU32(length, elemLayout.Size)
	if !ok {
		return 0, 0, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Path(path...).
			Detail("list data size overflow: %d * %d", length, elemLayout.Size).
			Build()
	}

	dataAddr, err := e.allocate(alloc, dataSize, elemLayout.Align, path)
	if err != nil {
		return 0, 0, err
	}

	for i := uint32(0); i < length; i++ {
		elemPath := appendPath(path, "["+strconv.FormatUint(uint64(i), 10)+"]")
		if err := e.storeValue(elem, rv.Index(int(i)).Interface(), dataAddr+i*elemLayout.Size, mem, alloc, elemPath); err != nil {
			return 0, 0, err
		}
	}
	return dataAddr, length, nil
}

func (e *Encoder) storeValue(witType wit.Type, value any, addr uint32, mem Memory, alloc Allocator, path []string) error {
	switch t := witType.(type) {
	case wit.Bool:
		v, ok := value.(bool)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), "bool")
		}
		var b uint8
		if v {
			b = 1
		}
		return writeFailed(path, mem.WriteU8(addr, b))

	case wit.U8:
		v, ok := abi.CoerceToUint8(value)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), "u8")
		}
		return writeFailed(path, mem.WriteU8(addr, v))

	case wit.U16:
		v, ok := abi.CoerceToUint16(value)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), "u16")
		}
		return writeFailed(path, mem.WriteU16(addr, v))

	case wit.U32:
		v, ok := coerceToUint32(value)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), "u32")
		}
		return writeFailed(path, mem.WriteU32(addr, v))

	case wit.S32:
		v, ok := coerceToInt32(value)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), "s32")
		}
		return writeFailed(path, mem.WriteU32(addr, uint32(v)))

	case wit.U64:
		v, ok := coerceToUint64(value)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), "u64")
		}
		return writeFailed(path, mem.WriteU64(addr, v))

	case wit.S64:
		v, ok := coerceToInt64(value)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), "s64")
		}
		return writeFailed(path, mem.WriteU64(addr, uint64(v)))

	case wit.String:
		s, ok := value.(string)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), "string")
		}
		ptr, length, err := e.writeString(s, mem, alloc, path)
		if err != nil {
			return err
		}
		return e.writeHeader(addr, ptr, length, mem, path)

	case *wit.TypeDef:
		return e.storeTypeDef(t, value, addr, mem, alloc, path)

	default:
		return errors.Unsupported(errors.PhaseEncode, "type "+TypeString(witType)+" for store")
	}
}

func (e *Encoder) storeTypeDef(t *wit.TypeDef, value any, addr uint32, mem Memory, alloc Allocator, path []string) error {
	switch kind := t.Kind.(type) {
	case *wit.Record:
		m, ok := value.(map[string]any)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), TypeString(t))
		}
		recordLayout := e.layout.Calculate(t)
		for _, field := range kind.Fields {
			fieldVal, exists := m[field.Name]
			if !exists {
				return errors.FieldMissing(errors.PhaseEncode, appendPath(path, TypeString(t)), field.Name)
			}
			fieldAddr := addr + recordLayout.FieldOffs[field.Name]
			if err := e.storeValue(field.Type, fieldVal, fieldAddr, mem, alloc, appendPath(path, field.Name)); err != nil {
				return err
			}
		}
		return nil

	case *wit.List:
		ptr, length, err := e.encodeList(kind.Type, value, mem, alloc, path)
		if err != nil {
			return err
		}
		return e.writeHeader(addr, ptr, length, mem, path)

	case *wit.Option:
		info := e.layout.Calculate(t)
		inner, present := optionValue(value)
		if !present {
			return e.writeDisc(addr, 0, info.DiscSize, mem, path)
		}
		if err := e.writeDisc(addr, 1, info.DiscSize, mem, path); err != nil {
			return err
		}
		return e.storeValue(kind.Type, inner, addr+info.PayloadOffset, mem, alloc, path)

	case *wit.Result:
		res, err := resultValue(value, path)
		if err != nil {
			return err
		}
		info := e.layout.Calculate(t)
		arm, disc, label := kind.OK, uint32(0), "ok"
		if res.IsErr {
			arm, disc, label = kind.Err, 1, "err"
		}
		if err := e.writeDisc(addr, disc, info.DiscSize, mem, path); err != nil {
			return err
		}
		if arm == nil {
			return nil
		}
		return e.storeValue(arm, res.Value, addr+info.PayloadOffset, mem, alloc, appendPath(path, label))

	case wit.Type:
		return e.storeValue(kind, value, addr, mem, alloc, path)

	default:
		return errors.Unsupported(errors.PhaseEncode, "type "+TypeString(t)+" for store")
	}
}

func (e *Encoder) writeHeader(addr, ptr, length uint32, mem Memory, path []string) error {
	if err := mem.WriteU32(addr, ptr); err != nil {
		return writeFailed(path, err)
	}
	return writeFailed(path, mem.WriteU32(addr+4, length))
}

func (e *Encoder) writeDisc(addr, disc, size uint32, mem Memory, path []string) error {
	if size == 4 {
		return writeFailed(path, mem.WriteU32(addr, disc))
	}
	return writeFailed(path, mem.WriteU8(addr, uint8(disc)))
}

// optionValue unwraps pointers and reports absence for nil pointers,
// slices and maps.
func optionValue(value any) (any, bool) {
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, false
		}
		return rv.Elem().Interface(), true
	case reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return nil, false
		}
	}
	return value, true
}

func resultValue(value any, path []string) (Result, error) {
	switch v := value.(type) {
	case Result:
		return v, nil
	case *Result:
		if v != nil {
			return *v, nil
		}
	case map[string]any:
		okVal, hasOk := v["ok"]
		errVal, hasErr := v["err"]
		switch {
		case hasOk && !hasErr:
			return Ok(okVal), nil
		case hasErr && !hasOk:
			return Err(errVal), nil
		}
		return Result{}, errors.InvalidData(errors.PhaseEncode, path,
			"result value must have exactly one of 'ok' or 'err'")
	}
	return Result{}, errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), "result")
}

func writeFailed(path []string, err error) error {
	if err == nil {
		return nil
	}
	return errors.New(errors.PhaseEncode, errors.KindOutOfBounds).
		Path(path...).
		Cause(err).
		Build()
}

func appendPath(path []string, elem string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, elem)
}
