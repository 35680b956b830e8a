package transcoder

import (
	stderrors "errors"
	"strconv"
	"unicode/utf8"

	"github.com/wippyai/wasm-workspace/errors"
	"github.com/wippyai/wasm-workspace/transcoder/internal/abi"
	"go.bytecodealliance.org/wit"
)

// Decoder lifts guest memory into host values. All bounds are checked
// against the memory size at the time of the read.
type Decoder struct {
	layout *LayoutCalculator
}

func NewDecoder() *Decoder {
	return &Decoder{layout: NewLayoutCalculator()}
}

func NewDecoderWithLayout(lc *LayoutCalculator) *Decoder {
	return &Decoder{layout: lc}
}

// ReadString copies length bytes at ptr and validates them as UTF-8.
// A zero length yields "" regardless of ptr.
func (d *Decoder) ReadString(ptr, length uint32, mem Memory) (string, error) {
	return d.readString(ptr, length, mem, nil)
}

// Load decodes the value of type t stored at addr.
func (d *Decoder) Load(t wit.Type, addr uint32, mem Memory) (any, error) {
	return d.loadValue(t, addr, mem, nil)
}

// DecodeResult reads the discriminant at addr and decodes only the arm it
// selects.
func (d *Decoder) DecodeResult(t wit.Type, addr uint32, mem Memory) (Result, error) {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return Result{}, errors.TypeMismatch(errors.PhaseDecode, nil, "Result", TypeString(t))
	}
	kind, ok := td.Kind.(*wit.Result)
	if !ok {
		return Result{}, errors.TypeMismatch(errors.PhaseDecode, nil, "Result", TypeString(t))
	}
	return d.loadResult(td, kind, addr, mem, nil)
}

func (d *Decoder) readString(ptr, length uint32, mem Memory, path []string) (string, error) {
	if length == 0 {
		return "", nil
	}
	if length > MaxStringSize {
		return "", errors.New(errors.PhaseDecode, errors.KindOverflow).
			Path(path...).
			Detail("string size %d exceeds maximum %d", length, MaxStringSize).
			Build()
	}
	data, err := d.read(ptr, length, mem, path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.InvalidUTF8(errors.PhaseDecode, path, data)
	}
	return string(data), nil
}

func (d *Decoder) read(ptr, length uint32, mem Memory, path []string) ([]byte, error) {
	if err := checkRange(ptr, length, mem, path); err != nil {
		return nil, err
	}
	data, err := mem.Read(ptr, length)
	if err != nil {
		return nil, readFailed(ptr, length, mem, path, err)
	}
	return data, nil
}

func (d *Decoder) readU8(addr uint32, mem Memory, path []string) (uint8, error) {
	v, err := mem.ReadU8(addr)
	if err != nil {
		return 0, readFailed(addr, 1, mem, path, err)
	}
	return v, nil
}

func (d *Decoder) readU16(addr uint32, mem Memory, path []string) (uint16, error) {
	v, err := mem.ReadU16(addr)
	if err != nil {
		return 0, readFailed(addr, 2, mem, path, err)
	}
	return v, nil
}

func (d *Decoder) readU32(addr uint32, mem Memory, path []string) (uint32, error) {
	v, err := mem.ReadU32(addr)
	if err != nil {
		return 0, readFailed(addr, 4, mem, path, err)
	}
	return v, nil
}

func (d *Decoder) readU64(addr uint32, mem Memory, path []string) (uint64, error) {
	v, err := mem.ReadU64(addr)
	if err != nil {
		return 0, readFailed(addr, 8, mem, path, err)
	}
	return v, nil
}

func (d *Decoder) readHeader(addr uint32, mem Memory, path []string) (uint32, uint32, error) {
	ptr, err := d.readU32(addr, mem, path)
	if err != nil {
		return 0, 0, err
	}
	length, err := d.readU32(addr+4, mem, path)
	if err != nil {
		return 0, 0, err
	}
	return ptr, length, nil
}

// readDisc reads a two-case tag of size bytes, matching what writeDisc
// stores.
func (d *Decoder) readDisc(addr, size uint32, mem Memory, path []string) (uint32, error) {
	var disc uint32
	if size == 4 {
		v, err := d.readU32(addr, mem, path)
		if err != nil {
			return 0, err
		}
		disc = v
	} else {
		b, err := d.readU8(addr, mem, path)
		if err != nil {
			return 0, err
		}
		disc = uint32(b)
	}
	if disc > 1 {
		return 0, errors.InvalidDiscriminant(errors.PhaseDecode, path, disc, 1)
	}
	return disc, nil
}

func (d *Decoder) loadValue(witType wit.Type, addr uint32, mem Memory, path []string) (any, error) {
	switch t := witType.(type) {
	case wit.Bool:
		v, err := d.readU8(addr, mem, path)
		if err != nil {
			return nil, err
		}
		return v != 0, nil

	case wit.U8:
		return d.readU8(addr, mem, path)

	case wit.U16:
		return d.readU16(addr, mem, path)

	case wit.U32:
		return d.readU32(addr, mem, path)

	case wit.S32:
		v, err := d.readU32(addr, mem, path)
		if err != nil {
			return nil, err
		}
		return int32(v), nil

	case wit.U64:
		return d.readU64(addr, mem, path)

	case wit.S64:
		v, err := d.readU64(addr, mem, path)
		if err != nil {
			return nil, err
		}
		return int64(v), nil

	case wit.String:
		ptr, length, err := d.readHeader(addr, mem, path)
		if err != nil {
			return nil, err
		}
		return d.readString(ptr, length, mem, path)

	case *wit.TypeDef:
		return d.loadTypeDef(t, addr, mem, path)

	default:
		return nil, errors.Unsupported(errors.PhaseDecode, "type "+TypeString(witType)+" for load")
	}
}

func (d *Decoder) loadTypeDef(t *wit.TypeDef, addr uint32, mem Memory, path []string) (any, error) {
	switch kind := t.Kind.(type) {
	case *wit.Record:
		recordLayout := d.layout.Calculate(t)
		result := make(map[string]any, len(kind.Fields))
		for _, field := range kind.Fields {
			val, err := d.loadValue(field.Type, addr+recordLayout.FieldOffs[field.Name], mem, appendPath(path, field.Name))
			if err != nil {
				return nil, err
			}
			result[field.Name] = val
		}
		return result, nil

	case *wit.List:
		return d.loadList(kind, addr, mem, path)

	case *wit.Option:
		optLayout := d.layout.Calculate(t)
		disc, err := d.readDisc(addr, optLayout.DiscSize, mem, path)
		if err != nil {
			return nil, err
		}
		if disc == 0 {
			return nil, nil
		}
		return d.loadValue(kind.Type, addr+optLayout.PayloadOffset, mem, path)

	case *wit.Result:
		return d.loadResult(t, kind, addr, mem, path)

	case wit.Type:
		return d.loadValue(kind, addr, mem, path)

	default:
		return nil, errors.Unsupported(errors.PhaseDecode, "type "+TypeString(t)+" for load")
	}
}

func (d *Decoder) loadList(kind *wit.List, addr uint32, mem Memory, path []string) ([]any, error) {
	dataAddr, length, err := d.readHeader(addr, mem, path)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return []any{}, nil
	}
	if length > MaxListLength {
		return nil, errors.New(errors.PhaseDecode, errors.KindOverflow).
			Path(path...).
			Detail("list length %d exceeds maximum %d", length, MaxListLength).
			Build()
	}

	elemLayout := d.layout.Calculate(kind.Type)
	dataSize, ok := safeMulU32(length, elemLayout.Size)
	if !ok {
		return nil, errors.New(errors.PhaseDecode, errors.KindOverflow).
			Path(path...).
			Detail("list data size overflow: %d * %d", length, elemLayout.Size).
			Build()
	}
	if err := checkRange(dataAddr, dataSize, mem, path); err != nil {
		return nil, err
	}

	result := make([]any, length)
	for i := uint32(0); i < length; i++ {
		elemPath := appendPath(path, "["+strconv.FormatUint(uint64(i), 10)+"]")
		val, err := d.loadValue(kind.Type, dataAddr+i*elemLayout.Size, mem, elemPath)
		if err != nil {
			return nil, err
		}
		result[i] = val
	}
	return result, nil
}

func (d *Decoder) loadResult(t *wit.TypeDef, kind *wit.Result, addr uint32, mem Memory, path []string) (Result, error) {
	resLayout := d.layout.Calculate(t)
	disc, err := d.readDisc(addr, resLayout.DiscSize, mem, path)
	if err != nil {
		return Result{}, err
	}
	arm, label := kind.OK, "ok"
	if disc == 1 {
		arm, label = kind.Err, "err"
	}
	res := Result{IsErr: disc == 1}
	if arm == nil {
		return res, nil
	}
	val, err := d.loadValue(arm, addr+resLayout.PayloadOffset, mem, appendPath(path, label))
	if err != nil {
		return Result{}, err
	}
	res.Value = val
	return res, nil
}

func checkRange(ptr, length uint32, mem Memory, path []string) error {
	size, known := memorySize(mem)
	if known && !abi.InRange(ptr, length, size) {
		return errors.OutOfBounds(errors.PhaseDecode, path, ptr, length, size)
	}
	return nil
}

func readFailed(ptr, length uint32, mem Memory, path []string, err error) error {
	var structured *errors.Error
	if stderrors.As(err, &structured) && structured.Phase == errors.PhaseDecode {
		return err
	}
	size, _ := memorySize(mem)
	oob := errors.OutOfBounds(errors.PhaseDecode, path, ptr, length, size)
	oob.Cause = err
	return oob
}
