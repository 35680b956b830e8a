package engine

import (
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"

	wasmworkspace "github.com/wippyai/wasm-workspace"
	"github.com/wippyai/wasm-workspace/errors"
)

// ErrStaleView is returned when a View is used after an allocation may have
// moved or grown the memory it points into.
var ErrStaleView = errors.New(errors.PhaseHost, errors.KindStaleView).
	Detail("memory view used after a guest allocation").
	Build()

// GuestMemory is the owning handle to one guest's linear memory. Reads copy
// out and writes copy in, so no host slice outlives a single call. Code that
// needs the live bytes takes a View, which is invalidated by the next
// allocation.
type GuestMemory struct {
	mem   api.Memory
	epoch atomic.Uint64
}

// NewGuestMemory wraps mem.
func NewGuestMemory(mem api.Memory) *GuestMemory {
	return &GuestMemory{mem: mem}
}

// Epoch returns the number of allocations observed so far.
func (m *GuestMemory) Epoch() uint64 {
	return m.epoch.Load()
}

// invalidate bumps the epoch, staling every outstanding View.
func (m *GuestMemory) invalidate() {
	m.epoch.Add(1)
}

func (m *GuestMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

func (m *GuestMemory) outOfBounds(offset, length uint32) error {
	return errors.OutOfBounds(errors.PhaseDecode, nil, offset, length, m.Size())
}

func (m *GuestMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, m.outOfBounds(offset, length)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *GuestMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseEncode, nil, offset, uint32(len(data)), m.Size())
	}
	return nil
}

func (m *GuestMemory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 1)
	}
	return v, nil
}

func (m *GuestMemory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 2)
	}
	return v, nil
}

func (m *GuestMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 4)
	}
	return v, nil
}

func (m *GuestMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 8)
	}
	return v, nil
}

func (m *GuestMemory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return errors.OutOfBounds(errors.PhaseEncode, nil, offset, 1, m.Size())
	}
	return nil
}

func (m *GuestMemory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseEncode, nil, offset, 2, m.Size())
	}
	return nil
}

func (m *GuestMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseEncode, nil, offset, 4, m.Size())
	}
	return nil
}

func (m *GuestMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseEncode, nil, offset, 8, m.Size())
	}
	return nil
}

// View returns a bounded window over [offset, offset+length). The range is
// checked against the current size now and the epoch again on every use.
func (m *GuestMemory) View(offset, length uint32) (View, error) {
	if _, ok := m.mem.Read(offset, length); !ok {
		return View{}, m.outOfBounds(offset, length)
	}
	return View{mem: m, epoch: m.Epoch(), offset: offset, length: length}, nil
}

// View is a borrowed window into guest memory. It must not be used across an
// allocation.
type View struct {
	mem    *GuestMemory
	epoch  uint64
	offset uint32
	length uint32
}

func (v View) Offset() uint32 { return v.offset }
func (v View) Len() uint32    { return v.length }

// Bytes returns the live bytes. Writes through the slice land in guest
// memory.
func (v View) Bytes() ([]byte, error) {
	if v.mem == nil {
		return nil, errors.NotInitialized(errors.PhaseHost, "memory view")
	}
	if v.mem.Epoch() != v.epoch {
		return nil, ErrStaleView
	}
	data, ok := v.mem.mem.Read(v.offset, v.length)
	if !ok {
		return nil, v.mem.outOfBounds(v.offset, v.length)
	}
	return data, nil
}

// Uint32 reads the little-endian u32 at off within the view.
func (v View) Uint32(off uint32) (uint32, error) {
	data, err := v.Bytes()
	if err != nil {
		return 0, err
	}
	if uint64(off)+4 > uint64(len(data)) {
		return 0, errors.OutOfBounds(errors.PhaseDecode, nil, v.offset+off, 4, v.offset+v.length)
	}
	return uint32(data[off]) | uint32(data[off+1])<<8 | uint32(data[off+2])<<16 | uint32(data[off+3])<<24, nil
}

var (
	_ wasmworkspace.Memory      = (*GuestMemory)(nil)
	_ wasmworkspace.MemorySizer = (*GuestMemory)(nil)
)
