package transcoder

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/wasm-workspace/transcoder/internal/abi"
)

// testMemory is a flat linear memory with a bump allocator. Address 0 is
// never handed out so a zero pointer always means "no allocation".
type testMemory struct {
	data   []byte
	next   uint32
	allocs []allocCall
	fail   error
}

type allocCall struct {
	size, align uint32
}

func newTestMemory(size uint32) *testMemory {
	return &testMemory{data: make([]byte, size), next: 16}
}

func (m *testMemory) Size() uint32 { return uint32(len(m.data)) }

func (m *testMemory) Alloc(size, align uint32) (uint32, error) {
	if m.fail != nil {
		return 0, m.fail
	}
	m.allocs = append(m.allocs, allocCall{size, align})
	ptr := abi.AlignTo(m.next, align)
	if uint64(ptr)+uint64(size) > uint64(len(m.data)) {
		return 0, fmt.Errorf("out of memory")
	}
	m.next = ptr + size
	return ptr, nil
}

func (m *testMemory) check(offset, length uint32) error {
	if !abi.InRange(offset, length, m.Size()) {
		return fmt.Errorf("access [%d, %d) outside %d bytes", offset, uint64(offset)+uint64(length), len(m.data))
	}
	return nil
}

func (m *testMemory) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.data[offset:offset+length])
	return out, nil
}

func (m *testMemory) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *testMemory) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *testMemory) ReadU16(offset uint32) (uint16, error) {
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}

func (m *testMemory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *testMemory) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}

func (m *testMemory) WriteU8(offset uint32, v uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.data[offset] = v
	return nil
}

func (m *testMemory) WriteU16(offset uint32, v uint16) error {
	if err := m.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[offset:], v)
	return nil
}

func (m *testMemory) WriteU32(offset uint32, v uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[offset:], v)
	return nil
}

func (m *testMemory) WriteU64(offset uint32, v uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[offset:], v)
	return nil
}
