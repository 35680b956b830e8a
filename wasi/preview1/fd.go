package preview1

import (
	"strings"

	"github.com/wippyai/wasm-workspace/host"
)

// fdWrite diverts stdout and stderr into the invocation log, one entry per
// line. Text after the last newline is logged as its own line.
func fdWrite(c *host.Call) error {
	fd, iovs, iovsLen, nwrittenPtr := c.U32(0), c.U32(1), c.U32(2), c.U32(3)
	if fd != FdStdout && fd != FdStderr {
		c.Return(ErrnoBadf)
		return nil
	}
	mem, err := c.Memory()
	if err != nil {
		c.Return(ErrnoFault)
		return nil
	}

	iovSize := uint64(iovsLen) * 8
	if iovSize > uint64(mem.Size()) {
		c.Return(ErrnoFault)
		return nil
	}
	view, err := mem.View(iovs, uint32(iovSize))
	if err != nil {
		c.Return(ErrnoFault)
		return nil
	}

	var text strings.Builder
	var written uint32
	for i := uint32(0); i < iovsLen; i++ {
		ptr, err := view.Uint32(i * 8)
		if err != nil {
			c.Return(ErrnoFault)
			return nil
		}
		n, err := view.Uint32(i*8 + 4)
		if err != nil {
			c.Return(ErrnoFault)
			return nil
		}
		if n == 0 {
			continue
		}
		data, err := mem.Read(ptr, n)
		if err != nil {
			c.Return(ErrnoFault)
			return nil
		}
		text.Write(data)
		written += n
	}

	for _, line := range splitLines(text.String()) {
		c.Log(line)
	}
	if err := mem.WriteU32(nwrittenPtr, written); err != nil {
		c.Return(ErrnoFault)
		return nil
	}
	c.Return(ErrnoSuccess)
	return nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ToValidUTF8(s, "�")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

func fdClose(c *host.Call) error {
	if !isStdio(c.U32(0)) {
		c.Return(ErrnoBadf)
		return nil
	}
	c.Return(ErrnoSuccess)
	return nil
}

// fdSeek accepts any seek on stdio and reports offset 0.
func fdSeek(c *host.Call) error {
	if !isStdio(c.U32(0)) {
		c.Return(ErrnoBadf)
		return nil
	}
	mem, err := c.Memory()
	if err != nil {
		c.Return(ErrnoFault)
		return nil
	}
	if err := mem.WriteU64(c.U32(3), 0); err != nil {
		c.Return(ErrnoFault)
		return nil
	}
	c.Return(ErrnoSuccess)
	return nil
}

// fdFdstatGet reports stdio as character devices with no rights bits.
//
//	fs_filetype u8 @0, fs_flags u16 @2, rights_base u64 @8, rights_inheriting u64 @16
func fdFdstatGet(c *host.Call) error {
	if !isStdio(c.U32(0)) {
		c.Return(ErrnoBadf)
		return nil
	}
	mem, err := c.Memory()
	if err != nil {
		c.Return(ErrnoFault)
		return nil
	}
	stat := make([]byte, 24)
	stat[0] = filetypeCharacterDevice
	if err := mem.Write(c.U32(1), stat); err != nil {
		c.Return(ErrnoFault)
		return nil
	}
	c.Return(ErrnoSuccess)
	return nil
}
