package preview1

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/wippyai/wasm-workspace/host"
)

// Clock IDs.
const (
	ClockRealtime         = 0
	ClockMonotonic        = 1
	ClockProcessCPUTimeID = 2
	ClockThreadCPUTimeID  = 3
)

// randomChunk bounds a single crypto/rand read.
const randomChunk = 1 << 16

var processStart = time.Now()

// environ is always empty.
func environSizesGet(c *host.Call) error {
	mem, err := c.Memory()
	if err != nil {
		c.Return(ErrnoFault)
		return nil
	}
	if mem.WriteU32(c.U32(0), 0) != nil || mem.WriteU32(c.U32(1), 0) != nil {
		c.Return(ErrnoFault)
		return nil
	}
	c.Return(ErrnoSuccess)
	return nil
}

func environGet(c *host.Call) error {
	c.Return(ErrnoSuccess)
	return nil
}

// procExit only records the exit code; the guest keeps running until its
// entry point returns.
func procExit(c *host.Call) error {
	c.Log(fmt.Sprintf("proc_exit(%d)", int32(c.U32(0))))
	return nil
}

func randomGet(c *host.Call) error {
	ptr, n := c.U32(0), c.U32(1)
	mem, err := c.Memory()
	if err != nil {
		c.Return(ErrnoFault)
		return nil
	}
	if uint64(ptr)+uint64(n) > uint64(mem.Size()) {
		c.Return(ErrnoFault)
		return nil
	}
	buf := make([]byte, min(n, randomChunk))
	for off := uint32(0); off < n; {
		chunk := buf[:min(n-off, uint32(len(buf)))]
		if _, err := rand.Read(chunk); err != nil {
			return fmt.Errorf("random_get: %w", err)
		}
		if err := mem.Write(ptr+off, chunk); err != nil {
			c.Return(ErrnoFault)
			return nil
		}
		off += uint32(len(chunk))
	}
	c.Return(ErrnoSuccess)
	return nil
}

// clockTimeGet writes nanoseconds: wall time for the realtime clock and time
// since host start for the others.
func clockTimeGet(c *host.Call) error {
	var ns uint64
	switch c.U32(0) {
	case ClockRealtime:
		ns = uint64(time.Now().UnixNano())
	case ClockMonotonic, ClockProcessCPUTimeID, ClockThreadCPUTimeID:
		ns = uint64(time.Since(processStart).Nanoseconds())
	default:
		c.Return(ErrnoInval)
		return nil
	}
	mem, err := c.Memory()
	if err != nil {
		c.Return(ErrnoFault)
		return nil
	}
	if err := mem.WriteU64(c.U32(2), ns); err != nil {
		c.Return(ErrnoFault)
		return nil
	}
	c.Return(ErrnoSuccess)
	return nil
}
