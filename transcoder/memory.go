package transcoder

import (
	wasmworkspace "github.com/wippyai/wasm-workspace"
)

type Memory = wasmworkspace.Memory
type Allocator = wasmworkspace.Allocator
type MemorySizer = wasmworkspace.MemorySizer

// memorySize returns the current memory size and whether it is known.
func memorySize(mem Memory) (uint32, bool) {
	if s, ok := mem.(MemorySizer); ok {
		return s.Size(), true
	}
	return 0, false
}
