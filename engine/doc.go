// Package engine wraps wazero for the workspace host.
//
// # Architecture
//
// The engine package provides three main types:
//
//	WazeroEngine   - Owns the wazero runtime and the shared host modules
//	WazeroModule   - A compiled guest; reports its imports and exports
//	WazeroInstance - One running guest with its own linear memory
//
// Host modules are defined once per engine. Per-invocation state does not
// live in the host module; it travels in the context passed to each call.
//
// # Guest Memory
//
// GuestMemory is the only way host code touches linear memory. Plain reads
// and writes copy, so nothing aliases guest memory across an allocation.
// View gives direct access to a range and reports ErrStaleView once any
// allocation has happened since it was taken:
//
//	v, _ := mem.View(iovs, 8*n)
//	raw, err := v.Bytes() // ok
//	alloc.Alloc(16, 4)
//	raw, err = v.Bytes()  // ErrStaleView
//
// # Allocation
//
// GuestAllocator calls the guest's cabi_realloc(0, 0, align, size). The host
// never reallocates or frees. When the export is missing every Alloc fails
// with a linking error before any byte is written.
//
// # Timeouts
//
// With Config.CloseOnContextDone the guest is closed when its call context
// ends; the call then returns a sys.ExitError.
//
// # Thread Safety
//
// WazeroEngine and WazeroModule are safe for concurrent use.
// WazeroInstance is NOT thread-safe and should be used by a single goroutine.
package engine
