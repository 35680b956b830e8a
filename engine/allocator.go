package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmworkspace "github.com/wippyai/wasm-workspace"
	"github.com/wippyai/wasm-workspace/errors"
)

var reallocSignature = Signature{
	Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
	Results: []api.ValueType{api.ValueTypeI32},
}

// ReallocSignature is the core type cabi_realloc must have.
func ReallocSignature() Signature {
	return reallocSignature
}

// GuestAllocator allocates through the guest's cabi_realloc export. It is
// resolved once and used for the duration of one host call.
type GuestAllocator struct {
	ctx      context.Context
	fn       api.Function
	mem      *GuestMemory
	err      error
	stackBuf [4]uint64
}

// NewGuestAllocator resolves cabi_realloc on mod. A guest without a usable
// export yields an allocator whose every Alloc fails with a link error.
func NewGuestAllocator(ctx context.Context, mod api.Module, mem *GuestMemory) *GuestAllocator {
	a := &GuestAllocator{ctx: ctx, mem: mem}

	fn := mod.ExportedFunction(CabiRealloc)
	if fn == nil {
		a.err = errors.MissingExport(CabiRealloc, "guest allocator")
		return a
	}
	def := fn.Definition()
	got := Signature{Params: def.ParamTypes(), Results: def.ResultTypes()}
	if !got.Equal(reallocSignature) {
		a.err = errors.New(errors.PhaseLinking, errors.KindSignatureMismatch).
			Path(CabiRealloc).
			Detail("host expects %s, guest exports %s", reallocSignature, got).
			Build()
		return a
	}
	a.fn = fn
	return a
}

// Err returns the resolution error, if any.
func (a *GuestAllocator) Err() error {
	return a.err
}

// Alloc calls cabi_realloc(0, 0, align, size). The returned range must lie
// inside current memory. Every successful call stales outstanding views.
func (a *GuestAllocator) Alloc(size, align uint32) (uint32, error) {
	if a.err != nil {
		return 0, a.err
	}

	a.stackBuf[0] = 0
	a.stackBuf[1] = 0
	a.stackBuf[2] = uint64(align)
	a.stackBuf[3] = uint64(size)
	if err := a.fn.CallWithStack(a.ctx, a.stackBuf[:]); err != nil {
		failure := errors.AllocationFailed(errors.PhaseEncode, size, align)
		failure.Cause = err
		return 0, failure
	}
	ptr := uint32(a.stackBuf[0])

	// the guest may have grown memory even if it then returned garbage
	a.mem.invalidate()

	memSize := a.mem.Size()
	if ptr == 0 || uint64(ptr)+uint64(size) > uint64(memSize) {
		Logger().Warn("cabi_realloc returned an unusable pointer",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Uint32("memory", memSize))
		return 0, errors.New(errors.PhaseEncode, errors.KindAllocation).
			Value(ptr).
			Detail("cabi_realloc returned [%d, %d) outside memory of %d bytes", ptr, uint64(ptr)+uint64(size), memSize).
			Build()
	}
	if align > 1 && ptr%align != 0 {
		return 0, errors.New(errors.PhaseEncode, errors.KindAllocation).
			Value(ptr).
			Detail("cabi_realloc returned %d, not aligned to %d", ptr, align).
			Build()
	}
	return ptr, nil
}

var _ wasmworkspace.Allocator = (*GuestAllocator)(nil)
