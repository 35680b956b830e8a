package runtime

import (
	"context"

	"github.com/wippyai/wasm-workspace/errors"
)

// Compiler turns guest source into a binary. The output goes through
// DecodePayload, so a compiler may return raw or base64 bytes.
type Compiler interface {
	Compile(ctx context.Context, source string) ([]byte, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, source string) ([]byte, error)

func (f CompilerFunc) Compile(ctx context.Context, source string) ([]byte, error) {
	return f(ctx, source)
}

// RunSource compiles source with the configured Compiler and runs the
// result.
func (h *Host) RunSource(ctx context.Context, source string) *Result {
	if h.opts.Compiler == nil {
		return failed("", errors.NotInitialized(errors.PhaseLoad, "compiler"), nil)
	}
	bin, err := h.opts.Compiler.Compile(ctx, source)
	if err != nil {
		return failed("", errors.Load("compile source", err), nil)
	}
	return h.Run(ctx, bin)
}
