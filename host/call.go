package host

import (
	"context"
	stderrors "errors"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-workspace/engine"
	"github.com/wippyai/wasm-workspace/errors"
	"github.com/wippyai/wasm-workspace/transcoder"
)

// Call is the context of one host function invocation. It is valid only
// until the handler returns.
type Call struct {
	ctx       context.Context
	module    api.Module
	memory    *engine.GuestMemory
	alloc     *engine.GuestAllocator
	inv       *Invocation
	codec     *Codec
	Stack     []uint64
	Namespace string
	Name      string
}

func newCall(ctx context.Context, mod api.Module, stack []uint64, codec *Codec, ns, name string) *Call {
	c := &Call{
		ctx:       ctx,
		module:    mod,
		inv:       InvocationFrom(ctx),
		codec:     codec,
		Stack:     stack,
		Namespace: ns,
		Name:      name,
	}
	if mem := mod.Memory(); mem != nil {
		c.memory = engine.NewGuestMemory(mem)
	}
	return c
}

func (c *Call) Context() context.Context { return c.ctx }

// Memory returns the caller's linear memory.
func (c *Call) Memory() (*engine.GuestMemory, error) {
	if c.memory == nil {
		return nil, errors.MissingExport(engine.MemoryExport, "capability results")
	}
	return c.memory, nil
}

// Allocator resolves the caller's cabi_realloc on first use.
func (c *Call) Allocator() *engine.GuestAllocator {
	if c.alloc == nil {
		mem := c.memory
		if mem == nil {
			mem = engine.NewGuestMemory(nil)
		}
		c.alloc = engine.NewGuestAllocator(c.ctx, c.module, mem)
	}
	return c.alloc
}

// Log appends a line to the invocation log. Outside an invocation the line
// goes to the host logger.
func (c *Call) Log(line string) {
	if c.inv != nil {
		c.inv.Log(line)
		return
	}
	Logger().Info("guest log without invocation",
		zap.String("function", c.Namespace+"."+c.Name),
		zap.String("line", line))
}

// Codec returns the encoder and decoder shared by the registry.
func (c *Call) Codec() *Codec {
	return c.codec
}

// Invocation returns the bound invocation, or nil.
func (c *Call) Invocation() *Invocation {
	return c.inv
}

// U32 returns core parameter i as an unsigned 32-bit value.
func (c *Call) U32(i int) uint32 {
	return api.DecodeU32(c.Stack[i])
}

// String decodes the (ptr, len) pair at parameter positions i and i+1.
func (c *Call) String(i int) (string, error) {
	mem, err := c.Memory()
	if err != nil {
		return "", err
	}
	return c.codec.Decoder.ReadString(c.U32(i), c.U32(i+1), mem)
}

// Return sets the first core result.
func (c *Call) Return(v uint32) {
	c.Stack[0] = api.EncodeU32(v)
}

// ReturnResult encodes res as t (a result<ok, err> declaration) in guest
// memory and returns its address to the guest.
func (c *Call) ReturnResult(t *wit.TypeDef, res transcoder.Result) error {
	mem, err := c.Memory()
	if err != nil {
		return err
	}
	ptr, err := c.codec.Encoder.Encode(t, res, mem, c.Allocator())
	if err != nil {
		return err
	}
	c.Return(ptr)
	return nil
}

// Fail returns the Err arm carrying err's text. Capability errors carry only
// the host engine's text.
func (c *Call) Fail(t *wit.TypeDef, err error) error {
	return c.ReturnResult(t, transcoder.Err(GuestMessage(err)))
}

// GuestMessage is the text a guest sees for err.
func GuestMessage(err error) string {
	var capErr *errors.Error
	if stderrors.As(err, &capErr) && capErr.Phase == errors.PhaseCapability && capErr.Cause != nil {
		return capErr.Cause.Error()
	}
	return err.Error()
}
