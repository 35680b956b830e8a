package runtime

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/tetratelabs/wazero/api"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-workspace/engine"
	"github.com/wippyai/wasm-workspace/errors"
	"github.com/wippyai/wasm-workspace/host"
	"github.com/wippyai/wasm-workspace/internal/tracing"
)

var (
	exitCodeSig = engine.Signature{Results: []api.ValueType{api.ValueTypeI32}}
	voidSig     = engine.Signature{}
)

// Run decodes payload (raw, base64 or double base64) and runs it.
func (h *Host) Run(ctx context.Context, payload []byte) *Result {
	bin, err := DecodePayload(payload)
	if err != nil {
		return failed("", err, nil)
	}
	return h.RunBinary(ctx, bin)
}

// RunBinary runs one guest binary on a fresh instance and reports the
// outcome. It never returns nil.
func (h *Host) RunBinary(ctx context.Context, bin []byte) *Result {
	h.mu.RLock()
	defer h.mu.RUnlock()

	inv := host.NewInvocation(ulid.Make().String())
	if h.closed {
		return failed(inv.ID, errors.NotInitialized(errors.PhaseRuntime, "host (closed)"), nil)
	}

	ctx, span := tracing.StartSpan(ctx, "workspace.invocation",
		attribute.String("invocation.id", inv.ID),
		attribute.Int("wasm.size", len(bin)))
	defer span.End()

	start := time.Now()
	res := h.invoke(ctx, inv, bin)
	enter(ctx, inv, res.State)

	fields := []zap.Field{
		zap.String("id", inv.ID),
		zap.Stringer("state", res.State),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("logs", len(res.Logs)),
	}
	if res.Err != nil {
		tracing.RecordError(span, res.Err)
		Logger().Info("invocation failed", append(fields, zap.Error(res.Err))...)
	} else {
		tracing.SetOK(span)
		Logger().Debug("invocation completed", append(fields, zap.Int32("result", *res.Value))...)
	}
	return res
}

func (h *Host) invoke(ctx context.Context, inv *host.Invocation, bin []byte) *Result {
	enter(ctx, inv, StateInstantiating)
	mod, err := h.engine.LoadModule(ctx, bin)
	if err != nil {
		return failed(inv.ID, err, nil)
	}
	defer mod.Close(ctx)

	entry, err := h.link(mod)
	if err != nil {
		return failed(inv.ID, err, nil)
	}

	runCtx := host.WithInvocation(ctx, inv)
	if h.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, h.opts.Timeout)
		defer cancel()
	}

	inst, err := mod.Instantiate(runCtx)
	if err != nil {
		if fault := h.interrupted(runCtx, err); fault != nil {
			return failed(inv.ID, fault, inv.Logs())
		}
		return failed(inv.ID, err, inv.Logs())
	}
	defer inst.Close(ctx)

	enter(ctx, inv, StateRunning, attribute.String("entry", entry))
	out, err := inst.Call(runCtx, entry)
	if err != nil {
		if fault := h.interrupted(runCtx, err); fault != nil {
			return failed(inv.ID, fault, inv.Logs())
		}
		return failed(inv.ID, errors.Trap(err), inv.Logs())
	}

	var code int32
	if len(out) > 0 {
		code = int32(api.DecodeI32(out[0]))
	}
	return completed(inv.ID, code, inv.Logs())
}

// enter records that inv reached s on the invocation span and the debug log.
func enter(ctx context.Context, inv *host.Invocation, s State, attrs ...attribute.KeyValue) {
	tracing.Event(ctx, "invocation."+s.String(), attrs...)
	if ce := Logger().Check(zap.DebugLevel, "invocation state"); ce != nil {
		ce.Write(zap.String("id", inv.ID), zap.Stringer("state", s))
	}
}

// interrupted reports a timeout or cancellation as a runtime fault, or nil
// when the context is still live.
func (h *Host) interrupted(ctx context.Context, cause error) error {
	switch {
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.New(errors.PhaseRuntime, errors.KindTimeout).
			Detail("execution exceeded %s", h.opts.Timeout).
			Cause(cause).
			Build()
	case stderrors.Is(ctx.Err(), context.Canceled):
		return errors.New(errors.PhaseRuntime, errors.KindTrap).
			Detail("invocation cancelled").
			Cause(cause).
			Build()
	}
	return nil
}

// link checks everything a guest needs before any of its code runs and
// returns the entry point to call.
func (h *Host) link(mod *engine.WazeroModule) (string, error) {
	if err := h.registry.Check(mod.Imports()); err != nil {
		return "", err
	}
	if !mod.HasMemoryExport(engine.MemoryExport) {
		return "", errors.MissingExport(engine.MemoryExport, "capability results")
	}
	realloc, ok := mod.Export(engine.CabiRealloc)
	if !ok {
		return "", errors.MissingExport(engine.CabiRealloc, "guest allocator")
	}
	if want := engine.ReallocSignature(); !realloc.Signature.Equal(want) {
		return "", errors.SignatureMismatch("export", engine.CabiRealloc, want.String(), realloc.Signature.String())
	}
	return h.entryPoint(mod)
}

// entryPoint picks the first configured export taking no arguments and
// returning an i32 exit code (or nothing).
func (h *Host) entryPoint(mod *engine.WazeroModule) (string, error) {
	for _, name := range h.opts.EntryPoints {
		exp, ok := mod.Export(name)
		if !ok {
			continue
		}
		if !exp.Signature.Equal(exitCodeSig) && !exp.Signature.Equal(voidSig) {
			return "", errors.SignatureMismatch("export", name, exitCodeSig.String(), exp.Signature.String())
		}
		return name, nil
	}
	return "", errors.MissingExport(strings.Join(h.opts.EntryPoints, " or "), "entry point")
}
