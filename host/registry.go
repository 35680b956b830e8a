package host

import (
	"context"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-workspace/engine"
	"github.com/wippyai/wasm-workspace/errors"
	"github.com/wippyai/wasm-workspace/internal/tracing"
	"github.com/wippyai/wasm-workspace/transcoder"
)

// Handler implements one host function. Guest-visible failures are written
// as result values by the handler itself; a returned error traps the guest.
type Handler func(c *Call) error

// Func is a host function with its flat core signature.
type Func struct {
	Handler Handler
	Params  []api.ValueType
	Results []api.ValueType
}

// Signature returns the core signature of f.
func (f Func) Signature() engine.Signature {
	return engine.Signature{Params: f.Params, Results: f.Results}
}

// Codec is the encoder/decoder pair shared by all capabilities of a
// registry.
type Codec struct {
	Encoder *transcoder.Encoder
	Decoder *transcoder.Decoder
}

func NewCodec() *Codec {
	lc := transcoder.NewLayoutCalculator()
	return &Codec{
		Encoder: transcoder.NewEncoderWithLayout(lc),
		Decoder: transcoder.NewDecoderWithLayout(lc),
	}
}

type entry struct {
	fn        Func
	canonical string
}

// Registry maps (namespace, name) to host functions. An alias is its own
// entry pointing at the same Func.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]map[string]entry
	codec *Codec
}

func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]map[string]entry),
		codec: NewCodec(),
	}
}

// Codec returns the registry's shared codec.
func (r *Registry) Codec() *Codec {
	return r.codec
}

// Register adds fn under namespace#name and every alias.
func (r *Registry) Register(namespace, name string, fn Func, aliases ...string) error {
	if fn.Handler == nil {
		return errors.Registration(errors.PhaseHost, namespace, name, errors.InvalidInput(errors.PhaseHost, "nil handler"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ns := r.funcs[namespace]
	if ns == nil {
		ns = make(map[string]entry)
		r.funcs[namespace] = ns
	}
	names := append([]string{name}, aliases...)
	for _, n := range names {
		if _, dup := ns[n]; dup {
			return errors.Registration(errors.PhaseHost, namespace, n, errors.InvalidInput(errors.PhaseHost, "already registered"))
		}
	}
	for _, n := range names {
		ns[n] = entry{fn: fn, canonical: name}
	}
	return nil
}

// Lookup returns the function registered under namespace#name.
func (r *Registry) Lookup(namespace, name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.funcs[namespace][name]
	return e.fn, ok
}

// Canonical resolves an alias to the name it was registered under.
func (r *Registry) Canonical(namespace, name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.funcs[namespace][name]
	return e.canonical, ok
}

// Namespaces returns registered namespaces sorted.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for ns := range r.funcs {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Names returns every name in namespace, aliases included, sorted.
func (r *Registry) Names(namespace string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs[namespace]))
	for n := range r.funcs[namespace] {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Check link-checks a guest's declared imports. Unknown functions are
// reported together; otherwise the first signature mismatch is returned.
func (r *Registry) Check(imports []engine.Import) error {
	var missing []string
	var mismatch error
	for _, imp := range imports {
		fn, ok := r.Lookup(imp.Namespace, imp.Name)
		if !ok {
			missing = append(missing, imp.Key())
			continue
		}
		if want := fn.Signature(); mismatch == nil && !want.Equal(imp.Signature) {
			mismatch = errors.SignatureMismatch(imp.Namespace, imp.Name, want.String(), imp.Signature.String())
		}
	}
	if len(missing) > 0 {
		return errors.NewMissingImportsError(missing)
	}
	return mismatch
}

// Install defines one host module per namespace on e. Handlers read their
// invocation from the call context, so one installation serves every guest.
func (r *Registry) Install(ctx context.Context, e *engine.WazeroEngine) error {
	for _, ns := range r.Namespaces() {
		names := r.Names(ns)
		funcs := make([]engine.HostFunction, 0, len(names))
		for _, name := range names {
			fn, _ := r.Lookup(ns, name)
			funcs = append(funcs, engine.HostFunction{
				Name:    name,
				Params:  fn.Params,
				Results: fn.Results,
				Fn:      r.wrap(ns, name, fn),
			})
		}
		if err := e.DefineHostModule(ctx, ns, funcs); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) wrap(ns, name string, fn Func) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		ctx, span := tracing.StartSpan(ctx, ns+"."+name, attribute.String("wasm.namespace", ns))
		defer span.End()

		call := newCall(ctx, mod, stack, r.codec, ns, name)
		if inv := call.Invocation(); inv != nil {
			span.SetAttributes(attribute.String("invocation.id", inv.ID))
		}
		if err := fn.Handler(call); err != nil {
			tracing.RecordError(span, err)
			Logger().Warn("host function aborted guest",
				zap.String("function", ns+"."+name),
				zap.Error(err))
			panic(err)
		}
		tracing.SetOK(span)
	}
}
