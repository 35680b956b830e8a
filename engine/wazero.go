package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-workspace/errors"
)

// Guest export names the host relies on.
const (
	CabiRealloc      = "cabi_realloc"
	MemoryExport     = "memory"
	InitializeExport = "_initialize"
)

// WazeroEngine owns one wazero runtime. Host modules are instantiated into it
// once and shared by every guest instance.
type WazeroEngine struct {
	runtime wazero.Runtime
	hostMu  sync.Mutex
	hosts   map[string]struct{}
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CloseOnContextDone closes a running guest when the call context is
	// cancelled or its deadline passes. Required for invocation timeouts.
	CloseOnContextDone bool
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.CloseOnContextDone {
			runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
		}
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &WazeroEngine{runtime: runtime, hosts: make(map[string]struct{})}, nil
}

// HostFunction is one core-level function exported by a host module.
type HostFunction struct {
	Fn      api.GoModuleFunc
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// DefineHostModule instantiates a host module under namespace. Each namespace
// can be defined once per engine.
func (e *WazeroEngine) DefineHostModule(ctx context.Context, namespace string, funcs []HostFunction) error {
	e.hostMu.Lock()
	defer e.hostMu.Unlock()

	if _, ok := e.hosts[namespace]; ok {
		return errors.Registration(errors.PhaseHost, namespace, "*", fmt.Errorf("namespace already defined"))
	}

	builder := e.runtime.NewHostModuleBuilder(namespace)
	for _, fn := range funcs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(fn.Fn, fn.Params, fn.Results).
			Export(fn.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Registration(errors.PhaseHost, namespace, "*", err)
	}

	e.hosts[namespace] = struct{}{}
	Logger().Debug("host module defined",
		zap.String("namespace", namespace),
		zap.Int("functions", len(funcs)))
	return nil
}

// HasHostModule reports whether namespace was defined on this engine.
func (e *WazeroEngine) HasHostModule(namespace string) bool {
	e.hostMu.Lock()
	defer e.hostMu.Unlock()
	_, ok := e.hosts[namespace]
	return ok
}

// LoadModule compiles a core module. Compilation failures are load errors.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile failed", err)
	}
	return &WazeroModule{engine: e, compiled: compiled}, nil
}

func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Signature is a core function type.
type Signature struct {
	Params  []api.ValueType
	Results []api.ValueType
}

// Equal reports whether both signatures have identical parameter and
// result lists.
func (s Signature) Equal(o Signature) bool {
	return equalTypes(s.Params, o.Params) && equalTypes(s.Results, o.Results)
}

// String renders the signature as "(i32, i32) -> i32".
func (s Signature) String() string {
	var b strings.Builder
	b.WriteByte('(')
	writeTypes(&b, s.Params)
	b.WriteString(") -> ")
	switch len(s.Results) {
	case 0:
		b.WriteString("()")
	case 1:
		b.WriteString(api.ValueTypeName(s.Results[0]))
	default:
		b.WriteByte('(')
		writeTypes(&b, s.Results)
		b.WriteByte(')')
	}
	return b.String()
}

func writeTypes(b *strings.Builder, types []api.ValueType) {
	for i, t := range types {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(t))
	}
}

func equalTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Import is a function import declared by a guest.
type Import struct {
	Namespace string
	Name      string
	Signature Signature
}

// Key returns "namespace#name".
func (i Import) Key() string {
	return i.Namespace + "#" + i.Name
}

// Export is a function export declared by a guest.
type Export struct {
	Name      string
	Signature Signature
}

// WazeroModule is a compiled guest module
type WazeroModule struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
}

// Imports lists declared function imports in declaration order.
func (m *WazeroModule) Imports() []Import {
	defs := m.compiled.ImportedFunctions()
	out := make([]Import, 0, len(defs))
	for _, def := range defs {
		ns, name, _ := def.Import()
		out = append(out, Import{
			Namespace: ns,
			Name:      name,
			Signature: Signature{Params: def.ParamTypes(), Results: def.ResultTypes()},
		})
	}
	return out
}

// Exports lists exported functions sorted by name.
func (m *WazeroModule) Exports() []Export {
	defs := m.compiled.ExportedFunctions()
	out := make([]Export, 0, len(defs))
	for name, def := range defs {
		out = append(out, Export{
			Name:      name,
			Signature: Signature{Params: def.ParamTypes(), Results: def.ResultTypes()},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Export looks up one exported function.
func (m *WazeroModule) Export(name string) (Export, bool) {
	def, ok := m.compiled.ExportedFunctions()[name]
	if !ok {
		return Export{}, false
	}
	return Export{
		Name:      name,
		Signature: Signature{Params: def.ParamTypes(), Results: def.ResultTypes()},
	}, true
}

// HasMemoryExport reports whether the guest exports a memory under name.
func (m *WazeroModule) HasMemoryExport(name string) bool {
	_, ok := m.compiled.ExportedMemories()[name]
	return ok
}

// Instantiate creates a fresh anonymous instance. Host modules the guest
// imports must already be defined on the engine.
//
// Resolution failures are instantiation errors. A reactor guest's
// _initialize (or a wasm start section) is guest code, so a failure there is
// a trap.
func (m *WazeroModule) Instantiate(ctx context.Context) (*WazeroInstance, error) {
	// anonymous for parallel instantiation; _initialize is called below
	modConfig := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions()

	instance, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		// wazero reports start section failures as "start <func> failed: ..."
		if strings.HasPrefix(err.Error(), "start ") {
			return nil, errors.Trap(err)
		}
		return nil, errors.Instantiation(err)
	}

	if start := instance.ExportedFunction(InitializeExport); start != nil {
		if _, err := start.Call(ctx); err != nil && !cleanExit(err) {
			_ = instance.Close(ctx)
			return nil, errors.Trap(fmt.Errorf("%s: %w", InitializeExport, err))
		}
	}

	inst := &WazeroInstance{instance: instance}
	if mem := instance.Memory(); mem != nil {
		inst.memory = NewGuestMemory(mem)
	}
	return inst, nil
}

// cleanExit reports a proc_exit(0) style exit, which is not a failure.
func cleanExit(err error) bool {
	var exit *sys.ExitError
	return stderrors.As(err, &exit) && exit.ExitCode() == 0
}

func (m *WazeroModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// WazeroInstance is a running guest. It is not safe for concurrent use.
type WazeroInstance struct {
	instance api.Module
	memory   *GuestMemory
}

// Memory returns the owning handle to the guest's linear memory, or nil if
// the guest has none.
func (i *WazeroInstance) Memory() *GuestMemory {
	return i.memory
}

// Module exposes the underlying wazero module.
func (i *WazeroInstance) Module() api.Module {
	return i.instance
}

// Call invokes an exported function with raw core values.
func (i *WazeroInstance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := i.instance.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	return fn.Call(ctx, params...)
}

func (i *WazeroInstance) Close(ctx context.Context) error {
	if i.instance == nil {
		return nil
	}
	err := i.instance.Close(ctx)
	i.instance = nil
	i.memory = nil
	return err
}
