package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/wippyai/wasm-workspace/bookmarks"
	"github.com/wippyai/wasm-workspace/config"
	"github.com/wippyai/wasm-workspace/engine"
	"github.com/wippyai/wasm-workspace/errors"
	"github.com/wippyai/wasm-workspace/host"
	"github.com/wippyai/wasm-workspace/host/env"
	"github.com/wippyai/wasm-workspace/host/sqlite"
	"github.com/wippyai/wasm-workspace/wasi/preview1"

	hostbookmarks "github.com/wippyai/wasm-workspace/host/bookmarks"
)

// DefaultEntryPoints are tried in order when Options.EntryPoints is empty.
var DefaultEntryPoints = []string{"run", "main"}

// Options configures a Host.
type Options struct {
	// Databases backs the sqlite namespace. Nil leaves sqlite unregistered,
	// so guests importing it fail to link.
	Databases sqlite.Databases
	// Bookmarks backs the bookmarks namespace. Nil serves a cache that is
	// never populated.
	Bookmarks hostbookmarks.Snapshotter
	// Compiler turns source into a guest binary for RunSource.
	Compiler Compiler

	// Timeout bounds one invocation from instantiation to return. Zero
	// disables it.
	Timeout          time.Duration
	EntryPoints      []string
	MemoryLimitPages uint32
}

// ApplyConfig copies the runtime section of a workspace config into o.
func (o *Options) ApplyConfig(cfg config.RuntimeConfig) {
	o.Timeout = cfg.Timeout
	o.MemoryLimitPages = cfg.MemoryLimitPages
	o.EntryPoints = append([]string(nil), cfg.EntryPoints...)
}

// Host runs guest modules against the workspace capabilities. One Host
// serves any number of concurrent invocations; each gets a fresh instance.
type Host struct {
	engine   *engine.WazeroEngine
	registry *host.Registry
	opts     Options

	mu     sync.RWMutex
	closed bool
}

// New creates the engine, registers every capability and installs the host
// modules.
func New(ctx context.Context, opts Options) (*Host, error) {
	if len(opts.EntryPoints) == 0 {
		opts.EntryPoints = DefaultEntryPoints
	}
	if opts.Bookmarks == nil {
		opts.Bookmarks = bookmarks.NewCache(nil, nil)
	}

	eng, err := engine.NewWazeroEngineWithConfig(ctx, &engine.Config{
		MemoryLimitPages:   opts.MemoryLimitPages,
		CloseOnContextDone: true,
	})
	if err != nil {
		return nil, errors.Load("create engine", err)
	}

	r := host.NewRegistry()
	if err := register(r, opts); err != nil {
		eng.Close(ctx)
		return nil, err
	}
	if err := r.Install(ctx, eng); err != nil {
		eng.Close(ctx)
		return nil, err
	}

	return &Host{engine: eng, registry: r, opts: opts}, nil
}

func register(r *host.Registry, opts Options) error {
	if err := preview1.Register(r); err != nil {
		return err
	}
	if err := env.Register(r); err != nil {
		return err
	}
	if opts.Databases != nil {
		if err := sqlite.Register(r, opts.Databases); err != nil {
			return err
		}
	}
	return hostbookmarks.Register(r, opts.Bookmarks)
}

// Registry returns the capability table guests link against.
func (h *Host) Registry() *host.Registry {
	return h.registry
}

// Capabilities lists every importable function as "namespace.name".
func (h *Host) Capabilities() []string {
	var out []string
	for _, ns := range h.registry.Namespaces() {
		for _, name := range h.registry.Names(ns) {
			out = append(out, ns+"."+name)
		}
	}
	return out
}

// Close releases the engine. In-flight invocations finish first.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.engine.Close(ctx)
}
