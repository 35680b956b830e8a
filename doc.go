// Package wasmworkspace is a workspace host that runs sandboxed WebAssembly
// guests against a small set of privileged host capabilities: a named
// embedded SQLite database and a hierarchical bookmark store.
//
// # Architecture Overview
//
//	wasmworkspace/       Root package with core Memory and Allocator interfaces
//	├── transcoder/      Canonical-ABI-style encoding of strings, lists, records, results
//	├── engine/          wazero integration: memory handle, guest allocator, host modules
//	├── host/            Capability registry and per-invocation call context
//	│   ├── sqlite/      sqlite.execute / sqlite.query
//	│   ├── bookmarks/   bookmarks.get-tree / bookmarks.create
//	│   └── env/         env.log
//	├── wasi/preview1/   Minimal wasi_snapshot_preview1 shims
//	├── runtime/         Execution host: decode, link-check, instantiate, run
//	├── dbmanager/       Named database handles and checkpoint persistence
//	├── bookmarks/       Process-wide bookmark snapshot cache
//	├── server/          HTTP and WebSocket message boundary
//	├── config/          YAML configuration
//	├── wasm/            Core module model, magic detection, guest builder
//	└── errors/          Structured error types
//
// # Quick Start
//
//	mgr, _ := dbmanager.New(dbmanager.Options{Store: dbmanager.NewMemoryStore()})
//	cache := bookmarks.NewCache(bookmarks.NewFileSource(path), logger)
//	_ = cache.Refresh(ctx)
//
//	h, err := runtime.New(ctx, runtime.Options{
//	    Databases: mgr,
//	    Bookmarks: cache,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close(ctx)
//
//	res := h.Run(ctx, payload) // base64 or raw guest bytes
//	fmt.Println(res.Success, res.Error, res.Logs)
//
// # Guest Contract
//
// A guest exports "memory", "cabi_realloc" and an entry point named "run"
// (or "main" for older guests) returning an i32. Host capabilities write
// their results into guest memory obtained from cabi_realloc and return a
// pointer to an encoded result<ok, err>.
//
// # Thread Safety
//
// The runtime Host is safe for concurrent use; every Run gets its own
// instance, linear memory and log buffer. Database handles are shared across
// invocations by name.
package wasmworkspace
