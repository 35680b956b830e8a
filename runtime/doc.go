// Package runtime is the execution host: it takes a guest payload and runs
// it against the workspace capabilities.
//
// # Quick Start
//
//	mgr, _ := dbmanager.New(dbmanager.Options{})
//	h, err := runtime.New(ctx, runtime.Options{
//	    Databases: mgr,
//	    Bookmarks: cache,
//	    Timeout:   30 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close(ctx)
//
//	res := h.Run(ctx, payload)
//	fmt.Println(res.Success, res.Logs)
//
// # Lifecycle
//
// Every invocation moves through
//
//	Instantiating -> Running -> Completed | Failed
//
// Instantiating decodes the payload (raw, base64, or base64 of base64),
// compiles it and link-checks it: every import must exist in the host
// registry with the same core signature, and the guest must export memory
// and cabi_realloc. Link failures are reported before any guest code runs.
// The instance is then created with a fresh host.Invocation bound to the
// context, so logs never leak between runs.
//
// Running calls the first configured entry point (run, then main). It takes
// no arguments and returns an i32 code.
//
// A failed invocation still carries every log line produced before the
// failure. A guest that exceeds Options.Timeout is closed by the engine and
// reported as a runtime fault of kind timeout.
//
// # Thread Safety
//
// Host is safe for concurrent use. Invocations share the compiled host
// modules and nothing else.
package runtime
