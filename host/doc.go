// Package host is the capability surface guests import.
//
// A Registry maps (namespace, name) to a Func: a flat core signature and a
// Handler. Capability packages register into it:
//
//	r := host.NewRegistry()
//	sqlite.Register(r, mgr)
//	bookmarks.Register(r, cache)
//	env.Register(r)
//	preview1.Register(r)
//
// Install defines one wazero host module per namespace on an engine. The
// modules are shared by every guest; per-run state (the log buffer) travels
// in the context as an Invocation:
//
//	ctx = host.WithInvocation(ctx, host.NewInvocation(id))
//
// Each handler gets a Call for the duration of one import. The Call copies
// string arguments out of guest memory, resolves cabi_realloc once, and
// encodes exactly one result<ok, err> back with ReturnResult. Errors the
// guest should react to go into the Err arm; a Handler that returns an
// error traps the guest instead.
package host
