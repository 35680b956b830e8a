// Package wasm models core WebAssembly modules just far enough to recognize
// and assemble them.
//
// Payload handling only needs to know whether a blob is a module:
//
//	if wasm.IsModule(data) { ... }
//
// Guests used in tests and examples are assembled with Builder and Code:
//
//	b := wasm.NewBuilder()
//	logSig := b.Type([]wasm.ValType{wasm.ValI32, wasm.ValI32}, nil)
//	logFn := b.ImportFunc("env", "log", logSig)
//	b.Memory(1, nil)
//	b.Data(1024, []byte("hello"))
//	run := b.Func(b.Type(nil, []wasm.ValType{wasm.ValI32}), nil,
//		wasm.NewCode().I32Const(1024).I32Const(5).Call(logFn).I32Const(0).End())
//	b.ExportFunc("run", run)
//	bin := b.Build().Encode()
//
// Only the MVP section set is emitted: type, import, function, memory,
// global, export, code and data.
package wasm
