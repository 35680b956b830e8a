package preview1

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-workspace/host"
)

// Namespace is the import module name guests built for WASI preview1 use.
const Namespace = "wasi_snapshot_preview1"

// Errno is a WASI preview1 error number.
type Errno = uint32

const (
	ErrnoSuccess Errno = 0
	ErrnoBadf    Errno = 8
	ErrnoFault   Errno = 21
	ErrnoInval   Errno = 28
)

// File descriptors the shims accept.
const (
	FdStdin  = 0
	FdStdout = 1
	FdStderr = 2
)

const filetypeCharacterDevice = 2

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

// Register adds the preview1 shims to r.
func Register(r *host.Registry) error {
	funcs := []struct {
		name string
		fn   host.Func
	}{
		{"fd_write", host.Func{Handler: fdWrite, Params: []api.ValueType{i32, i32, i32, i32}, Results: []api.ValueType{i32}}},
		{"fd_close", host.Func{Handler: fdClose, Params: []api.ValueType{i32}, Results: []api.ValueType{i32}}},
		{"fd_seek", host.Func{Handler: fdSeek, Params: []api.ValueType{i32, i64, i32, i32}, Results: []api.ValueType{i32}}},
		{"fd_fdstat_get", host.Func{Handler: fdFdstatGet, Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}}},
		{"environ_get", host.Func{Handler: environGet, Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}}},
		{"environ_sizes_get", host.Func{Handler: environSizesGet, Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}}},
		{"proc_exit", host.Func{Handler: procExit, Params: []api.ValueType{i32}}},
		{"random_get", host.Func{Handler: randomGet, Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}}},
		{"clock_time_get", host.Func{Handler: clockTimeGet, Params: []api.ValueType{i32, i64, i32}, Results: []api.ValueType{i32}}},
	}
	for _, f := range funcs {
		if err := r.Register(Namespace, f.name, f.fn); err != nil {
			return err
		}
	}
	return nil
}

func isStdio(fd uint32) bool {
	return fd <= FdStderr
}
