// Package preview1 provides best-effort wasi_snapshot_preview1 shims: just
// enough for a guest's standard library to start and print.
//
// fd_write on stdout or stderr is split into lines and appended to the
// invocation log; other descriptors get EBADF. clock_time_get and
// random_get return real values. The environment is empty. proc_exit logs
// "proc_exit(<code>)" and returns, so the guest continues until its entry
// point does.
package preview1
