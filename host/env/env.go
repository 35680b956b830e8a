// Package env provides the guest's text log import.
package env

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-workspace/host"
)

const Namespace = "env"

// Register adds env.log(ptr, len) to r.
func Register(r *host.Registry) error {
	return r.Register(Namespace, "log", host.Func{
		Handler: logLine,
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
	})
}

// logLine appends the decoded text to the invocation log. Text that cannot
// be decoded is reported in the log instead of trapping the guest.
func logLine(c *host.Call) error {
	s, err := c.String(0)
	if err != nil {
		c.Log("env.log: " + err.Error())
		return nil
	}
	c.Log(s)
	return nil
}
