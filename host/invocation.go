package host

import (
	"context"
	"sync"
)

// Invocation is the per-run state host functions see: an identifier and the
// guest-visible log buffer.
type Invocation struct {
	ID   string
	mu   sync.Mutex
	logs []string
}

func NewInvocation(id string) *Invocation {
	return &Invocation{ID: id}
}

// Log appends one line to the guest-visible log.
func (i *Invocation) Log(line string) {
	i.mu.Lock()
	i.logs = append(i.logs, line)
	i.mu.Unlock()
}

// Logs returns a copy of the lines logged so far, in order.
func (i *Invocation) Logs() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, len(i.logs))
	copy(out, i.logs)
	return out
}

type invocationKey struct{}

// WithInvocation binds inv to ctx. Host functions called with ctx log into
// inv.
func WithInvocation(ctx context.Context, inv *Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFrom returns the invocation bound to ctx, or nil.
func InvocationFrom(ctx context.Context) *Invocation {
	inv, _ := ctx.Value(invocationKey{}).(*Invocation)
	return inv
}
