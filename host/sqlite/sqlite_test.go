package sqlite

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-workspace/dbmanager"
	"github.com/wippyai/wasm-workspace/engine"
	"github.com/wippyai/wasm-workspace/host"
	"github.com/wippyai/wasm-workspace/transcoder"
	"github.com/wippyai/wasm-workspace/wasm"
)

// forwardingGuest re-exports sqlite.execute and sqlite.query as exec and
// query so tests can call them with pointers they wrote themselves.
func forwardingGuest() []byte {
	b := wasm.NewBuilder()
	i32 := wasm.ValI32
	sig := b.Type([]wasm.ValType{i32, i32, i32, i32}, []wasm.ValType{i32})
	execute := b.ImportFunc(Namespace, "execute", sig)
	query := b.ImportFunc(Namespace, "query", sig)
	b.Memory(1, nil)
	b.ExportMemory("memory", 0)
	b.AddBumpAllocator(4096)
	forward := func(fn uint32) *wasm.Code {
		return wasm.NewCode().LocalGet(0).LocalGet(1).LocalGet(2).LocalGet(3).Call(fn).End()
	}
	b.ExportFunc("exec", b.Func(sig, nil, forward(execute)))
	b.ExportFunc("query", b.Func(sig, nil, forward(query)))
	return b.Build().Encode()
}

type guest struct {
	inst  *engine.WazeroInstance
	codec *host.Codec
	ctx   context.Context
}

func newGuest(t *testing.T, dbs Databases) *guest {
	t.Helper()
	ctx := context.Background()
	r := host.NewRegistry()
	require.NoError(t, Register(r, dbs))

	e, err := engine.NewWazeroEngine(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })
	require.NoError(t, r.Install(ctx, e))

	mod, err := e.LoadModule(ctx, forwardingGuest())
	require.NoError(t, err)
	require.NoError(t, r.Check(mod.Imports()))
	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close(ctx) })

	return &guest{inst: inst, codec: r.Codec(), ctx: host.WithInvocation(ctx, host.NewInvocation("sqlite-test"))}
}

// call writes db at 64 and stmt at 256 and decodes the returned result.
func (g *guest) call(t *testing.T, fn string, db, stmt string) transcoder.Result {
	t.Helper()
	mem := g.inst.Memory()
	require.NoError(t, mem.Write(64, []byte(db)))
	require.NoError(t, mem.Write(256, []byte(stmt)))
	out, err := g.inst.Call(g.ctx, fn, 64, uint64(len(db)), 256, uint64(len(stmt)))
	require.NoError(t, err)

	typ := ExecuteResult
	if fn == "query" {
		typ = QueryResult
	}
	res, err := g.codec.Decoder.DecodeResult(typ, uint32(out[0]), mem)
	require.NoError(t, err)
	return res
}

func newManager(t *testing.T) *dbmanager.Manager {
	t.Helper()
	m, err := dbmanager.New(dbmanager.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestExecuteThenQuery(t *testing.T) {
	g := newGuest(t, newManager(t))

	res := g.call(t, "exec", "main", "CREATE TABLE t (id INTEGER, name TEXT)")
	require.False(t, res.IsErr, "%v", res.Value)
	res = g.call(t, "exec", "main", "INSERT INTO t VALUES (1, 'hello'), (2, NULL)")
	require.False(t, res.IsErr, "%v", res.Value)
	assert.Equal(t, uint32(2), res.Value)

	res = g.call(t, "query", "main", "SELECT id, name FROM t ORDER BY id")
	require.False(t, res.IsErr, "%v", res.Value)
	rec, ok := res.Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"id", "name"}, rec["columns"])
	assert.Equal(t, []any{
		[]any{"1", "hello"},
		[]any{"2", "null"},
	}, rec["rows"])
}

func TestQueryResultGrowsMemory(t *testing.T) {
	g := newGuest(t, newManager(t))
	mem := g.inst.Memory()
	require.Equal(t, uint32(65536), mem.Size())

	const n = 50000
	res := g.call(t, "exec", "big", "CREATE TABLE blobs (id INTEGER, body TEXT)")
	require.False(t, res.IsErr, "%v", res.Value)
	// hex(zeroblob(n/2)) is n '0' characters
	res = g.call(t, "exec", "big",
		"INSERT INTO blobs VALUES (1, replace(hex(zeroblob(25000)), '0', 'a')), (2, replace(hex(zeroblob(25000)), '0', 'b'))")
	require.False(t, res.IsErr, "%v", res.Value)
	require.Equal(t, uint32(65536), mem.Size(), "statements alone fit in the first page")

	res = g.call(t, "query", "big", "SELECT id, body FROM blobs ORDER BY id")
	require.False(t, res.IsErr, "%v", res.Value)
	assert.Greater(t, mem.Size(), uint32(65536), "encoding the rows must grow memory")

	rows := res.Value.(map[string]any)["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"1", strings.Repeat("a", n)}, rows[0])
	assert.Equal(t, []any{"2", strings.Repeat("b", n)}, rows[1])
}

func TestQueryNoRows(t *testing.T) {
	g := newGuest(t, newManager(t))
	res := g.call(t, "query", "empty", "SELECT 1 AS one WHERE 0")
	require.False(t, res.IsErr)
	rec := res.Value.(map[string]any)
	assert.Equal(t, []any{"one"}, rec["columns"])
	assert.Equal(t, []any{}, rec["rows"])
}

func TestEngineErrorTextReachesGuest(t *testing.T) {
	g := newGuest(t, newManager(t))
	res := g.call(t, "query", "main", "SELECT * FROM missing")
	require.True(t, res.IsErr)
	msg, _ := res.Value.(string)
	assert.Contains(t, msg, "no such table: missing")
	assert.NotContains(t, msg, "[capability]")
}

type failingDatabases struct{ err error }

func (f failingDatabases) Execute(context.Context, string, string) (uint32, error) {
	return 0, f.err
}

func (f failingDatabases) Query(context.Context, string, string) (*dbmanager.ResultSet, error) {
	return nil, f.err
}

func TestExactErrorText(t *testing.T) {
	g := newGuest(t, failingDatabases{err: stderrors.New("database is locked")})
	res := g.call(t, "exec", "main", "DELETE FROM t")
	require.True(t, res.IsErr)
	assert.Equal(t, "database is locked", res.Value)
}

func TestDecodeFailureIsErrArm(t *testing.T) {
	g := newGuest(t, failingDatabases{err: stderrors.New("unreachable")})
	mem := g.inst.Memory()
	require.NoError(t, mem.Write(64, []byte{0xff}))

	out, err := g.inst.Call(g.ctx, "exec", 64, 1, 256, 0)
	require.NoError(t, err)
	res, err := g.codec.Decoder.DecodeResult(ExecuteResult, uint32(out[0]), mem)
	require.NoError(t, err)
	require.True(t, res.IsErr)
	assert.Contains(t, res.Value, "invalid_utf8")
}
