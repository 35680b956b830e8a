package runtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wippyai/wasm-workspace/bookmarks"
	"github.com/wippyai/wasm-workspace/dbmanager"
	"github.com/wippyai/wasm-workspace/errors"
	"github.com/wippyai/wasm-workspace/wasm"
)

var i32 = wasm.ValI32

// guest is a builder preloaded with memory, a bump allocator and the env.log
// import at function index 0.
type guest struct {
	*wasm.Builder
	log uint32
}

func newGuest() *guest {
	b := wasm.NewBuilder()
	log := b.ImportFunc("env", "log", b.Type([]wasm.ValType{i32, i32}, nil))
	return &guest{Builder: b, log: log}
}

// finish adds memory, the allocator and an entry point, then encodes.
func (g *guest) finish(entry string, locals []wasm.ValType, code *wasm.Code) []byte {
	g.Memory(1, nil)
	g.ExportMemory("memory", 0)
	g.AddBumpAllocator(4096)
	g.ExportFunc(entry, g.Func(g.Type(nil, []wasm.ValType{i32}), locals, code))
	return g.Build().Encode()
}

// text places s at offset and returns (offset, len) for use as arguments.
func (g *guest) text(offset int32, s string) (int32, int32) {
	g.Data(offset, []byte(s))
	return offset, int32(len(s))
}

func (g *guest) logText(c *wasm.Code, ptr, n int32) *wasm.Code {
	return c.I32Const(ptr).I32Const(n).Call(g.log)
}

func constGuest(v int32) []byte {
	g := newGuest()
	return g.finish("run", nil, wasm.NewCode().I32Const(v).End())
}

func newHost(t *testing.T, opts Options) *Host {
	t.Helper()
	ctx := context.Background()
	h, err := New(ctx, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = h.Close(ctx) })
	return h
}

func newManager(t *testing.T) *dbmanager.Manager {
	t.Helper()
	m, err := dbmanager.New(dbmanager.Options{})
	if err != nil {
		t.Fatalf("dbmanager.New: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func mustSucceed(t *testing.T, res *Result) {
	t.Helper()
	if !res.Success {
		t.Fatalf("invocation failed: %s (logs %q)", res.Error, res.Logs)
	}
	if res.State != StateCompleted {
		t.Errorf("State = %v, want completed", res.State)
	}
}

func TestExecuteThenQueryLogsHello(t *testing.T) {
	g := newGuest()
	sig := g.Type([]wasm.ValType{i32, i32, i32, i32}, []wasm.ValType{i32})
	execute := g.ImportFunc("sqlite", "execute", sig)
	query := g.ImportFunc("sqlite", "query", sig)

	db, dbLen := g.text(16, "main")
	create, createLen := g.text(32, "CREATE TABLE greetings (text TEXT)")
	insert, insertLen := g.text(96, "INSERT INTO greetings VALUES ('hello')")
	sel, selLen := g.text(160, "SELECT text FROM greetings")

	const res, rows, cell = 0, 1, 2
	code := wasm.NewCode().
		I32Const(db).I32Const(dbLen).I32Const(create).I32Const(createLen).Call(execute).Drop().
		I32Const(db).I32Const(dbLen).I32Const(insert).I32Const(insertLen).Call(execute).Drop().
		I32Const(db).I32Const(dbLen).I32Const(sel).I32Const(selLen).Call(query).LocalSet(res).
		// trap on the Err arm
		LocalGet(res).I32Load8U(0).If().Unreachable().End().
		// result payload at +4: columns @+4, rows @+12
		LocalGet(res).I32Load(12).LocalSet(rows).
		LocalGet(rows).I32Load(0).LocalSet(cell).
		LocalGet(cell).I32Load(0).LocalGet(cell).I32Load(4).Call(g.log).
		I32Const(0).End()
	bin := g.finish("run", []wasm.ValType{i32, i32, i32}, code)

	h := newHost(t, Options{Databases: newManager(t)})
	result := h.RunBinary(context.Background(), bin)
	mustSucceed(t, result)
	if got := strings.Join(result.Logs, "|"); got != "hello" {
		t.Errorf("Logs = %q, want exactly hello", result.Logs)
	}
	if *result.Value != 0 {
		t.Errorf("result = %d", *result.Value)
	}
	if result.ID == "" {
		t.Error("invocation id not set")
	}
}

func TestMissingAllocatorFailsLink(t *testing.T) {
	b := wasm.NewBuilder()
	b.Memory(1, nil)
	b.ExportMemory("memory", 0)
	b.ExportFunc("run", b.Func(b.Type(nil, []wasm.ValType{i32}), nil, wasm.NewCode().I32Const(0).End()))

	res := newHost(t, Options{}).RunBinary(context.Background(), b.Build().Encode())
	if res.Success {
		t.Fatal("expected link failure")
	}
	if !strings.HasPrefix(res.Error, "[linking] missing_export: cabi_realloc") {
		t.Errorf("Error = %q", res.Error)
	}
	if !errors.IsLink(res.Err) {
		t.Errorf("IsLink(%v) = false", res.Err)
	}
	if res.Logs == nil {
		t.Error("Logs must be an empty list, not nil")
	}
}

func TestMissingMemoryFailsLink(t *testing.T) {
	b := wasm.NewBuilder()
	b.ExportFunc("run", b.Func(b.Type(nil, []wasm.ValType{i32}), nil, wasm.NewCode().I32Const(0).End()))

	res := newHost(t, Options{}).RunBinary(context.Background(), b.Build().Encode())
	if res.Success || !strings.Contains(res.Error, "missing_export: memory") {
		t.Errorf("result = %+v", res)
	}
}

func TestUnknownImportFailsLink(t *testing.T) {
	g := newGuest()
	nope := g.ImportFunc("nope", "missing", g.Type(nil, nil))
	bin := g.finish("run", nil, wasm.NewCode().Call(nope).I32Const(0).End())

	res := newHost(t, Options{}).RunBinary(context.Background(), bin)
	var mie *errors.MissingImportsError
	if !stderrors.As(res.Err, &mie) {
		t.Fatalf("Err = %v, want MissingImportsError", res.Err)
	}
	if len(mie.Imports) != 1 || mie.Imports[0].Namespace != "nope" {
		t.Errorf("Imports = %+v", mie.Imports)
	}
}

func TestSqliteWithoutDatabasesFailsLink(t *testing.T) {
	g := newGuest()
	sig := g.Type([]wasm.ValType{i32, i32, i32, i32}, []wasm.ValType{i32})
	execute := g.ImportFunc("sqlite", "execute", sig)
	bin := g.finish("run", nil, wasm.NewCode().
		I32Const(0).I32Const(0).I32Const(0).I32Const(0).Call(execute).End())

	res := newHost(t, Options{}).RunBinary(context.Background(), bin)
	if !errors.IsLink(res.Err) {
		t.Errorf("Err = %v, want link error", res.Err)
	}
}

func TestImportSignatureMismatch(t *testing.T) {
	g := newGuest()
	bad := g.ImportFunc("bookmarks", "get-tree", g.Type([]wasm.ValType{i32}, []wasm.ValType{i32}))
	bin := g.finish("run", nil, wasm.NewCode().I32Const(0).Call(bad).End())

	res := newHost(t, Options{}).RunBinary(context.Background(), bin)
	if !strings.Contains(res.Error, "signature_mismatch at bookmarks.get-tree") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestPayloadEncodings(t *testing.T) {
	bin := constGuest(7)
	once := base64.StdEncoding.EncodeToString(bin)
	twice := base64.StdEncoding.EncodeToString([]byte(once))

	h := newHost(t, Options{})
	tests := map[string][]byte{
		"raw":           bin,
		"base64":        []byte(once),
		"base64 padded": []byte(once + "\n"),
		"double base64": []byte(twice),
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			res := h.Run(context.Background(), payload)
			mustSucceed(t, res)
			if *res.Value != 7 {
				t.Errorf("result = %d, want 7", *res.Value)
			}
		})
	}
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	for _, payload := range []string{"not base64 at all!", base64.StdEncoding.EncodeToString([]byte("plain text"))} {
		if _, err := DecodePayload([]byte(payload)); err == nil {
			t.Errorf("DecodePayload(%q) succeeded", payload)
		}
	}

	res := newHost(t, Options{}).Run(context.Background(), []byte("???"))
	if res.Success || res.State != StateFailed {
		t.Errorf("result = %+v", res)
	}
}

func TestUnpopulatedBookmarkCache(t *testing.T) {
	g := newGuest()
	getTree := g.ImportFunc("bookmarks", "get_tree", g.Type(nil, []wasm.ValType{i32}))

	const res = 0
	code := wasm.NewCode().
		Call(getTree).LocalSet(res).
		// Err arm: string header at +4
		LocalGet(res).I32Load(4).LocalGet(res).I32Load(8).Call(g.log).
		LocalGet(res).I32Load8U(0).End()
	bin := g.finish("run", []wasm.ValType{i32}, code)

	result := newHost(t, Options{Bookmarks: bookmarks.NewCache(nil, nil)}).RunBinary(context.Background(), bin)
	mustSucceed(t, result)
	if *result.Value != 1 {
		t.Errorf("discriminant = %d, want Err", *result.Value)
	}
	if len(result.Logs) != 1 || result.Logs[0] != bookmarks.ErrNotPopulated.Error() {
		t.Errorf("Logs = %q", result.Logs)
	}
}

func TestTrapKeepsLogs(t *testing.T) {
	g := newGuest()
	before, n := g.text(16, "before the fault")
	code := g.logText(wasm.NewCode(), before, n).Unreachable().End()
	bin := g.finish("run", nil, code)

	res := newHost(t, Options{}).RunBinary(context.Background(), bin)
	if res.Success {
		t.Fatal("expected trap")
	}
	if res.State != StateFailed {
		t.Errorf("State = %v", res.State)
	}
	if !errors.IsTrap(res.Err) {
		t.Errorf("IsTrap(%v) = false", res.Err)
	}
	if len(res.Logs) != 1 || res.Logs[0] != "before the fault" {
		t.Errorf("Logs = %q", res.Logs)
	}
}

func TestInitializeTrapIsExecutionTrap(t *testing.T) {
	g := newGuest()
	before, n := g.text(16, "before trap")
	initCode := g.logText(wasm.NewCode(), before, n).Unreachable().End()
	g.ExportFunc("_initialize", g.Func(g.Type(nil, nil), nil, initCode))
	bin := g.finish("run", nil, wasm.NewCode().I32Const(0).End())

	res := newHost(t, Options{}).RunBinary(context.Background(), bin)
	if res.Success {
		t.Fatal("expected trap in _initialize")
	}
	if !errors.IsTrap(res.Err) {
		t.Errorf("IsTrap(%v) = false", res.Err)
	}
	if errors.IsLink(res.Err) {
		t.Errorf("IsLink(%v) = true, guest code already ran", res.Err)
	}
	if !strings.HasPrefix(res.Error, "[runtime] trap") || !strings.Contains(res.Error, "_initialize") {
		t.Errorf("Error = %q", res.Error)
	}
	if len(res.Logs) != 1 || res.Logs[0] != "before trap" {
		t.Errorf("Logs = %q", res.Logs)
	}
}

func TestInitializeRunsBeforeEntry(t *testing.T) {
	g := newGuest()
	initMsg, initLen := g.text(16, "init")
	runMsg, runLen := g.text(32, "run")
	g.ExportFunc("_initialize", g.Func(g.Type(nil, nil), nil,
		g.logText(wasm.NewCode(), initMsg, initLen).End()))
	bin := g.finish("run", nil, g.logText(wasm.NewCode(), runMsg, runLen).I32Const(3).End())

	res := newHost(t, Options{}).RunBinary(context.Background(), bin)
	mustSucceed(t, res)
	if got := strings.Join(res.Logs, "|"); got != "init|run" {
		t.Errorf("Logs = %q", res.Logs)
	}
	if *res.Value != 3 {
		t.Errorf("result = %d", *res.Value)
	}
}

func TestStateTransitionsAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	h := newHost(t, Options{})
	mustSucceed(t, h.RunBinary(context.Background(), constGuest(7)))

	g := newGuest()
	failing := g.finish("run", nil, wasm.NewCode().Unreachable().End())
	if res := h.RunBinary(context.Background(), failing); res.Success {
		t.Fatal("expected trap")
	}

	var got [][]string
	for _, span := range recorder.Ended() {
		if span.Name() != "workspace.invocation" {
			continue
		}
		var states []string
		for _, ev := range span.Events() {
			if strings.HasPrefix(ev.Name, "invocation.") {
				states = append(states, strings.TrimPrefix(ev.Name, "invocation."))
			}
		}
		got = append(got, states)
	}
	want := [][]string{
		{"instantiating", "running", "completed"},
		{"instantiating", "running", "failed"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("state events = %q, want %q", got, want)
	}
}

func TestTimeout(t *testing.T) {
	g := newGuest()
	started, n := g.text(16, "spinning")
	code := g.logText(wasm.NewCode(), started, n).Loop().Br(0).End().I32Const(0).End()
	bin := g.finish("run", nil, code)

	h := newHost(t, Options{Timeout: 100 * time.Millisecond})
	start := time.Now()
	res := h.RunBinary(context.Background(), bin)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
	if res.Success {
		t.Fatal("expected timeout")
	}
	if !errors.IsTrap(res.Err) {
		t.Errorf("IsTrap(%v) = false", res.Err)
	}
	var werr *errors.Error
	if !stderrors.As(res.Err, &werr) || werr.Kind != errors.KindTimeout {
		t.Errorf("Err = %v, want timeout kind", res.Err)
	}
	if len(res.Logs) != 1 || res.Logs[0] != "spinning" {
		t.Errorf("Logs = %q", res.Logs)
	}
}

func TestEntryPointFallback(t *testing.T) {
	g := newGuest()
	bin := g.finish("main", nil, wasm.NewCode().I32Const(3).End())

	res := newHost(t, Options{}).RunBinary(context.Background(), bin)
	mustSucceed(t, res)
	if *res.Value != 3 {
		t.Errorf("result = %d", *res.Value)
	}

	res = newHost(t, Options{EntryPoints: []string{"start"}}).RunBinary(context.Background(), bin)
	if res.Success || !strings.Contains(res.Error, "start: not exported") {
		t.Errorf("result = %+v", res)
	}
}

func TestEntryPointSignature(t *testing.T) {
	g := newGuest()
	g.Memory(1, nil)
	g.ExportMemory("memory", 0)
	g.AddBumpAllocator(4096)
	g.ExportFunc("run", g.Func(g.Type([]wasm.ValType{i32}, []wasm.ValType{i32}), nil, wasm.NewCode().LocalGet(0).End()))

	res := newHost(t, Options{}).RunBinary(context.Background(), g.Build().Encode())
	if !strings.Contains(res.Error, "signature_mismatch at export.run") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestInvocationsAreIsolated(t *testing.T) {
	g := newGuest()
	msg, n := g.text(16, "once")
	bin := g.finish("run", nil, g.logText(wasm.NewCode(), msg, n).I32Const(0).End())

	h := newHost(t, Options{})
	first := h.RunBinary(context.Background(), bin)
	second := h.RunBinary(context.Background(), bin)
	mustSucceed(t, first)
	mustSucceed(t, second)
	if len(second.Logs) != 1 {
		t.Errorf("second invocation saw %q", second.Logs)
	}
	if first.ID == second.ID {
		t.Error("invocation ids must differ")
	}
}

func TestRunSource(t *testing.T) {
	compiled := base64.StdEncoding.EncodeToString(constGuest(11))
	h := newHost(t, Options{Compiler: CompilerFunc(func(_ context.Context, source string) ([]byte, error) {
		if source != "answer" {
			return nil, stderrors.New("syntax error")
		}
		return []byte(compiled), nil
	})})

	res := h.RunSource(context.Background(), "answer")
	mustSucceed(t, res)
	if *res.Value != 11 {
		t.Errorf("result = %d", *res.Value)
	}

	res = h.RunSource(context.Background(), "gibberish")
	if res.Success || !strings.Contains(res.Error, "syntax error") {
		t.Errorf("result = %+v", res)
	}

	res = newHost(t, Options{}).RunSource(context.Background(), "answer")
	if res.Success {
		t.Error("RunSource without a compiler must fail")
	}
}

func TestResultJSON(t *testing.T) {
	code := int32(0)
	ok, _ := json.Marshal(&Result{Success: true, Value: &code, Logs: []string{"hello"}})
	if string(ok) != `{"success":true,"result":0,"logs":["hello"]}` {
		t.Errorf("ok JSON = %s", ok)
	}
	fail, _ := json.Marshal(failed("x", errors.Trap(stderrors.New("boom")), nil))
	if string(fail) != `{"success":false,"error":"[runtime] trap: guest trapped (caused by: boom)","logs":[]}` {
		t.Errorf("failure JSON = %s", fail)
	}
}

func TestCapabilities(t *testing.T) {
	caps := newHost(t, Options{Databases: newManager(t)}).Capabilities()
	want := []string{"bookmarks.get_tree", "env.log", "sqlite.query", "wasi_snapshot_preview1.fd_write"}
	for _, w := range want {
		found := false
		for _, c := range caps {
			if c == w {
				found = true
			}
		}
		if !found {
			t.Errorf("Capabilities missing %s: %v", w, caps)
		}
	}
}

func TestClosedHost(t *testing.T) {
	ctx := context.Background()
	h, err := New(ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if res := h.RunBinary(ctx, constGuest(1)); res.Success {
		t.Error("run after Close succeeded")
	}
}
