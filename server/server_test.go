package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/wippyai/wasm-workspace/dbmanager"
	"github.com/wippyai/wasm-workspace/runtime"
	"github.com/wippyai/wasm-workspace/wasm"
)

type fakeRunner struct {
	mu       sync.Mutex
	payloads []string
}

func (f *fakeRunner) Run(_ context.Context, payload []byte) *runtime.Result {
	f.mu.Lock()
	f.payloads = append(f.payloads, string(payload))
	f.mu.Unlock()
	code := int32(len(payload))
	return &runtime.Result{Success: true, Value: &code, Logs: []string{"ran " + string(payload)}}
}

func newTestServer(t *testing.T, runner Runner, dbs Databases) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(New(runner, dbs, "127.0.0.1:0", nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{}, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRun(t *testing.T) {
	runner := &fakeRunner{}
	ts := newTestServer(t, runner, nil)

	resp, err := http.Post(ts.URL+"/run", "application/json", strings.NewReader(`{"wasm":"AGFzbQ=="}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, true, res["success"])
	assert.Equal(t, float64(8), res["result"])
	assert.Equal(t, []any{"ran AGFzbQ=="}, res["logs"])
	assert.Equal(t, []string{"AGFzbQ=="}, runner.payloads)
}

func TestRunBadRequests(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{}, nil)
	for _, body := range []string{`not json`, `{}`, `{"wasm":""}`} {
		resp, err := http.Post(ts.URL+"/run", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}

	resp, err := http.Get(ts.URL + "/run")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestDatabases(t *testing.T) {
	mgr, err := dbmanager.New(dbmanager.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	ctx := context.Background()
	_, err = mgr.Execute(ctx, "notes", "CREATE TABLE note (body TEXT)")
	require.NoError(t, err)

	ts := newTestServer(t, &fakeRunner{}, mgr)
	resp, err := http.Get(ts.URL + "/databases")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []DatabaseInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, []DatabaseInfo{{Name: "notes", Tables: []string{"note"}}}, got)
}

func TestDatabasesWithoutManager(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{}, nil)
	resp, err := http.Get(ts.URL + "/databases")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []DatabaseInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

func TestWebSocketFrames(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{}, nil)
	ws := dial(t, ts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, wsjson.Write(ctx, ws, RunRequest{ID: "a", Wasm: "one"}))
	require.NoError(t, wsjson.Write(ctx, ws, RunRequest{ID: "b", Wasm: "three"}))
	require.NoError(t, wsjson.Write(ctx, ws, RunRequest{ID: "c"}))

	got := map[string]RunResponse{}
	for range 3 {
		var resp RunResponse
		require.NoError(t, wsjson.Read(ctx, ws, &resp))
		got[resp.ID] = resp
	}

	require.NotNil(t, got["a"].Result)
	assert.Equal(t, int32(3), *got["a"].Result.Value)
	require.NotNil(t, got["b"].Result)
	assert.Equal(t, []string{"ran three"}, got["b"].Result.Logs)
	assert.Nil(t, got["c"].Result)
	assert.Contains(t, got["c"].Error, "wasm is required")
}

func TestRunWithRealHost(t *testing.T) {
	b := wasm.NewBuilder()
	b.Memory(1, nil)
	b.ExportMemory("memory", 0)
	b.AddBumpAllocator(1024)
	b.ExportFunc("run", b.Func(b.Type(nil, []wasm.ValType{wasm.ValI32}), nil, wasm.NewCode().I32Const(42).End()))
	payload := base64.StdEncoding.EncodeToString(b.Build().Encode())

	ctx := context.Background()
	h, err := runtime.New(ctx, runtime.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close(ctx) })

	ts := newTestServer(t, h, nil)
	body, _ := json.Marshal(RunRequest{Wasm: payload})
	resp, err := http.Post(ts.URL+"/run", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var res runtime.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Success)
	require.NotNil(t, res.Value)
	assert.Equal(t, int32(42), *res.Value)
	assert.Equal(t, []string{}, res.Logs)
}

func TestStartAndStop(t *testing.T) {
	srv := New(&fakeRunner{}, nil, "127.0.0.1:0", nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.BoundAddr() != "" }, 5*time.Second, 10*time.Millisecond)
	resp, err := http.Get("http://" + srv.BoundAddr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
