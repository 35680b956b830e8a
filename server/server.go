// Package server exposes the execution host over HTTP and WebSocket.
//
//	POST /run        {"wasm": "<base64>"}  -> runtime.Result
//	GET  /ws         frames {"id", "wasm"} -> {"id", "result"}
//	GET  /databases  known databases and their tables
//	GET  /healthz
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/wippyai/wasm-workspace/runtime"
)

// MaxPayloadBytes bounds a /run body and a single /ws frame.
const MaxPayloadBytes = 32 << 20

// Runner executes one guest payload.
type Runner interface {
	Run(ctx context.Context, payload []byte) *runtime.Result
}

// Databases lists what the database manager holds.
type Databases interface {
	Names(ctx context.Context) ([]string, error)
	Tables(ctx context.Context, name string) ([]string, error)
}

// RunRequest is the /run body and the /ws inbound frame.
type RunRequest struct {
	ID   string `json:"id,omitempty"`
	Wasm string `json:"wasm"`
}

// RunResponse is the /ws outbound frame.
type RunResponse struct {
	ID     string          `json:"id,omitempty"`
	Result *runtime.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// DatabaseInfo is one entry of /databases.
type DatabaseInfo struct {
	Name   string   `json:"name"`
	Tables []string `json:"tables"`
}

type Server struct {
	runner    Runner
	dbs       Databases
	logger    *zap.Logger
	addr      string
	httpSrv   *http.Server
	boundAddr atomic.Value
	nextConn  atomic.Uint64
}

// New creates a server. dbs may be nil, in which case /databases is empty.
func New(runner Runner, dbs Databases, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{runner: runner, dbs: dbs, addr: addr, logger: logger}
}

// Handler returns the routing mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /run", s.handleRun)
	mux.HandleFunc("GET /ws", s.handleUpgrade)
	mux.HandleFunc("GET /databases", s.handleDatabases)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	s.boundAddr.Store(listener.Addr().String())
	s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	s.logger.Info("server started", zap.String("addr", s.BoundAddr()))

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server serve: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down, waiting up to five seconds.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// BoundAddr returns the listening address. Empty until Start binds.
func (s *Server) BoundAddr() string {
	addr, _ := s.boundAddr.Load().(string)
	return addr
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	body := http.MaxBytesReader(w, r.Body, MaxPayloadBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, RunResponse{Error: "invalid request: " + err.Error()})
		return
	}
	if req.Wasm == "" {
		writeJSON(w, http.StatusBadRequest, RunResponse{Error: "invalid request: wasm is required"})
		return
	}
	writeJSON(w, http.StatusOK, s.runner.Run(r.Context(), []byte(req.Wasm)))
}

func (s *Server) handleDatabases(w http.ResponseWriter, r *http.Request) {
	out := []DatabaseInfo{}
	if s.dbs != nil {
		names, err := s.dbs.Names(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, RunResponse{Error: err.Error()})
			return
		}
		for _, name := range names {
			tables, err := s.dbs.Tables(r.Context(), name)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, RunResponse{Error: err.Error()})
				return
			}
			out = append(out, DatabaseInfo{Name: name, Tables: tables})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost", "localhost:*", "127.0.0.1", "127.0.0.1:*", "[::1]", "[::1]:*"},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(MaxPayloadBytes)

	connID := s.nextConn.Add(1)
	s.logger.Debug("ws client connected", zap.Uint64("conn_id", connID))

	s.readLoop(r.Context(), ws)

	ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Debug("ws client disconnected", zap.Uint64("conn_id", connID))
}

// readLoop runs frames concurrently; responses carry the request id so
// clients can match them.
func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		var req RunRequest
		// malformed JSON closes the connection inside wsjson
		if err := wsjson.Read(ctx, ws, &req); err != nil {
			return
		}
		go func(req RunRequest) {
			if req.Wasm == "" {
				s.write(ws, RunResponse{ID: req.ID, Error: "invalid frame: wasm is required"})
				return
			}
			s.write(ws, RunResponse{ID: req.ID, Result: s.runner.Run(ctx, []byte(req.Wasm))})
		}(req)
	}
}

func (s *Server) write(ws *websocket.Conn, resp RunResponse) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, ws, resp); err != nil {
		s.logger.Debug("ws write failed", zap.String("id", resp.ID), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
