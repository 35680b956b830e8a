package dbmanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("database manager closed")
	// ErrInvalidName is returned for names that cannot be used as file names.
	ErrInvalidName = errors.New("invalid database name")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// Options configures a Manager.
type Options struct {
	// WorkDir holds live database files. Empty creates a temporary
	// directory that Close removes.
	WorkDir string
	// Store receives checkpoints. Nil uses a MemoryStore.
	Store  CheckpointStore
	Logger *zap.Logger
}

// ResultSet is a query result with every cell stringified.
type ResultSet struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type handle struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Manager owns named SQLite databases. A name is created on first use and
// restored from its last checkpoint when one exists.
type Manager struct {
	mu      sync.Mutex
	handles map[string]*handle
	store   CheckpointStore
	logger  *zap.Logger
	workDir string
	tempDir bool
	closed  bool
}

func New(opts Options) (*Manager, error) {
	m := &Manager{
		handles: make(map[string]*handle),
		store:   opts.Store,
		logger:  opts.Logger,
		workDir: opts.WorkDir,
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.workDir == "" {
		dir, err := os.MkdirTemp("", "workspace-db-")
		if err != nil {
			return nil, fmt.Errorf("create work dir: %w", err)
		}
		m.workDir = dir
		m.tempDir = true
	} else if err := os.MkdirAll(m.workDir, 0o700); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return m, nil
}

// Open returns the handle for name, creating or restoring it.
func (m *Manager) Open(ctx context.Context, name string) error {
	_, err := m.handle(ctx, name)
	return err
}

func (m *Manager) handle(ctx context.Context, name string) (*handle, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if h, ok := m.handles[name]; ok {
		return h, nil
	}

	path := filepath.Join(m.workDir, name+".db")
	restored, err := m.restore(ctx, name, path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", name, err)
	}
	// one connection: statements of a capability call see each other
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database %q: %w", name, err)
	}

	h := &handle{db: db, path: path}
	m.handles[name] = h
	m.logger.Debug("database opened",
		zap.String("name", name),
		zap.Bool("restored", restored))
	return h, nil
}

func (m *Manager) restore(ctx context.Context, name, path string) (bool, error) {
	data, ok, err := m.store.Load(ctx, name)
	if err != nil {
		return false, fmt.Errorf("load checkpoint %q: %w", name, err)
	}
	if !ok {
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return false, fmt.Errorf("restore checkpoint %q: %w", name, err)
	}
	return true, nil
}

// Execute runs a statement and checkpoints the database. It returns the
// number of rows changed.
func (m *Manager) Execute(ctx context.Context, name, stmt string) (uint32, error) {
	h, err := m.handle(ctx, name)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := h.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		n = 0
	}
	if err := m.checkpoint(ctx, name, h); err != nil {
		return 0, err
	}
	return uint32(n), nil
}

// Query runs a statement and returns its rows stringified.
func (m *Manager) Query(ctx context.Context, name, stmt string) (*ResultSet, error) {
	h, err := m.handle(ctx, name)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rows, err := h.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := &ResultSet{Columns: cols, Rows: [][]string{}}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = Stringify(v)
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Checkpoint snapshots name into the store, replacing its previous
// snapshot.
func (m *Manager) Checkpoint(ctx context.Context, name string) error {
	h, err := m.handle(ctx, name)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return m.checkpoint(ctx, name, h)
}

// checkpoint requires h.mu.
func (m *Manager) checkpoint(ctx context.Context, name string, h *handle) error {
	tmp, err := os.CreateTemp(m.workDir, name+".checkpoint-*")
	if err != nil {
		return fmt.Errorf("checkpoint %q: %w", name, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	// VACUUM INTO refuses an existing target
	os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	if _, err := h.db.ExecContext(ctx, "VACUUM INTO ?", tmpPath); err != nil {
		return fmt.Errorf("checkpoint %q: %w", name, err)
	}
	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return fmt.Errorf("checkpoint %q: %w", name, err)
	}
	if err := m.store.Save(ctx, name, data); err != nil {
		return fmt.Errorf("checkpoint %q: %w", name, err)
	}
	m.logger.Debug("database checkpointed",
		zap.String("name", name),
		zap.Int("bytes", len(data)))
	return nil
}

// Names lists open databases and checkpointed ones, sorted.
func (m *Manager) Names(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	seen := make(map[string]struct{}, len(m.handles))
	for name := range m.handles {
		seen[name] = struct{}{}
	}
	m.mu.Unlock()

	stored, err := m.store.Names(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range stored {
		seen[name] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Tables lists user tables of name, sorted.
func (m *Manager) Tables(ctx context.Context, name string) ([]string, error) {
	rs, err := m.Query(ctx, name,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		out = append(out, row[0])
	}
	return out, nil
}

// Close closes every handle. The checkpoint store is left open; its owner
// closes it.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for name, h := range m.handles {
		h.mu.Lock()
		if err := h.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", name, err))
		}
		h.mu.Unlock()
	}
	m.handles = nil
	if m.tempDir {
		if err := os.RemoveAll(m.workDir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
