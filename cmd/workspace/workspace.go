package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-workspace/bookmarks"
	"github.com/wippyai/wasm-workspace/config"
	"github.com/wippyai/wasm-workspace/dbmanager"
	"github.com/wippyai/wasm-workspace/engine"
	"github.com/wippyai/wasm-workspace/host"
	"github.com/wippyai/wasm-workspace/internal/tracing"
	"github.com/wippyai/wasm-workspace/runtime"
	"github.com/wippyai/wasm-workspace/server"
)

// workspace wires the process-wide components from one config.
type workspace struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     dbmanager.CheckpointStore
	dbs       *dbmanager.Manager
	cache     *bookmarks.Cache
	scheduler *bookmarks.Scheduler
	host      *runtime.Host
	shutdown  func(context.Context) error
	cancel    context.CancelFunc
}

func open(ctx context.Context, cfg *config.Config) (*workspace, error) {
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, err
	}
	engine.SetLogger(logger.Named("engine"))
	host.SetLogger(logger.Named("host"))
	runtime.SetLogger(logger.Named("runtime"))

	ws := &workspace{cfg: cfg, logger: logger}
	if ws.shutdown, err = tracing.Setup(ctx, cfg.Tracing); err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	if cfg.Database.CheckpointPath != "" {
		if ws.store, err = dbmanager.OpenBoltStore(cfg.Database.CheckpointPath); err != nil {
			ws.Close(ctx)
			return nil, err
		}
	} else {
		ws.store = dbmanager.NewMemoryStore()
	}
	ws.dbs, err = dbmanager.New(dbmanager.Options{
		WorkDir: cfg.Database.WorkDir,
		Store:   ws.store,
		Logger:  logger.Named("dbmanager"),
	})
	if err != nil {
		ws.Close(ctx)
		return nil, err
	}

	if err := ws.openBookmarks(ctx); err != nil {
		ws.Close(ctx)
		return nil, err
	}

	opts := runtime.Options{Databases: ws.dbs, Bookmarks: ws.cache}
	opts.ApplyConfig(cfg.Runtime)
	if ws.host, err = runtime.New(ctx, opts); err != nil {
		ws.Close(ctx)
		return nil, err
	}
	return ws, nil
}

// openBookmarks populates the cache from the configured file, then keeps it
// fresh from change notifications and the resync schedule.
func (ws *workspace) openBookmarks(ctx context.Context) error {
	var source bookmarks.Source
	if ws.cfg.Bookmarks.File != "" {
		source = bookmarks.NewFileSource(ws.cfg.Bookmarks.File)
	}
	ws.cache = bookmarks.NewCache(source, ws.logger.Named("bookmarks"))
	if source == nil {
		return nil
	}

	if err := ws.cache.Refresh(ctx); err != nil {
		ws.logger.Warn("initial bookmark load failed", zap.Error(err))
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	ws.cancel = cancel
	go ws.cache.Watch(watchCtx)

	if ws.cfg.Bookmarks.Resync != "" {
		s, err := bookmarks.NewScheduler(ws.cache, ws.cfg.Bookmarks.Resync)
		if err != nil {
			return err
		}
		s.Start()
		ws.scheduler = s
	}
	return nil
}

func (ws *workspace) Serve(ctx context.Context) error {
	srv := server.New(ws.host, ws.dbs, ws.cfg.Server.Addr, ws.logger.Named("server"))
	return srv.Start(ctx)
}

// Close releases everything open. It is safe to call on a partially opened
// workspace and more than once.
func (ws *workspace) Close(ctx context.Context) error {
	var errs []error
	if ws.host != nil {
		errs = append(errs, ws.host.Close(ctx))
		ws.host = nil
	}
	if ws.scheduler != nil {
		ws.scheduler.Stop()
		ws.scheduler = nil
	}
	if ws.cancel != nil {
		ws.cancel()
		ws.cancel = nil
	}
	if ws.dbs != nil {
		errs = append(errs, ws.dbs.Close())
		ws.dbs = nil
	}
	if ws.store != nil {
		errs = append(errs, ws.store.Close())
		ws.store = nil
	}
	if ws.shutdown != nil {
		errs = append(errs, ws.shutdown(ctx))
		ws.shutdown = nil
	}
	if ws.logger != nil {
		_ = ws.logger.Sync()
	}
	return errors.Join(errs...)
}
