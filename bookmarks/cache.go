package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotPopulated is returned by Snapshot before the first successful
// Replace or Refresh.
var ErrNotPopulated = errors.New("bookmark cache not populated")

// Source is the platform bookmark store. Reads may be slow or asynchronous
// on the platform side; the cache hides that from guests.
type Source interface {
	Tree(ctx context.Context) ([]*Node, error)
}

// Cache is the process-wide bookmark snapshot. Guests read deep copies;
// refreshes happen out of band through Notify, Watch and a Scheduler.
type Cache struct {
	mu        sync.RWMutex
	roots     []*Node
	populated bool
	updated   time.Time
	source    Source
	logger    *zap.Logger
	notify    chan struct{}
}

// NewCache creates an empty cache. source may be nil when the cache is fed
// only through Replace.
func NewCache(source Source, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		source: source,
		logger: logger,
		notify: make(chan struct{}, 1),
	}
}

// Snapshot returns a deep copy of the current forest.
func (c *Cache) Snapshot() ([]*Node, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.populated {
		return nil, ErrNotPopulated
	}
	out := CloneTree(c.roots)
	if out == nil {
		out = []*Node{}
	}
	return out, nil
}

// Replace swaps in a new forest. The cache keeps its own copy.
func (c *Cache) Replace(roots []*Node) {
	tree := CloneTree(roots)
	c.mu.Lock()
	c.roots = tree
	c.populated = true
	c.updated = time.Now()
	c.mu.Unlock()
}

// Populated reports whether any snapshot has been stored.
func (c *Cache) Populated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.populated
}

// UpdatedAt returns the time of the last Replace.
func (c *Cache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updated
}

// Refresh reloads the forest from the source. A failed refresh keeps the
// previous snapshot.
func (c *Cache) Refresh(ctx context.Context) error {
	if c.source == nil {
		return fmt.Errorf("refresh bookmarks: no source")
	}
	roots, err := c.source.Tree(ctx)
	if err != nil {
		return fmt.Errorf("refresh bookmarks: %w", err)
	}
	c.Replace(roots)
	c.logger.Debug("bookmark cache refreshed", zap.Int("nodes", Count(roots)))
	return nil
}

// Notify records a change event. Bursts collapse into one pending refresh.
func (c *Cache) Notify() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Watch refreshes on every change event until ctx ends. Refresh failures
// are logged and do not stop the loop.
func (c *Cache) Watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.notify:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("bookmark refresh failed", zap.Error(err))
			}
		}
	}
}
