package cache

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/replaykit/go-cache/codec"
	"github.com/replaykit/go-cache/storage"
)

// Registry hands out one Store per namespace and is the sole authority
// for creating and disposing them. It is an explicit object rather than
// an ambient global so tests can construct isolated registries.
type Registry struct {
	mutex    sync.Mutex
	stores   map[string]*Store
	storage  storage.Store
	defaults config
	ctx      context.Context
}

// NewRegistry returns a Registry persisting into store. Options become
// the defaults for every namespace it creates.
func NewRegistry(ctx context.Context, store storage.Store, opts ...Option) *Registry {
	return &Registry{
		stores:   make(map[string]*Store),
		storage:  store,
		defaults: applyOptions(defaultConfig(), opts),
		ctx:      ctx,
	}
}

// Namespace returns the Store for name, creating it on first use.
// Options apply only when the instance is constructed: later calls with
// different options return the existing instance unchanged. This is a
// documented limitation — the first caller wins.
func (r *Registry) Namespace(name string, opts ...Option) *Store {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if s, ok := r.stores[name]; ok {
		return s
	}
	cfg := applyOptions(r.defaults, opts)
	// Stores must share the registry's prefix or ClearAll and GlobalStats
	// would not see them.
	cfg.keyPrefix = r.defaults.keyPrefix
	s := newStore(r.ctx, name, r.storage, cfg)
	r.stores[name] = s
	return s
}

func (r *Registry) blobPrefix() string {
	return r.defaults.keyPrefix + "-"
}

// ClearAll removes every persisted namespace blob under the registry's
// prefix — including namespaces never instantiated in this process — then
// disposes all live instances.
func (r *Registry) ClearAll(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	keys, err := r.storage.ListKeys(ctx, r.blobPrefix())
	if err != nil {
		return errors.Wrap(err, "cache: list namespaces")
	}
	var firstErr error
	for _, key := range keys {
		if err := r.storage.Remove(ctx, key); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "cache: remove %s", key)
		}
	}
	for name, s := range r.stores {
		s.CloseContext(ctx)
		delete(r.stores, name)
	}
	return firstErr
}

// CloseAll stops every instance's background cleanup and drops the
// instance map without deleting persisted data.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for name, s := range r.stores {
		s.CloseContext(ctx)
		delete(r.stores, name)
	}
	return nil
}

// GlobalStats aggregates usage across all persisted namespaces.
type GlobalStats struct {
	// Namespaces counts persisted namespace blobs, instantiated or not.
	Namespaces int
	// Entries and TotalSizeBytes are summed by scanning storage directly.
	Entries        int
	TotalSizeBytes uint64
	// AvgHitRate averages hit rates across currently instantiated stores
	// only; namespaces never opened this process contribute no sample.
	AvgHitRate float64
}

// GlobalStats scans every persisted namespace blob under the registry's
// prefix. Corrupted blobs count as a namespace with zero entries.
func (r *Registry) GlobalStats(ctx context.Context) (GlobalStats, error) {
	r.mutex.Lock()
	live := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		live = append(live, s)
	}
	r.mutex.Unlock()

	keys, err := r.storage.ListKeys(ctx, r.blobPrefix())
	if err != nil {
		return GlobalStats{}, errors.Wrap(err, "cache: list namespaces")
	}

	var stats GlobalStats
	for _, key := range keys {
		stats.Namespaces++
		blob, found, err := r.storage.Load(ctx, key)
		if err != nil || !found {
			continue
		}
		var entries map[string]*Entry
		if err := codec.Unmarshal(blob, &entries); err != nil {
			continue
		}
		stats.Entries += len(entries)
		stats.TotalSizeBytes += totalSize(entries)
	}

	var rates float64
	var samples int
	for _, s := range live {
		snap, err := s.Stats(ctx)
		if err != nil {
			continue
		}
		if snap.Hits+snap.Misses > 0 {
			rates += snap.HitRate
			samples++
		}
	}
	if samples > 0 {
		stats.AvgHitRate = rates / float64(samples)
	}
	return stats, nil
}
