package cache

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/replaykit/go-cache/codec"
	"github.com/replaykit/go-cache/metrics"
	"github.com/replaykit/go-cache/storage"
)

// Store is a durable, bounded, self-cleaning key-value cache for one
// namespace. The whole namespace is persisted as a single blob, so every
// mutation is a load-mutate-save sequence serialized by a per-namespace
// mutex; no update is silently lost to a concurrent writer in the same
// process.
type Store struct {
	namespace  string
	storageKey string
	storage    storage.Store
	codec      *codec.Codec
	cfg        config

	// mutex serializes every load-mutate-save against the blob, including
	// the background cleanup sweep.
	mutex  sync.Mutex
	hits   uint64
	misses uint64

	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once

	now func() time.Time
}

func newStore(parent context.Context, namespace string, store storage.Store, cfg config) *Store {
	ctx, cancel := context.WithCancel(parent)
	s := &Store{
		namespace:  namespace,
		storageKey: cfg.keyPrefix + "-" + namespace,
		storage:    store,
		codec: codec.New(
			codec.WithThreshold(cfg.compressionThreshold),
			codec.WithCompression(cfg.compressionEnabled),
		),
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
	if cfg.cleanupInterval > 0 {
		s.waitGroup.Add(1)
		go s.run()
	}
	return s
}

// Namespace returns the namespace name this store serves.
func (s *Store) Namespace() string {
	return s.namespace
}

// SetContext stores a value under key with a TTL. A non-positive ttl uses
// the store's default. Values above the compression threshold are stored
// compressed; compression failure silently falls back to the plain form.
// The entry being written is never evicted to make room for itself, so a
// single value larger than the namespace size limit is stored anyway and
// the namespace temporarily exceeds the limit until the next write or
// sweep. Errors are ErrSerialization, ErrStorageFull once quota recovery
// has been exhausted, and whatever the backend returns when the
// namespace cannot be read.
func (s *Store) SetContext(ctx context.Context, key string, val any, ttl time.Duration) error {
	payload, err := s.codec.Encode(val)
	if err != nil {
		return errors.Mark(err, ErrSerialization)
	}
	if ttl <= 0 {
		ttl = s.cfg.defaultTTL
	}
	now := s.now()
	entry := &Entry{
		Payload:        payload,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		SchemaVersion:  s.cfg.schemaVersion,
		AccessCount:    0,
		LastAccessedAt: now,
		SizeBytes:      payload.Size(),
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	entries, err := s.loadEntries(ctx)
	if err != nil {
		return err
	}
	entries[key] = entry
	if evicted := s.evictOversize(entries, key, now); evicted > 0 {
		s.cfg.metrics.Evict(s.namespace, metrics.ReasonSize, evicted)
		s.cfg.log.Debug("evicted %d entries from %s for size", evicted, s.namespace)
	}

	err = s.persist(ctx, entries)
	if storage.IsQuotaExceeded(err) {
		entries, err = s.recoverQuota(ctx, key, entry, now)
	}
	if err != nil {
		return err
	}
	s.cfg.metrics.Size(s.namespace, len(entries), totalSize(entries))
	return nil
}

// GetContext returns the entry stored under key, or found=false on a miss.
// Expired, version-mismatched, and undecodable entries are purged and
// reported as misses, never as errors. On a hit the entry's access stats
// are updated and persisted so eviction ordering survives restarts; the
// returned entry carries the payload already decompressed.
func (s *Store) GetContext(ctx context.Context, key string) (bool, *Entry, error) {
	now := s.now()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	entries, err := s.loadEntries(ctx)
	if err != nil {
		// Not a miss — the blob could not be read at all.
		return false, nil, err
	}
	entry, ok := entries[key]
	if !ok {
		s.miss()
		return false, nil, nil
	}

	if !entry.live(s.cfg.schemaVersion, now) {
		reason := metrics.ReasonExpired
		if entry.SchemaVersion != s.cfg.schemaVersion {
			reason = metrics.ReasonVersion
		}
		delete(entries, key)
		s.purge(ctx, entries, reason)
		s.miss()
		return false, nil, nil
	}

	raw, err := entry.Payload.Raw()
	if err != nil {
		// Undecodable payload is data loss, not a caller error.
		s.cfg.log.Warn("dropping corrupted entry %q in %s: %v", key, s.namespace, err)
		delete(entries, key)
		s.purge(ctx, entries, metrics.ReasonCorrupted)
		s.miss()
		return false, nil, nil
	}

	entry.AccessCount++
	entry.LastAccessedAt = now
	if err := s.persist(ctx, entries); err != nil {
		// Stale access stats are acceptable; the read itself succeeded.
		s.cfg.log.Warn("failed to persist access stats for %s: %v", s.namespace, err)
	}

	s.hits++
	s.cfg.metrics.Hit(s.namespace)

	out := *entry
	out.Payload = codec.Payload{Bytes: raw, Encoding: codec.EncodingPlain}
	return true, &out, nil
}

// Get retrieves a typed value from the store. It is a convenience over
// (*Store).GetContext that deserializes the payload into T.
func Get[T any](ctx context.Context, s *Store, key string) (bool, T, error) {
	var zero T
	found, entry, err := s.GetContext(ctx, key)
	if !found || err != nil {
		return false, zero, err
	}
	var result T
	if err := codec.Unmarshal(entry.Payload.Bytes, &result); err != nil {
		return false, zero, err
	}
	return true, result, nil
}

// DeleteContext removes one entry. Deleting an absent key is not an error.
func (s *Store) DeleteContext(ctx context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entries, err := s.loadEntries(ctx)
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.persist(ctx, entries)
}

// ClearContext removes the entire namespace blob and resets the hit and
// miss counters.
func (s *Store) ClearContext(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) error {
	if err := s.storage.Remove(ctx, s.storageKey); err != nil {
		return errors.Wrapf(err, "cache: clear %s", s.namespace)
	}
	s.hits = 0
	s.misses = 0
	s.cfg.metrics.Size(s.namespace, 0, 0)
	return nil
}

// CloseContext stops the background cleanup goroutine. Persisted data is
// left in place.
func (s *Store) CloseContext(context.Context) error {
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
	})
	return nil
}

// Close is shorthand for CloseContext with the store's own context.
func (s *Store) Close() error {
	return s.CloseContext(s.ctx)
}

func (s *Store) miss() {
	s.misses++
	s.cfg.metrics.Miss(s.namespace)
}

// purge persists a map that shrank on the read path. Failure only costs
// us a repeat purge later, so it is logged and swallowed.
func (s *Store) purge(ctx context.Context, entries map[string]*Entry, reason metrics.EvictReason) {
	s.cfg.metrics.Evict(s.namespace, reason, 1)
	if err := s.persist(ctx, entries); err != nil {
		s.cfg.log.Warn("failed to persist purge for %s: %v", s.namespace, err)
	}
}

// loadEntries reads and decodes the namespace blob. A missing blob yields
// an empty map. A blob that fails to decode is treated as data loss for
// this namespace only: it is logged and an empty map is returned, to be
// rewritten by the next save. A failed read is different — the blob may be
// perfectly intact, so the error is returned and the caller must abort
// rather than rewrite the namespace from an empty view.
func (s *Store) loadEntries(ctx context.Context) (map[string]*Entry, error) {
	blob, found, err := s.storage.Load(ctx, s.storageKey)
	if err != nil {
		return nil, errors.Wrapf(err, "cache: load namespace %s", s.namespace)
	}
	if !found {
		return make(map[string]*Entry), nil
	}
	var entries map[string]*Entry
	if err := codec.Unmarshal(blob, &entries); err != nil {
		s.cfg.log.Warn("namespace %s blob is corrupted, reinitializing empty: %v", s.namespace, err)
		return make(map[string]*Entry), nil
	}
	if entries == nil {
		entries = make(map[string]*Entry)
	}
	return entries, nil
}

func (s *Store) persist(ctx context.Context, entries map[string]*Entry) error {
	blob, err := codec.Marshal(entries)
	if err != nil {
		return errors.Wrapf(err, "cache: encode namespace %s", s.namespace)
	}
	return s.storage.Save(ctx, s.storageKey, blob)
}

type candidate struct {
	key   string
	entry *Entry
}

// rankForEviction orders entries so the best eviction candidates come
// first: highest score, ties broken by older CreatedAt.
func rankForEviction(entries map[string]*Entry, now time.Time) []candidate {
	cands := make([]candidate, 0, len(entries))
	for key, entry := range entries {
		cands = append(cands, candidate{key, entry})
	}
	sort.Slice(cands, func(i, j int) bool {
		si, sj := cands[i].entry.score(now), cands[j].entry.score(now)
		if si != sj {
			return si > sj
		}
		return cands[i].entry.CreatedAt.Before(cands[j].entry.CreatedAt)
	})
	return cands
}

// evictOversize trims the map until total size fits under the eviction
// target. The entry being written (newKey) is exempt so a single oversized
// namespace never swallows its own newest write.
func (s *Store) evictOversize(entries map[string]*Entry, newKey string, now time.Time) int {
	total := totalSize(entries)
	if total <= s.cfg.maxSize {
		return 0
	}
	target := uint64(float64(s.cfg.maxSize) * s.cfg.evictionTarget)
	evicted := 0
	for _, c := range rankForEviction(entries, now) {
		if total <= target {
			break
		}
		if c.key == newKey {
			continue
		}
		total -= c.entry.SizeBytes
		delete(entries, c.key)
		evicted++
	}
	return evicted
}

// recoverQuota handles the storage layer itself rejecting a write for
// quota, distinct from proactive eviction. The blob is re-read (the
// in-memory view may be stale after a partial failure), the top fraction
// of entries by score is dropped outright, and the write is retried once.
// If even that fails the namespace is cleared and only the new entry is
// written. The final fallback failing surfaces as ErrStorageFull.
func (s *Store) recoverQuota(ctx context.Context, key string, entry *Entry, now time.Time) (map[string]*Entry, error) {
	s.cfg.log.Warn("storage quota exceeded for %s, dropping %d%% of entries",
		s.namespace, int(s.cfg.recoveryFraction*100))

	entries, err := s.loadEntries(ctx)
	if err != nil {
		// Without a trustworthy view of the blob there is nothing safe to
		// reduce; surface the failure instead of guessing.
		return nil, err
	}
	delete(entries, key)
	drop := int(math.Ceil(float64(len(entries)) * s.cfg.recoveryFraction))
	cands := rankForEviction(entries, now)
	if drop > len(cands) {
		drop = len(cands)
	}
	for i := 0; i < drop; i++ {
		delete(entries, cands[i].key)
	}
	s.cfg.metrics.Evict(s.namespace, metrics.ReasonQuota, drop)
	entries[key] = entry

	err = s.persist(ctx, entries)
	if err == nil {
		return entries, nil
	}
	if !storage.IsQuotaExceeded(err) {
		return nil, err
	}

	// Still over quota: degrade to an empty namespace holding only the
	// new entry.
	s.cfg.log.Warn("quota recovery failed for %s, clearing namespace", s.namespace)
	if err := s.storage.Remove(ctx, s.storageKey); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "cache: clear %s during recovery", s.namespace), ErrStorageFull)
	}
	entries = map[string]*Entry{key: entry}
	if err := s.persist(ctx, entries); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "cache: namespace %s", s.namespace), ErrStorageFull)
	}
	return entries, nil
}

// run sweeps expired and version-mismatched entries on a fixed interval so
// write-only keys cannot grow the namespace without bound.
func (s *Store) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.cfg.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	now := s.now()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	entries, err := s.loadEntries(s.ctx)
	if err != nil {
		s.cfg.log.Warn("cleanup skipped for %s: %v", s.namespace, err)
		return
	}
	removed := 0
	for key, entry := range entries {
		if !entry.live(s.cfg.schemaVersion, now) {
			delete(entries, key)
			removed++
		}
	}
	if removed == 0 {
		return
	}
	s.cfg.metrics.Evict(s.namespace, metrics.ReasonExpired, removed)
	if err := s.persist(s.ctx, entries); err != nil {
		s.cfg.log.Warn("cleanup persist failed for %s: %v", s.namespace, err)
		return
	}
	s.cfg.log.Debug("cleanup removed %d entries from %s", removed, s.namespace)
	s.cfg.metrics.Size(s.namespace, len(entries), totalSize(entries))
}
