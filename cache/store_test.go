package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/replaykit/go-cache/codec"
	"github.com/replaykit/go-cache/storage"
)

// quotaStore wraps a Store and fails the next n Save calls with a quota
// error, for driving the recovery path deterministically.
type quotaStore struct {
	storage.Store
	failures int
}

func (q *quotaStore) Save(ctx context.Context, key string, value []byte) error {
	if q.failures > 0 {
		q.failures--
		return errors.Wrap(storage.ErrQuotaExceeded, "simulated")
	}
	return q.Store.Save(ctx, key, value)
}

// flakyStore wraps a Store and fails the next n Load calls with a
// transient I/O error.
type flakyStore struct {
	storage.Store
	loadFailures int
}

func (f *flakyStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if f.loadFailures > 0 {
		f.loadFailures--
		return nil, false, errors.New("connection reset by peer")
	}
	return f.Store.Load(ctx, key)
}

func newTestStore(t *testing.T, store storage.Store, opts ...Option) *Store {
	t.Helper()
	cfg := applyOptions(defaultConfig(), opts)
	if cfg.cleanupInterval == DefaultCleanupInterval {
		cfg.cleanupInterval = 0 // no background sweep unless the test asks
	}
	s := newStore(context.Background(), "recordings", store, cfg)
	t.Cleanup(func() { s.Close() })
	return s
}

type thumbnail struct {
	VideoID string `msgpack:"video_id"`
	Width   int    `msgpack:"width"`
	PNG     []byte `msgpack:"png"`
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0))

	in := thumbnail{VideoID: "v1", Width: 320, PNG: []byte{1, 2, 3}}
	require.NoError(t, s.SetContext(ctx, "v1", in, time.Minute))

	found, out, err := Get[thumbnail](ctx, s, "v1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in, out)
}

func TestGetMissOnEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0))

	found, entry, err := s.GetContext(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, entry)
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0))

	require.NoError(t, s.SetContext(ctx, "short", "value", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	found, _, err := s.GetContext(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)

	// The expired entry is purged from storage, not just hidden.
	s.mutex.Lock()
	entries, err := s.loadEntries(ctx)
	s.mutex.Unlock()
	require.NoError(t, err)
	assert.NotContains(t, entries, "short")
}

func TestDefaultTTL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0), WithDefaultTTL(time.Hour))

	require.NoError(t, s.SetContext(ctx, "k", "v", 0))
	found, entry, err := s.GetContext(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, time.Hour.Seconds(), entry.ExpiresAt.Sub(entry.CreatedAt).Seconds(), 1)
}

func TestSchemaVersionInvalidation(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(0)

	v1 := newTestStore(t, store, WithSchemaVersion("v1"))
	require.NoError(t, v1.SetContext(ctx, "k", "old-format", time.Hour))

	// Same namespace reopened under a newer schema version.
	v2 := newTestStore(t, store, WithSchemaVersion("v2"))
	found, _, err := v2.GetContext(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	stats, err := v2.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestEvictionBound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0), WithMaxSize(1000), WithCompression(false))

	for i := 0; i < 20; i++ {
		key := string(rune('a' + i))
		require.NoError(t, s.SetContext(ctx, key, strings.Repeat("x", 150), time.Hour))
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, stats.TotalSizeBytes, uint64(1000))
	assert.Greater(t, stats.Entries, 0)
}

func TestEvictionPrefersLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0), WithMaxSize(700), WithCompression(false))

	require.NoError(t, s.SetContext(ctx, "cold", strings.Repeat("a", 200), time.Hour))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.SetContext(ctx, "warm", strings.Repeat("b", 200), time.Hour))

	// Touch warm so cold is the better candidate.
	found, _, err := s.GetContext(ctx, "warm")
	require.NoError(t, err)
	require.True(t, found)
	time.Sleep(5 * time.Millisecond)

	// Pushes total past the bound and forces an eviction.
	require.NoError(t, s.SetContext(ctx, "new", strings.Repeat("c", 300), time.Hour))

	found, _, err = s.GetContext(ctx, "cold")
	require.NoError(t, err)
	assert.False(t, found, "least-recently-used entry should be evicted first")

	found, _, err = s.GetContext(ctx, "warm")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestEvictionTieBreakOlderCreatedAt(t *testing.T) {
	now := time.Now()
	entries := map[string]*Entry{
		"old": {
			CreatedAt:      now.Add(-2 * time.Hour),
			LastAccessedAt: now.Add(-time.Minute),
			SizeBytes:      100,
		},
		"new": {
			CreatedAt:      now.Add(-time.Hour),
			LastAccessedAt: now.Add(-time.Minute),
			SizeBytes:      100,
		},
	}
	ranked := rankForEviction(entries, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, "old", ranked[0].key)
}

func TestEvictionSparesEntryBeingWritten(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0), WithMaxSize(300), WithCompression(false))

	// A value bigger than the namespace bound still round-trips.
	require.NoError(t, s.SetContext(ctx, "huge", strings.Repeat("z", 500), time.Hour))
	found, out, err := Get[string](ctx, s, "huge")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, out, 500)
}

func TestHitRateAccounting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0))

	require.NoError(t, s.SetContext(ctx, "k", "v", time.Hour))
	for i := 0; i < 3; i++ {
		found, _, err := s.GetContext(ctx, "k")
		require.NoError(t, err)
		require.True(t, found)
	}
	for i := 0; i < 2; i++ {
		found, _, err := s.GetContext(ctx, "nope")
		require.NoError(t, err)
		require.False(t, found)
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.InDelta(t, 0.6, stats.HitRate, 1e-9)
}

func TestAccessStatsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(0)

	first := newTestStore(t, store)
	require.NoError(t, first.SetContext(ctx, "k", "v", time.Hour))
	found, _, err := first.GetContext(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)

	// A fresh instance over the same storage sees the updated counters.
	second := newTestStore(t, store)
	found, entry, err := second.GetContext(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(2), entry.AccessCount)
}

func TestQuotaRecoveryDropsHalf(t *testing.T) {
	ctx := context.Background()
	qs := &quotaStore{Store: storage.NewMemory(0)}
	s := newTestStore(t, qs)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.SetContext(ctx, string(rune('a'+i)), strings.Repeat("x", 50), time.Hour))
	}

	qs.failures = 1
	require.NoError(t, s.SetContext(ctx, "fresh", "value", time.Hour))

	// ceil(4 * 0.5) = 2 dropped, 2 survivors, plus the new entry.
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Entries)

	found, out, err := Get[string](ctx, s, "fresh")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "value", out)
}

func TestQuotaRecoveryDegradesToEmptyNamespace(t *testing.T) {
	ctx := context.Background()
	qs := &quotaStore{Store: storage.NewMemory(0)}
	s := newTestStore(t, qs)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.SetContext(ctx, string(rune('a'+i)), "v", time.Hour))
	}

	// Initial save and the reduced-map retry both hit quota; the final
	// fallback keeps only the new entry.
	qs.failures = 2
	require.NoError(t, s.SetContext(ctx, "only", "survivor", time.Hour))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)

	found, out, err := Get[string](ctx, s, "only")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "survivor", out)
}

func TestQuotaRecoveryUnrecoverable(t *testing.T) {
	ctx := context.Background()
	qs := &quotaStore{Store: storage.NewMemory(0)}
	s := newTestStore(t, qs)

	qs.failures = 3
	err := s.SetContext(ctx, "k", "v", time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageFull))
}

func TestSerializationFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0))

	require.NoError(t, s.SetContext(ctx, "good", "value", time.Hour))

	err := s.SetContext(ctx, "bad", func() {}, time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSerialization))

	// Existing data is untouched by the failed write.
	found, out, err := Get[string](ctx, s, "good")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "value", out)
}

func TestCorruptionIsolation(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(0)

	healthy := newTestStore(t, store)
	require.NoError(t, healthy.SetContext(ctx, "k", "fine", time.Hour))

	// Scribble over a different namespace's blob.
	cfg := applyOptions(defaultConfig(), nil)
	cfg.cleanupInterval = 0
	broken := newStore(context.Background(), "broken", store, cfg)
	t.Cleanup(func() { broken.Close() })
	require.NoError(t, store.Save(ctx, broken.storageKey, []byte("not msgpack at all")))

	// The corrupted namespace reads as empty and accepts new writes.
	found, _, err := broken.GetContext(ctx, "anything")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, broken.SetContext(ctx, "reborn", "ok", time.Hour))

	// The healthy namespace is unaffected.
	found, out, err := Get[string](ctx, healthy, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "fine", out)
}

func TestTransientLoadFailureDoesNotEraseNamespace(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{Store: storage.NewMemory(0)}
	s := newTestStore(t, fs)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SetContext(ctx, string(rune('a'+i)), i, time.Hour))
	}

	// An unreadable blob is not the same as a missing one: while the
	// backend is down, reads and writes fail instead of treating the
	// namespace as empty.
	fs.loadFailures = 2
	require.Error(t, s.SetContext(ctx, "f", 5, time.Hour))
	_, _, err := s.GetContext(ctx, "a")
	require.Error(t, err)

	// Once the backend recovers, nothing was lost and the write succeeds.
	require.NoError(t, s.SetContext(ctx, "f", 5, time.Hour))
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Entries)
	found, out, err := Get[int](ctx, s, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0, out)
}

func TestCompressionAboveThreshold(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0), WithCompressionThreshold(100))

	big := strings.Repeat("folder listing ", 100)
	require.NoError(t, s.SetContext(ctx, "big", big, time.Hour))
	require.NoError(t, s.SetContext(ctx, "small", "tiny", time.Hour))

	s.mutex.Lock()
	entries, err := s.loadEntries(ctx)
	s.mutex.Unlock()
	require.NoError(t, err)
	require.Contains(t, entries, "big")
	assert.Equal(t, codec.EncodingGzip, entries["big"].Payload.Encoding)
	assert.Equal(t, codec.EncodingPlain, entries["small"].Payload.Encoding)
	// SizeBytes reflects what was actually written.
	assert.Equal(t, uint64(len(entries["big"].Payload.Bytes)), entries["big"].SizeBytes)

	found, out, err := Get[string](ctx, s, "big")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, big, out)
}

func TestDecompressionFailurePurgesEntry(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(0)
	s := newTestStore(t, store, WithCompressionThreshold(10))

	require.NoError(t, s.SetContext(ctx, "doomed", strings.Repeat("data", 100), time.Hour))

	// Corrupt the compressed payload in place, keeping the blob decodable.
	s.mutex.Lock()
	entries, err := s.loadEntries(ctx)
	require.NoError(t, err)
	require.Equal(t, codec.EncodingGzip, entries["doomed"].Payload.Encoding)
	entries["doomed"].Payload.Bytes = []byte{0xde, 0xad, 0xbe, 0xef}
	require.NoError(t, s.persist(ctx, entries))
	s.mutex.Unlock()

	found, _, err := s.GetContext(ctx, "doomed")
	require.NoError(t, err, "decode failure must surface as a miss, not an error")
	assert.False(t, found)

	s.mutex.Lock()
	entries, err = s.loadEntries(ctx)
	s.mutex.Unlock()
	require.NoError(t, err)
	assert.NotContains(t, entries, "doomed")
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0))

	require.NoError(t, s.SetContext(ctx, "k", "v", time.Hour))
	require.NoError(t, s.DeleteContext(ctx, "k"))
	require.NoError(t, s.DeleteContext(ctx, "k"))

	found, _, err := s.GetContext(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClearResetsCounters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0))

	require.NoError(t, s.SetContext(ctx, "k", "v", time.Hour))
	s.GetContext(ctx, "k")
	s.GetContext(ctx, "missing")

	require.NoError(t, s.ClearContext(ctx))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.HitRate)
}

func TestBackgroundCleanup(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory(0)
	s := newTestStore(t, store, WithCleanupInterval(20*time.Millisecond))

	require.NoError(t, s.SetContext(ctx, "ephemeral", "v", 5*time.Millisecond))

	// Never read again; the sweeper alone must remove it from storage.
	assert.Eventually(t, func() bool {
		s.mutex.Lock()
		entries, err := s.loadEntries(ctx)
		s.mutex.Unlock()
		if err != nil {
			return false
		}
		_, ok := entries["ephemeral"]
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestConcurrentSetsNoLostUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0))

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		key := string(rune('a' + i))
		g.Go(func() error {
			return s.SetContext(ctx, key, key, time.Hour)
		})
	}
	require.NoError(t, g.Wait())

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.Entries, "concurrent writes must not overwrite each other")
}

func TestStatsTimestamps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemory(0))

	require.NoError(t, s.SetContext(ctx, "first", "v", time.Hour))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.SetContext(ctx, "second", "v", time.Hour))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.True(t, stats.OldestEntry.Before(stats.NewestEntry))
	assert.Greater(t, stats.EstimatedMemoryBytes, stats.TotalSizeBytes)
}
