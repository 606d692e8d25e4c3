// Package cache provides a namespaced, persisted key-value cache with
// TTL expiry, schema versioning, size-bounded storage, usage-aware
// eviction, transparent compression, and quota-exhaustion recovery.
//
// # Model
//
// A [Registry] hands out one [Store] per namespace. Each namespace is
// persisted as a single serialized blob in a [storage.Store], so every
// mutation is a read-modify-write of the whole map, serialized by a
// per-namespace mutex. The blob is the unit of atomicity: readers never
// see a partially written entry, and corruption is contained to one
// namespace.
//
// Entries carry a TTL and the schema version they were written under. An
// entry is readable only while unexpired and version-current; anything
// else is treated as absent and purged on the next observation, never
// surfaced as an error. A background goroutine per store sweeps dead
// entries on a fixed interval so write-only keys cannot grow a namespace
// without bound.
//
// # Eviction
//
// When a write pushes a namespace past its size bound, entries are ranked
// by size/(accessCount+1)*idle-time — larger, less-used, longer-idle
// entries go first, ties broken by age — and removed until the namespace
// fits under a configurable fraction of the bound (80% default), leaving
// headroom for the next write.
//
// Separately, if the storage layer itself rejects a write for quota
// ([storage.IsQuotaExceeded]), a blunt recovery drops half the entries by
// count and retries once; if even that fails the namespace is cleared and
// only the new entry is written. Only when that final write fails does
// the caller see [ErrStorageFull].
//
// # Usage
//
//	reg := cache.NewRegistry(ctx, store)
//	thumbs := reg.Namespace("thumbnails",
//	    cache.WithMaxSize(10<<20),
//	    cache.WithDefaultTTL(time.Hour),
//	)
//	if err := thumbs.SetContext(ctx, videoID, thumb, 0); err != nil { ... }
//	found, thumb, err := cache.Get[Thumbnail](ctx, thumbs, videoID)
//
// [Exec] combines lookup and population in one cache-aside call. Values
// are serialized with msgpack and compressed above a size threshold; see
// the codec package.
package cache
