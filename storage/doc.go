// Package storage defines the durable byte store the cache persists into,
// along with backends for memory, the filesystem, SQLite, and Redis.
//
// The [Store] interface is intentionally small: whole-value Load/Save/Remove
// plus a prefix scan. The cache layer treats one value as one namespace
// blob, so a backend only needs to replace values atomically — it never
// sees partial updates.
//
// The one piece of error taxonomy backends must get right is quota
// classification: a Save that fails because the medium is out of space must
// satisfy [IsQuotaExceeded], because the cache responds to that specific
// failure with eviction-based recovery. All other failures are surfaced
// as-is.
//
//   - [NewMemory] — map-backed, optional byte cap. Deterministic quota
//     behavior makes it the backend of choice in tests.
//   - [NewFile] — one file per key under a directory; write-then-rename
//     keeps blobs intact; ENOSPC/EDQUOT map to quota exhaustion.
//   - [NewSQLite] — single blobs table via [modernc.org/sqlite] (pure Go),
//     WAL mode, per-operation timeout.
//   - [NewRedis] — via [github.com/redis/go-redis/v9]; the server's OOM
//     rejection maps to quota exhaustion.
package storage
