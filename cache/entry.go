package cache

import (
	"time"

	"github.com/replaykit/go-cache/codec"
)

// Entry is one stored cache item together with the bookkeeping the
// eviction policy needs.
type Entry struct {
	Payload        codec.Payload `msgpack:"payload"`
	CreatedAt      time.Time     `msgpack:"created_at"`
	ExpiresAt      time.Time     `msgpack:"expires_at"`
	SchemaVersion  string        `msgpack:"schema_version"`
	AccessCount    uint64        `msgpack:"access_count"`
	LastAccessedAt time.Time     `msgpack:"last_accessed_at"`
	SizeBytes      uint64        `msgpack:"size_bytes"`
}

// live reports whether the entry is readable: written under the current
// schema version and not yet expired. Anything else is logically absent
// and gets purged on the next observation.
func (e *Entry) live(version string, now time.Time) bool {
	return e.SchemaVersion == version && now.Before(e.ExpiresAt)
}

// score ranks eviction candidates. Larger, less-used, longer-idle entries
// score higher and are evicted first.
func (e *Entry) score(now time.Time) float64 {
	idle := now.Sub(e.LastAccessedAt).Seconds()
	if idle < 0 {
		idle = 0
	}
	return float64(e.SizeBytes) / float64(e.AccessCount+1) * idle
}

func totalSize(entries map[string]*Entry) uint64 {
	var total uint64
	for _, e := range entries {
		total += e.SizeBytes
	}
	return total
}
