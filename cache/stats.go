package cache

import (
	"context"
	"time"
)

// entryOverheadBytes approximates the in-memory bookkeeping cost per entry
// (map slot, timestamps, counters) on top of the payload itself.
const entryOverheadBytes = 256

// Stats is a point-in-time snapshot of one namespace. Hit and miss
// counters cover the process lifetime and reset only on Clear.
type Stats struct {
	Entries              int
	TotalSizeBytes       uint64
	Hits                 uint64
	Misses               uint64
	HitRate              float64
	OldestEntry          time.Time
	NewestEntry          time.Time
	EstimatedMemoryBytes uint64
}

// Stats returns a snapshot of the namespace. Only live entries are
// counted; expired or version-mismatched entries awaiting cleanup are
// logically absent.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	now := s.now()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	entries, err := s.loadEntries(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		Hits:   s.hits,
		Misses: s.misses,
	}
	for _, entry := range entries {
		if !entry.live(s.cfg.schemaVersion, now) {
			continue
		}
		stats.Entries++
		stats.TotalSizeBytes += entry.SizeBytes
		if stats.OldestEntry.IsZero() || entry.CreatedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.CreatedAt
		}
		if entry.CreatedAt.After(stats.NewestEntry) {
			stats.NewestEntry = entry.CreatedAt
		}
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	stats.EstimatedMemoryBytes = stats.TotalSizeBytes + uint64(stats.Entries)*entryOverheadBytes
	return stats, nil
}
