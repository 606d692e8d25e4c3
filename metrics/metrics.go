// Package metrics defines the observability hooks emitted by the cache.
package metrics

// EvictReason distinguishes why an entry was removed.
type EvictReason string

const (
	// ReasonExpired — TTL elapsed.
	ReasonExpired EvictReason = "expired"
	// ReasonVersion — schema version mismatch.
	ReasonVersion EvictReason = "version"
	// ReasonSize — proactive size-based eviction.
	ReasonSize EvictReason = "size"
	// ReasonQuota — quota-exceeded recovery.
	ReasonQuota EvictReason = "quota"
	// ReasonCorrupted — payload could not be decoded.
	ReasonCorrupted EvictReason = "corrupted"
)

// Metrics receives cache events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	Hit(namespace string)
	Miss(namespace string)
	Evict(namespace string, reason EvictReason, count int)
	Size(namespace string, entries int, bytes uint64)
}

// Noop is a drop-in Metrics implementation that does nothing. It is the
// default when no observability backend is configured.
type Noop struct{}

func (Noop) Hit(string)                     {}
func (Noop) Miss(string)                    {}
func (Noop) Evict(string, EvictReason, int) {}
func (Noop) Size(string, int, uint64)       {}

var _ Metrics = Noop{}
