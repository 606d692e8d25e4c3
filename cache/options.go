package cache

import (
	"time"

	"github.com/replaykit/go-cache/logger"
	"github.com/replaykit/go-cache/metrics"
)

const (
	// DefaultTTL is used when Set is called with a non-positive TTL.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxNamespaceSize bounds the serialized size of one namespace.
	DefaultMaxNamespaceSize = 5 * 1024 * 1024

	// DefaultCleanupInterval is how often expired and version-mismatched
	// entries are swept out, independent of reads.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultSchemaVersion tags entries so a format change invalidates
	// everything written by an earlier version.
	DefaultSchemaVersion = "1"

	// DefaultKeyPrefix is prepended to namespace names to form storage keys.
	DefaultKeyPrefix = "replay-cache"

	// DefaultEvictionTarget is the fraction of max size eviction reduces to,
	// leaving headroom so the next write does not immediately re-trigger it.
	DefaultEvictionTarget = 0.8

	// DefaultRecoveryFraction is the fraction of entries (by count) dropped
	// when the storage layer itself rejects a write for quota.
	DefaultRecoveryFraction = 0.5
)

// config holds the resolved configuration for a Store.
type config struct {
	defaultTTL           time.Duration
	maxSize              uint64
	cleanupInterval      time.Duration
	schemaVersion        string
	compressionThreshold int
	compressionEnabled   bool
	evictionTarget       float64
	recoveryFraction     float64
	keyPrefix            string
	log                  logger.Logger
	metrics              metrics.Metrics
}

// Option configures a Store or the defaults of a Registry.
type Option func(*config)

func defaultConfig() config {
	return config{
		defaultTTL:           DefaultTTL,
		maxSize:              DefaultMaxNamespaceSize,
		cleanupInterval:      DefaultCleanupInterval,
		schemaVersion:        DefaultSchemaVersion,
		compressionThreshold: 10 * 1024,
		compressionEnabled:   true,
		evictionTarget:       DefaultEvictionTarget,
		recoveryFraction:     DefaultRecoveryFraction,
		keyPrefix:            DefaultKeyPrefix,
		log:                  logger.NewNoop(),
		metrics:              metrics.Noop{},
	}
}

func applyOptions(base config, opts []Option) config {
	cfg := base
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithDefaultTTL sets the TTL used when Set is called without one.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *config) { c.defaultTTL = d }
}

// WithMaxSize sets the maximum total serialized size of a namespace in
// bytes. Writes that push past it trigger eviction.
func WithMaxSize(bytes uint64) Option {
	return func(c *config) { c.maxSize = bytes }
}

// WithCleanupInterval sets the interval for background expired entry
// cleanup. Non-positive disables the background sweep.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *config) { c.cleanupInterval = d }
}

// WithSchemaVersion sets the version tag written to every entry. Entries
// carrying any other tag are treated as absent.
func WithSchemaVersion(v string) Option {
	return func(c *config) { c.schemaVersion = v }
}

// WithCompressionThreshold sets the serialized size above which payloads
// are compressed.
func WithCompressionThreshold(bytes int) Option {
	return func(c *config) { c.compressionThreshold = bytes }
}

// WithCompression enables or disables payload compression.
func WithCompression(enabled bool) Option {
	return func(c *config) { c.compressionEnabled = enabled }
}

// WithEvictionTarget sets the fraction of max size that size-based
// eviction reduces a namespace to. Must be in (0, 1].
func WithEvictionTarget(fraction float64) Option {
	return func(c *config) { c.evictionTarget = fraction }
}

// WithRecoveryFraction sets the fraction of entries dropped, by count,
// when the storage layer rejects a write for quota. Must be in (0, 1].
func WithRecoveryFraction(fraction float64) Option {
	return func(c *config) { c.recoveryFraction = fraction }
}

// WithKeyPrefix sets the storage key prefix namespace blobs are stored
// under. All stores sharing a Registry must share a prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *config) { c.keyPrefix = prefix }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log logger.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithMetrics sets the metrics sink. Defaults to a no-op implementation.
func WithMetrics(m metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}
