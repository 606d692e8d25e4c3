// Package env builds cache options from environment variables, so
// deployments can tune the cache without code changes.
//
// Recognized variables:
//
//	CACHE_DEFAULT_TTL           duration, e.g. "5m", "1h30m", "2d"
//	CACHE_MAX_NAMESPACE_SIZE    bytes, e.g. "5242880"
//	CACHE_CLEANUP_INTERVAL      duration
//	CACHE_SCHEMA_VERSION        string
//	CACHE_COMPRESSION_THRESHOLD bytes
//	CACHE_COMPRESSION_ENABLED   "true" or "false"
//	CACHE_KEY_PREFIX            string
//
// Durations accept the extended syntax of
// [github.com/xhit/go-str2duration/v2], which adds days ("2d") and weeks
// ("1w") on top of time.ParseDuration.
package env

import (
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/xhit/go-str2duration/v2"

	"github.com/replaykit/go-cache/cache"
)

// Options reads the CACHE_* environment variables and returns the
// corresponding cache options. Unset variables contribute nothing, so the
// result layers over the package defaults. Malformed values are reported
// rather than silently ignored.
func Options() ([]cache.Option, error) {
	var opts []cache.Option

	if val := os.Getenv("CACHE_DEFAULT_TTL"); val != "" {
		d, err := str2duration.ParseDuration(val)
		if err != nil {
			return nil, errors.Wrapf(err, "env: CACHE_DEFAULT_TTL %q", val)
		}
		opts = append(opts, cache.WithDefaultTTL(d))
	}

	if val := os.Getenv("CACHE_MAX_NAMESPACE_SIZE"); val != "" {
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "env: CACHE_MAX_NAMESPACE_SIZE %q", val)
		}
		opts = append(opts, cache.WithMaxSize(n))
	}

	if val := os.Getenv("CACHE_CLEANUP_INTERVAL"); val != "" {
		d, err := str2duration.ParseDuration(val)
		if err != nil {
			return nil, errors.Wrapf(err, "env: CACHE_CLEANUP_INTERVAL %q", val)
		}
		opts = append(opts, cache.WithCleanupInterval(d))
	}

	if val := os.Getenv("CACHE_SCHEMA_VERSION"); val != "" {
		opts = append(opts, cache.WithSchemaVersion(val))
	}

	if val := os.Getenv("CACHE_COMPRESSION_THRESHOLD"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return nil, errors.Wrapf(err, "env: CACHE_COMPRESSION_THRESHOLD %q", val)
		}
		opts = append(opts, cache.WithCompressionThreshold(n))
	}

	if val := os.Getenv("CACHE_COMPRESSION_ENABLED"); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return nil, errors.Wrapf(err, "env: CACHE_COMPRESSION_ENABLED %q", val)
		}
		opts = append(opts, cache.WithCompression(enabled))
	}

	if val := os.Getenv("CACHE_KEY_PREFIX"); val != "" {
		opts = append(opts, cache.WithKeyPrefix(val))
	}

	return opts, nil
}
