package storage

import "time"

// DefaultQueryTimeout bounds each SQLite and Redis operation so slow or
// unresponsive storage cannot hang a cache call indefinitely.
const DefaultQueryTimeout = 5 * time.Second

type config struct {
	queryTimeout time.Duration
}

// Option adjusts a setting on the SQLite or Redis backends.
type Option func(*config)

// WithQueryTimeout overrides DefaultQueryTimeout as the per-operation
// deadline for backends that talk to a database or server. Values <= 0
// are ignored.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.queryTimeout = d
		}
	}
}

func applyOptions(opts []Option) config {
	cfg := config{queryTimeout: DefaultQueryTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
