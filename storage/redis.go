package storage

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client       *redis.Client
	queryTimeout time.Duration
}

var _ Store = (*redisStore)(nil)

// NewRedis returns a Store backed by Redis. The caller owns the
// redis.Client lifecycle — Close is a no-op on the client. Quota
// enforcement is Redis's own maxmemory policy; an OOM rejection from the
// server is mapped to ErrQuotaExceeded.
func NewRedis(client *redis.Client, opts ...Option) Store {
	cfg := applyOptions(opts)
	return &redisStore{
		client:       client,
		queryTimeout: cfg.queryTimeout,
	}
}

func (s *redisStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.queryTimeout)
}

func (s *redisStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	data, err := s.client.Get(qctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis store: load")
	}
	return data, true, nil
}

func (s *redisStore) Save(ctx context.Context, key string, value []byte) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if err := s.client.Set(qctx, key, value, 0).Err(); err != nil {
		if strings.Contains(err.Error(), "OOM") {
			return errors.Mark(errors.Wrap(err, "redis store: save"), ErrQuotaExceeded)
		}
		return errors.Wrap(err, "redis store: save")
	}
	return nil
}

func (s *redisStore) Remove(ctx context.Context, key string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return errors.Wrap(s.client.Del(qctx, key).Err(), "redis store: remove")
}

func (s *redisStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var keys []string
	iter := s.client.Scan(qctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(qctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "redis store: scan")
	}
	return keys, nil
}

func (s *redisStore) Close() error {
	return nil
}
