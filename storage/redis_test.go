package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisStoreContract(t *testing.T) {
	s := NewRedis(newTestRedis(t))
	defer s.Close()
	runStoreContract(t, s)
}

func TestRedisStoreCloseLeavesClientOpen(t *testing.T) {
	client := newTestRedis(t)
	s := NewRedis(client)
	require.NoError(t, s.Close())
	require.NoError(t, client.Ping(context.Background()).Err())
}
