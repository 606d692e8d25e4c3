package storage

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behavior every backend must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	// Absent key is not an error.
	val, found, err := s.Load(ctx, "replay-cache-missing")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)

	// Save then load.
	require.NoError(t, s.Save(ctx, "replay-cache-thumbs", []byte("one")))
	val, found, err = s.Load(ctx, "replay-cache-thumbs")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("one"), val)

	// Save replaces.
	require.NoError(t, s.Save(ctx, "replay-cache-thumbs", []byte("two")))
	val, _, _ = s.Load(ctx, "replay-cache-thumbs")
	assert.Equal(t, []byte("two"), val)

	// Prefix scan sees all blobs, including ones with other prefixes excluded.
	require.NoError(t, s.Save(ctx, "replay-cache-folders", []byte("f")))
	require.NoError(t, s.Save(ctx, "unrelated-key", []byte("u")))
	keys, err := s.ListKeys(ctx, "replay-cache-")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"replay-cache-folders", "replay-cache-thumbs"}, keys)

	// Remove is idempotent.
	require.NoError(t, s.Remove(ctx, "replay-cache-thumbs"))
	require.NoError(t, s.Remove(ctx, "replay-cache-thumbs"))
	_, found, err = s.Load(ctx, "replay-cache-thumbs")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreContract(t *testing.T) {
	s := NewMemory(0)
	defer s.Close()
	runStoreContract(t, s)
}

func TestFileStoreContract(t *testing.T) {
	s, err := NewFile(t.TempDir(), 0)
	require.NoError(t, err)
	defer s.Close()
	runStoreContract(t, s)
}

func TestSQLiteStoreContract(t *testing.T) {
	s, err := NewSQLite(":memory:", 0)
	require.NoError(t, err)
	defer s.Close()
	runStoreContract(t, s)
}

func TestMemoryStoreQuota(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(10)
	defer s.Close()

	require.NoError(t, s.Save(ctx, "a", []byte("12345")))
	err := s.Save(ctx, "b", []byte("123456789"))
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))

	// Replacing an existing value only counts the delta.
	require.NoError(t, s.Save(ctx, "a", []byte("1234567890")))
}

func TestFileStoreQuota(t *testing.T) {
	ctx := context.Background()
	s, err := NewFile(t.TempDir(), 10)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, "a", []byte("12345")))
	err = s.Save(ctx, "b", []byte("123456789"))
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))
}

func TestWithQueryTimeout(t *testing.T) {
	s, err := NewSQLite(":memory:", 0, WithQueryTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 50*time.Millisecond, s.(*sqliteStore).queryTimeout)

	r := NewRedis(newTestRedis(t), WithQueryTimeout(time.Second))
	assert.Equal(t, time.Second, r.(*redisStore).queryTimeout)

	// Non-positive values fall back to the default.
	d := NewRedis(newTestRedis(t), WithQueryTimeout(0))
	assert.Equal(t, DefaultQueryTimeout, d.(*redisStore).queryTimeout)
}

func TestSQLiteStoreQuota(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(":memory:", 10)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, "a", []byte("12345")))
	err = s.Save(ctx, "b", []byte("123456789"))
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))
}

func TestFileStoreEscapesKeys(t *testing.T) {
	ctx := context.Background()
	s, err := NewFile(t.TempDir(), 0)
	require.NoError(t, err)
	defer s.Close()

	key := "replay-cache-../../etc/passwd"
	require.NoError(t, s.Save(ctx, key, []byte("safe")))
	val, found, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("safe"), val)

	keys, err := s.ListKeys(ctx, "replay-cache-")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)
}
