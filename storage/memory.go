package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

type memoryStore struct {
	mutex    sync.Mutex
	blobs    map[string][]byte
	total    int
	maxBytes int
}

var _ Store = (*memoryStore)(nil)

// NewMemory returns an in-process Store backed by a map. If maxBytes > 0,
// Save fails with ErrQuotaExceeded once total stored bytes would exceed it,
// which makes quota behavior deterministic in tests.
func NewMemory(maxBytes int) Store {
	return &memoryStore{
		blobs:    make(map[string][]byte),
		maxBytes: maxBytes,
	}
}

func (s *memoryStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	val, ok := s.blobs[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (s *memoryStore) Save(_ context.Context, key string, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	next := s.total - len(s.blobs[key]) + len(value)
	if s.maxBytes > 0 && next > s.maxBytes {
		return errors.Wrapf(ErrQuotaExceeded, "memory store at %d/%d bytes", s.total, s.maxBytes)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.blobs[key] = stored
	s.total = next
	return nil
}

func (s *memoryStore) Remove(_ context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if val, ok := s.blobs[key]; ok {
		s.total -= len(val)
		delete(s.blobs, key)
	}
	return nil
}

func (s *memoryStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	keys := make([]string, 0, len(s.blobs))
	for key := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *memoryStore) Close() error {
	return nil
}
