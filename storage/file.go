package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/cockroachdb/errors"
)

type fileStore struct {
	mutex    sync.Mutex
	dir      string
	maxBytes int64
}

var _ Store = (*fileStore)(nil)

// NewFile returns a Store that keeps one file per key under dir. The
// directory is created if it does not exist. If maxBytes > 0, Save fails
// with ErrQuotaExceeded once the directory's total size would exceed it;
// disk-full errors from the OS are mapped to ErrQuotaExceeded as well.
func NewFile(dir string, maxBytes int64) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "file store: mkdir")
	}
	return &fileStore{dir: dir, maxBytes: maxBytes}, nil
}

// Keys are escaped so arbitrary namespace names map to valid file names.
func (s *fileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".blob")
}

func (s *fileStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "file store: read")
	}
	return data, true, nil
}

func (s *fileStore) Save(_ context.Context, key string, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.maxBytes > 0 {
		current, err := s.usage()
		if err != nil {
			return err
		}
		prev, _ := os.Stat(s.path(key))
		var prevSize int64
		if prev != nil {
			prevSize = prev.Size()
		}
		if current-prevSize+int64(len(value)) > s.maxBytes {
			return errors.Wrapf(ErrQuotaExceeded, "file store at %d/%d bytes", current, s.maxBytes)
		}
	}
	// Write-then-rename keeps readers from ever seeing a partial blob.
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return wrapDiskErr(err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		os.Remove(tmp)
		return wrapDiskErr(err)
	}
	return nil
}

func (s *fileStore) Remove(_ context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "file store: remove")
	}
	return nil
}

func (s *fileStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "file store: list")
	}
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".blob") {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, ".blob"))
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *fileStore) Close() error {
	return nil
}

func (s *fileStore) usage() (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, errors.Wrap(err, "file store: usage")
	}
	var total int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".blob") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

func wrapDiskErr(err error) error {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return errors.Mark(errors.Wrap(err, "file store: write"), ErrQuotaExceeded)
	}
	return errors.Wrap(err, "file store: write")
}
