package cache

import "github.com/cockroachdb/errors"

// ErrStorageFull is returned by Set when the durable store rejected the
// write for quota and recovery could not make room. It is the only
// content-independent failure a caller sees from the read/write path;
// callers may respond by skipping caching for that write.
var ErrStorageFull = errors.New("cache: storage full")

// ErrSerialization is returned by Set when the value cannot be serialized.
// Existing data is untouched.
var ErrSerialization = errors.New("cache: serialization failed")
