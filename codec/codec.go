package codec

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultCompressionThreshold is the serialized size above which payloads
// are compressed. 10 KiB keeps small entries cheap to decode while large
// blobs (thumbnails, folder listings) shrink substantially.
const DefaultCompressionThreshold = 10 * 1024

// ErrCorrupted is returned by Decode when a payload cannot be decompressed
// or deserialized. Callers treat this as data loss, not a caller error.
var ErrCorrupted = errors.New("codec: corrupted payload")

// Encoding tags how a Payload's bytes were produced so decoding dispatch
// is exhaustive rather than inferred from the data itself.
type Encoding uint8

const (
	EncodingPlain Encoding = iota
	EncodingGzip
)

// Payload is serialized (and possibly compressed) data together with its
// encoding tag. It is what cache entries carry on the wire.
type Payload struct {
	Bytes    []byte   `msgpack:"bytes"`
	Encoding Encoding `msgpack:"encoding"`
}

// Size returns the stored byte length, which is what quota accounting and
// eviction scoring measure.
func (p Payload) Size() uint64 {
	return uint64(len(p.Bytes))
}

// Marshal serializes a value to msgpack.
func Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "codec: marshal")
	}
	return data, nil
}

// Unmarshal deserializes msgpack bytes into out.
func Unmarshal(data []byte, out any) error {
	if err := msgpack.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "codec: unmarshal")
	}
	return nil
}

// Codec serializes values and transparently compresses payloads whose
// serialized form exceeds a size threshold.
type Codec struct {
	threshold int
	enabled   bool
}

// Option configures a Codec.
type Option func(*Codec)

// WithThreshold sets the serialized size above which payloads are
// compressed. Defaults to DefaultCompressionThreshold.
func WithThreshold(bytes int) Option {
	return func(c *Codec) { c.threshold = bytes }
}

// WithCompression enables or disables compression entirely. When disabled
// every payload is tagged EncodingPlain.
func WithCompression(enabled bool) Option {
	return func(c *Codec) { c.enabled = enabled }
}

// New returns a Codec with compression enabled at the default threshold.
func New(opts ...Option) *Codec {
	c := &Codec{
		threshold: DefaultCompressionThreshold,
		enabled:   true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode serializes v and compresses the result when it exceeds the
// threshold. Compression failure, or compressed output that is not smaller
// than the input, falls back to the plain encoding. Encode only fails when
// serialization itself fails.
func (c *Codec) Encode(v any) (Payload, error) {
	data, err := Marshal(v)
	if err != nil {
		return Payload{}, err
	}
	if !c.enabled || len(data) <= c.threshold {
		return Payload{Bytes: data, Encoding: EncodingPlain}, nil
	}
	compressed, err := compress(data)
	if err != nil || len(compressed) >= len(data) {
		return Payload{Bytes: data, Encoding: EncodingPlain}, nil
	}
	return Payload{Bytes: compressed, Encoding: EncodingGzip}, nil
}

// Decode decompresses (if tagged) and deserializes a payload into out.
// Any decompression or deserialization failure is reported as ErrCorrupted.
func (c *Codec) Decode(p Payload, out any) error {
	data, err := p.Raw()
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return errors.Mark(errors.Wrap(err, "codec: decode"), ErrCorrupted)
	}
	return nil
}

// Raw returns the decompressed serialized bytes of the payload without
// deserializing them.
func (p Payload) Raw() ([]byte, error) {
	switch p.Encoding {
	case EncodingPlain:
		return p.Bytes, nil
	case EncodingGzip:
		data, err := decompress(p.Bytes)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "codec: gunzip"), ErrCorrupted)
		}
		return data, nil
	default:
		return nil, errors.Mark(errors.Newf("codec: unknown encoding %d", p.Encoding), ErrCorrupted)
	}
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
