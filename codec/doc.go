// Package codec converts typed values to and from the byte representation
// stored by the cache, optionally compressing large payloads.
//
// Values are serialized with msgpack ([github.com/vmihailenco/msgpack/v5]).
// When a serialized payload exceeds the configured threshold
// ([DefaultCompressionThreshold] by default), it is gzip-compressed and the
// resulting [Payload] is tagged [EncodingGzip]; everything else is tagged
// [EncodingPlain]. The tag makes decoding dispatch exhaustive — there is no
// sniffing of magic bytes.
//
// Compression is strictly best-effort: if gzip fails, or does not actually
// shrink the data, [Codec.Encode] silently stores the plain form. A write
// never fails because compression failed. Decoding is the opposite: a
// payload that cannot be decompressed or deserialized is unrecoverable, and
// [Codec.Decode] reports it with [ErrCorrupted] so callers can discard the
// entry.
package codec
