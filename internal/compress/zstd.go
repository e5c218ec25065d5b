// Package compress provides the zstd codec used to hold accumulated
// stream fragments at rest when compression is enabled.
package compress

import (
	"github.com/klauspost/compress/zstd"
)

// Codec compresses and decompresses fragment payloads. A single Codec
// is safe for concurrent use: EncodeAll and DecodeAll are goroutine-safe
// on a shared encoder/decoder pair.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New creates a Codec tuned for many small payloads over raw ratio.
func New() (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// Compress returns the zstd frame for src.
func (c *Codec) Compress(src []byte) []byte {
	return c.enc.EncodeAll(src, make([]byte, 0, len(src)/2))
}

// Decompress expands a frame produced by Compress.
func (c *Codec) Decompress(src []byte) ([]byte, error) {
	return c.dec.DecodeAll(src, nil)
}

// Close releases encoder and decoder resources.
func (c *Codec) Close() {
	c.enc.Close()
	c.dec.Close()
}
