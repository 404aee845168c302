// Package export writes compressed metadata archives to object storage.
package export

import (
	"fmt"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression names an archive format.
type Compression string

const (
	CompressionZstd   Compression = "zstd"
	CompressionSnappy Compression = "snappy"
	CompressionNone   Compression = "none"
)

// Compressor turns a rendered document into archive bytes and back.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() Compression
	// Extension is appended to archive keys, including the dot.
	Extension() string
}

// NewCompressor picks the compressor for a configured format. An empty
// name means zstd.
func NewCompressor(name Compression, level int) (Compressor, error) {
	switch name {
	case CompressionZstd, "":
		return NewZstdCompressor(level)
	case CompressionSnappy:
		return SnappyCompressor{}, nil
	case CompressionNone:
		return NoopCompressor{}, nil
	default:
		return nil, fmt.Errorf("unsupported export compression: %s", name)
	}
}

// ZstdCompressor reuses one encoder and decoder for the process lifetime.
type ZstdCompressor struct {
	level       int
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
	encoderOnce sync.Once
	decoderOnce sync.Once
	encoderErr  error
	decoderErr  error
}

// NewZstdCompressor accepts levels 1-19. Zero selects level 3.
func NewZstdCompressor(level int) (*ZstdCompressor, error) {
	if level == 0 {
		level = 3
	}
	if level < 1 || level > 19 {
		return nil, fmt.Errorf("zstd level must be 1-19, got %d", level)
	}
	return &ZstdCompressor{level: level}, nil
}

func (c *ZstdCompressor) getEncoder() (*zstd.Encoder, error) {
	c.encoderOnce.Do(func() {
		c.encoder, c.encoderErr = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.level)),
			zstd.WithEncoderConcurrency(1),
		)
	})
	return c.encoder, c.encoderErr
}

func (c *ZstdCompressor) getDecoder() (*zstd.Decoder, error) {
	c.decoderOnce.Do(func() {
		c.decoder, c.decoderErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(256*1024*1024),
		)
	})
	return c.decoder, c.decoderErr
}

func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	encoder, err := c.getEncoder()
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (c *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	decoder, err := c.getDecoder()
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return decoder.DecodeAll(data, nil)
}

func (c *ZstdCompressor) Algorithm() Compression { return CompressionZstd }
func (c *ZstdCompressor) Extension() string      { return ".zst" }
func (c *ZstdCompressor) Level() int             { return c.level }

// SnappyCompressor trades ratio for speed.
type SnappyCompressor struct{}

func (SnappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (SnappyCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	return out, nil
}

func (SnappyCompressor) Algorithm() Compression { return CompressionSnappy }
func (SnappyCompressor) Extension() string      { return ".sz" }

// NoopCompressor stores archives uncompressed.
type NoopCompressor struct{}

func (NoopCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (NoopCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (NoopCompressor) Algorithm() Compression                 { return CompressionNone }
func (NoopCompressor) Extension() string                      { return "" }
