package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/codec"
	"github.com/FairForge/metaapi/internal/node"
)

// Source renders a metadata document for the actor in ctx.
type Source interface {
	Export(ctx context.Context, types []string, fields []string) (*node.Node, error)
}

// Archive describes an uploaded export.
type Archive struct {
	Key            string      `json:"key"`
	Compression    Compression `json:"compression"`
	Size           int         `json:"size"`
	CompressedSize int         `json:"compressedSize"`
	Created        time.Time   `json:"created"`
}

// Archiver renders exports as JSON, compresses them and hands them to a sink.
type Archiver struct {
	source     Source
	sink       Sink
	compressor Compressor
	prefix     string
	logger     *zap.Logger
	now        func() time.Time
}

func NewArchiver(source Source, sink Sink, compressor Compressor, prefix string, logger *zap.Logger) *Archiver {
	return &Archiver{
		source:     source,
		sink:       sink,
		compressor: compressor,
		prefix:     prefix,
		logger:     logger,
		now:        time.Now,
	}
}

// Archive exports the given types and stores the result.
func (a *Archiver) Archive(ctx context.Context, types []string, fields []string) (*Archive, error) {
	doc, err := a.source.Export(ctx, types, fields)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := codec.Render(&buf, codec.JSON, doc); err != nil {
		return nil, fmt.Errorf("render export: %w", err)
	}
	body, err := a.compressor.Compress(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("compress export: %w", err)
	}

	created := a.now().UTC()
	key := fmt.Sprintf("%smetadata-%s-%s.json%s",
		a.prefix, created.Format("20060102T150405Z"), uuid.NewString()[:8], a.compressor.Extension())
	if err := a.sink.Put(ctx, key, body, contentType(a.compressor.Algorithm())); err != nil {
		return nil, err
	}

	a.logger.Info("metadata exported",
		zap.String("key", key),
		zap.String("compression", string(a.compressor.Algorithm())),
		zap.Int("size", buf.Len()),
		zap.Int("compressed_size", len(body)))
	return &Archive{
		Key:            key,
		Compression:    a.compressor.Algorithm(),
		Size:           buf.Len(),
		CompressedSize: len(body),
		Created:        created,
	}, nil
}

func contentType(c Compression) string {
	switch c {
	case CompressionZstd:
		return "application/zstd"
	case CompressionSnappy:
		return "application/x-snappy"
	}
	return "application/json"
}
