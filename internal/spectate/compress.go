package spectate

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Compressor applies symmetric compression to frame payloads.
type Compressor interface {
	// Name returns the codec identifier advertised in stream metadata.
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

type gzipCompressor struct {
	level int
}

// NewGZIPCompressor constructs a Compressor backed by gzip at the fastest level.
func NewGZIPCompressor() Compressor {
	return gzipCompressor{level: gzip.BestSpeed}
}

func (gzipCompressor) Name() string { return "gzip" }

func (c gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("gzip decompress: empty payload")
	}
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer reader.Close()
	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gzip copy: %w", err)
	}
	return out, nil
}

type identityCompressor struct{}

func (identityCompressor) Name() string                          { return "identity" }
func (identityCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (identityCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }

// CompressorFor resolves the codec advertised by a stream header.
func CompressorFor(name string) (Compressor, error) {
	switch name {
	case "", "gzip":
		return NewGZIPCompressor(), nil
	case "identity":
		return identityCompressor{}, nil
	default:
		return nil, fmt.Errorf("unsupported frame encoding %q", name)
	}
}
