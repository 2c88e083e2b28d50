package cache

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"

	"tiercache/internal/common/errors"
)

// Codec is a reversible transform applied to serialized payloads before
// they are stored.
type Codec interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// Compression type identifiers accepted in configuration.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
)

// NewCodec returns the codec for the given compression type.
func NewCodec(compressionType string) (Codec, error) {
	switch compressionType {
	case "", CompressionNone:
		return noopCodec{}, nil
	case CompressionGzip:
		return gzipCodec{}, nil
	default:
		return nil, errors.ConfigError("unsupported compression type: " + compressionType)
	}
}

type noopCodec struct{}

func (noopCodec) Encode(data []byte) ([]byte, error) { return data, nil }
func (noopCodec) Decode(data []byte) ([]byte, error) { return data, nil }

type gzipCodec struct{}

func (gzipCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, errors.SerializationError("gzip compress failed", err)
	}
	if err := w.Close(); err != nil {
		return nil, errors.SerializationError("gzip compress failed", err)
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decode(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.SerializationError("gzip decompress failed", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.SerializationError("gzip decompress failed", err)
	}
	return out, nil
}
