package cache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodec(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		codec, err := NewCodec(CompressionNone)
		require.NoError(t, err)
		_, ok := codec.(noopCodec)
		assert.True(t, ok)
	})

	t.Run("empty defaults to none", func(t *testing.T) {
		codec, err := NewCodec("")
		require.NoError(t, err)
		_, ok := codec.(noopCodec)
		assert.True(t, ok)
	})

	t.Run("gzip", func(t *testing.T) {
		codec, err := NewCodec(CompressionGzip)
		require.NoError(t, err)
		_, ok := codec.(gzipCodec)
		assert.True(t, ok)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewCodec("zstd")
		assert.Error(t, err)
	})
}

func TestNoopCodecPassthrough(t *testing.T) {
	codec := noopCodec{}
	data := []byte("hello")

	encoded, err := codec.Encode(data)
	require.NoError(t, err)
	assert.Equal(t, data, encoded)

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestGzipCodecRoundTrip(t *testing.T) {
	codec := gzipCodec{}
	data := bytes.Repeat([]byte("tiercache "), 200)

	encoded, err := codec.Encode(data)
	require.NoError(t, err)
	assert.Less(t, len(encoded), len(data))

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestGzipCodecRejectsGarbage(t *testing.T) {
	codec := gzipCodec{}
	_, err := codec.Decode([]byte("not gzip data"))
	assert.Error(t, err)
}
