package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressedUnchainedRoundTrip(t *testing.T) {
	c := &CompressedUnchained{
		OriginalSize: 10,
		Algorithm:    CompressionPatternV1,
		Prefix:       []byte{0xaa, 0xbb},
		Payload:      encodePatternV1('x', 8),
	}
	buf := c.Encode()
	assert.Equal(t, KindCompressed, Sniff(buf))

	got, err := DecodeCompressedUnchained(buf)
	require.NoError(t, err)
	assert.Equal(t, c.OriginalSize, got.OriginalSize)
	assert.Equal(t, c.Algorithm, got.Algorithm)
	assert.Equal(t, c.Prefix, got.Prefix)
	assert.Equal(t, c.Payload, got.Payload)

	plain, err := got.Decompress(0)
	require.NoError(t, err)
	want := append(append([]byte{}, c.Prefix...), bytes.Repeat([]byte{'x'}, 8)...)
	assert.Equal(t, want, plain)
}

func TestCompressIfWorthwhilePatternRun(t *testing.T) {
	data := bytes.Repeat([]byte{0x41}, 4096)
	env, ok := CompressIfWorthwhile(data, 100)
	require.True(t, ok)
	assert.Equal(t, CompressionPatternV1, env.Algorithm)

	plain, err := env.Decompress(0)
	require.NoError(t, err)
	assert.Equal(t, data, plain)
}

func TestCompressIfWorthwhileRejectsMixedData(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	_, ok := CompressIfWorthwhile(data, 1)
	assert.False(t, ok)
}

func TestCompressIfWorthwhileBelowThreshold(t *testing.T) {
	data := bytes.Repeat([]byte{0x41}, 10)
	_, ok := CompressIfWorthwhile(data, 4096)
	assert.False(t, ok)
}

func TestDecodeCompressedUnchainedOffsetOutOfRange(t *testing.T) {
	buf := (&CompressedUnchained{OriginalSize: 1}).Encode()
	// Patch offset field past the remaining buffer length.
	buf[12] = 0xff
	_, err := DecodeCompressedUnchained(buf)
	assert.Error(t, err)
}

func TestDecompressSizeMismatch(t *testing.T) {
	c := &CompressedUnchained{
		OriginalSize: 999,
		Algorithm:    CompressionNone,
		Payload:      []byte("short"),
	}
	_, err := c.Decompress(0)
	assert.Error(t, err)
}

func TestDecompressRejectsOriginalSizeAboveCap(t *testing.T) {
	c := &CompressedUnchained{
		OriginalSize: 1 << 20,
		Algorithm:    CompressionNone,
		Payload:      []byte("short"),
	}
	_, err := c.Decompress(4096)
	assert.Error(t, err)
}

func TestDecompressRejectsPatternV1CountAboveCap(t *testing.T) {
	c := &CompressedUnchained{
		OriginalSize: 0xffffffff,
		Algorithm:    CompressionPatternV1,
		Payload:      encodePatternV1('x', 0xffffffff),
	}
	_, err := c.Decompress(4096)
	assert.Error(t, err)
}
